package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"FeedRelay/internal/domain/models"
	drepo "FeedRelay/internal/domain/repository"
	phttp "FeedRelay/pkg/http"
	"FeedRelay/pkg/logger"

	"github.com/gorilla/websocket"
)

// Config holds the feed settings.
type Config struct {
	WebsocketURL   string
	RESTURL        string
	Symbols        []string
	MaxDepth       int
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Client implements a MarketStream backed by Binance combined streams. Books
// are rebuilt locally from a REST snapshot and depth diffs.
type Client struct {
	cfg    Config
	rest   *phttp.Client
	dialer *websocket.Dialer
	log    *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	// books and names are touched by Subscribe and the read loop, which never
	// run concurrently.
	books   map[string]*localBook
	names   map[string]string
	pending []models.MarketEvent
}

// New creates a new Binance MarketStream.
func New(cfg Config, rest *phttp.Client, log *logger.Logger) drepo.MarketStream {
	return newClient(cfg, rest, log)
}

func newClient(cfg Config, rest *phttp.Client, log *logger.Logger) *Client {
	if rest == nil {
		rest = phttp.NewClient()
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 3 * time.Minute
	}
	names := make(map[string]string, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		names[RESTSymbol(s)] = s
	}
	return &Client{
		cfg:    cfg,
		rest:   rest,
		dialer: websocket.DefaultDialer,
		log:    log.With(logger.String("exchange", Exchange)),
		books:  make(map[string]*localBook, len(cfg.Symbols)),
		names:  names,
	}
}

// StreamURL returns the combined-stream endpoint for the configured symbols.
func (c *Client) StreamURL() string {
	streams := make([]string, 0, 3*len(c.cfg.Symbols))
	for _, s := range c.cfg.Symbols {
		streams = append(streams, streamNames(s)...)
	}
	return strings.TrimRight(c.cfg.WebsocketURL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	if len(c.cfg.Symbols) == 0 {
		return errors.New("binance: no symbols configured")
	}
	conn, _, err := c.dialer.DialContext(ctx, c.StreamURL(), nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("connected", logger.Strings("symbols", c.cfg.Symbols))
	return nil
}

// Subscribe seeds every book from a REST snapshot. Streams are selected by
// the connection URL, so diffs buffered since Connect are reconciled against
// the snapshot ids in the read loop.
func (c *Client) Subscribe(ctx context.Context) error {
	if !c.connected.Load() {
		return errors.New("binance not connected")
	}
	c.pending = c.pending[:0]
	for _, s := range c.cfg.Symbols {
		ev, err := c.resync(ctx, s)
		if err != nil {
			return err
		}
		c.pending = append(c.pending, ev)
		c.log.Info("subscribed", logger.String("symbol", s))
	}
	return nil
}

// resync replaces the local book with a fresh snapshot and returns it as a
// snapshot book event.
func (c *Client) resync(ctx context.Context, symbol string) (models.MarketEvent, error) {
	var snap depthSnapshot
	q := url.Values{}
	q.Set("symbol", RESTSymbol(symbol))
	q.Set("limit", strconv.Itoa(snapshotLimit(c.cfg.MaxDepth)))
	endpoint := strings.TrimRight(c.cfg.RESTURL, "/") + "/api/v3/depth"
	if err := c.rest.GetJSON(ctx, endpoint, q, &snap); err != nil {
		return nil, fmt.Errorf("binance snapshot %s: %w", symbol, err)
	}
	book := newLocalBook(c.cfg.MaxDepth)
	if err := book.reset(&snap); err != nil {
		return nil, fmt.Errorf("binance snapshot %s: %w", symbol, err)
	}
	c.books[RESTSymbol(symbol)] = book
	return &models.BookUpdate{Book: book.view(symbol), ReceiptTime: time.Now().UTC()}, nil
}

// Read streams market events and errors until the connection fails or ctx is
// done.
func (c *Client) Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error) {
	events := make(chan models.MarketEvent, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	stop := make(chan struct{})
	go c.pingLoop(ctx, conn, stop)

	go func() {
		defer close(events)
		defer close(errs)
		defer close(stop)

		emit := func(ev models.MarketEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, ev := range c.pending {
			if !emit(ev) {
				return
			}
		}
		c.pending = c.pending[:0]

		if conn == nil {
			errs <- errors.New("binance conn nil")
			return
		}
		deadline := 3 * c.cfg.PingInterval
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(deadline))
		})
		for {
			_ = conn.SetReadDeadline(time.Now().Add(deadline))
			_, frame, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("binance read: %w", err)
				}
				return
			}
			out, err := c.handleFrame(ctx, frame, time.Now().UTC())
			if err != nil {
				c.log.Warn("frame skipped", logger.Error(err))
			}
			for _, ev := range out {
				if !emit(ev) {
					return
				}
			}
		}
	}()

	return events, errs
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
		}
	}
}

// handleFrame decodes one combined-stream frame into zero or more events.
func (c *Client) handleFrame(ctx context.Context, frame []byte, receipt time.Time) ([]models.MarketEvent, error) {
	var env combinedFrame
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, nil
	}
	var head eventHeader
	if err := json.Unmarshal(env.Data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	symbol, ok := c.names[head.Symbol]
	if !ok {
		return nil, nil
	}

	switch head.Type {
	case eventDepth:
		return c.handleDepth(ctx, env.Data, symbol, receipt)
	case eventTicker:
		ev, err := decodeTicker(env.Data, symbol, receipt)
		if err != nil {
			return nil, err
		}
		return []models.MarketEvent{ev}, nil
	case eventTrade:
		ev, err := decodeTrade(env.Data, symbol, receipt)
		if err != nil {
			return nil, err
		}
		return []models.MarketEvent{ev}, nil
	default:
		return nil, nil
	}
}

func (c *Client) handleDepth(ctx context.Context, data []byte, symbol string, receipt time.Time) ([]models.MarketEvent, error) {
	var u depthUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode depth: %w", err)
	}
	book, ok := c.books[u.Symbol]
	if !ok {
		return nil, nil
	}
	delta, applied, err := book.apply(&u)
	if errors.Is(err, errSequenceGap) {
		c.log.Warn("depth gap, resyncing", logger.String("symbol", symbol), logger.Error(err))
		ev, rerr := c.resync(ctx, symbol)
		if rerr != nil {
			return nil, rerr
		}
		return []models.MarketEvent{ev}, nil
	}
	if err != nil || !applied {
		return nil, err
	}
	view := book.view(symbol)
	view.Timestamp = millis(u.EventTime)
	view.Delta = delta
	return []models.MarketEvent{&models.BookUpdate{Book: view, ReceiptTime: receipt}}, nil
}

func decodeTicker(data []byte, symbol string, receipt time.Time) (*models.TickerUpdate, error) {
	raw := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}
	return &models.TickerUpdate{
		Exchange:    Exchange,
		Symbol:      symbol,
		Bid:         decimalField(raw, "b"),
		Ask:         decimalField(raw, "a"),
		Raw:         raw,
		Timestamp:   millis(int64Field(raw, "E")),
		ReceiptTime: receipt,
	}, nil
}

func decodeTrade(data []byte, symbol string, receipt time.Time) (*models.TradeUpdate, error) {
	var t tradeMessage
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode trade: %w", err)
	}
	levels, err := parseLevels([][]string{{t.Price, t.Quantity}})
	if err != nil {
		return nil, fmt.Errorf("decode trade: %w", err)
	}
	side := "buy"
	if t.BuyerIsMaker {
		side = "sell"
	}
	return &models.TradeUpdate{
		Exchange:    Exchange,
		Symbol:      symbol,
		Side:        side,
		Price:       levels[0].Price,
		Amount:      levels[0].Amount,
		ID:          strconv.FormatInt(t.TradeID, 10),
		Timestamp:   millis(t.TradeTime),
		ReceiptTime: receipt,
	}, nil
}

// Reconnect closes, waits and reconnects with fresh snapshots.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.ReconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected.Load() }
