package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"FeedRelay/internal/domain/models"
	phttp "FeedRelay/pkg/http"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotBody = `{"lastUpdateId":100,"bids":[["100.0","1.0"],["99.5","2.0"]],"asks":[["100.5","1.5"],["101.0","2.5"]]}`

func restServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(snapshotBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, restURL string) *Client {
	t.Helper()
	c := newClient(Config{
		RESTURL:  restURL,
		Symbols:  []string{"BTC-USDT"},
		MaxDepth: 30,
	}, phttp.NewClient(phttp.WithTimeout(2*time.Second)), nil)
	c.connected.Store(true)
	return c
}

func frame(t *testing.T, stream string, data map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"stream": stream, "data": data})
	require.NoError(t, err)
	return b
}

func TestSubscribeSeedsSnapshotEvent(t *testing.T) {
	c := testClient(t, restServer(t, nil).URL)

	require.NoError(t, c.Subscribe(context.Background()))
	require.Len(t, c.pending, 1)

	ev, ok := c.pending[0].(*models.BookUpdate)
	require.True(t, ok)
	assert.Equal(t, "BTC-USDT", ev.Book.Symbol)
	assert.Nil(t, ev.Book.Delta)
	assert.Nil(t, ev.Book.Timestamp)
	assert.Equal(t, 2, ev.Book.Bids.Len())
}

func TestHandleDepthFrame(t *testing.T) {
	c := testClient(t, restServer(t, nil).URL)
	require.NoError(t, c.Subscribe(context.Background()))
	receipt := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)

	out, err := c.handleFrame(context.Background(), frame(t, "btcusdt@depth@100ms", map[string]any{
		"e": "depthUpdate", "E": 1704067200000, "s": "BTCUSDT",
		"U": 101, "u": 102,
		"b": [][]string{{"100.0", "0.0"}},
		"a": [][]string{{"100.25", "3.0"}},
	}), receipt)
	require.NoError(t, err)
	require.Len(t, out, 1)

	ev := out[0].(*models.BookUpdate)
	require.NotNil(t, ev.Book.Delta)
	require.NotNil(t, ev.Book.Timestamp)
	assert.Equal(t, time.UnixMilli(1704067200000).UTC(), *ev.Book.Timestamp)
	assert.EqualValues(t, 102, *ev.Book.SequenceNumber)
	assert.Equal(t, receipt, ev.ReceiptTime)
	assert.False(t, ev.Book.Bids.Has(decimal.RequireFromString("100.0")))
	assert.True(t, ev.Book.Asks.Has(decimal.RequireFromString("100.25")))
}

func TestHandleDepthGapResyncs(t *testing.T) {
	var hits atomic.Int32
	c := testClient(t, restServer(t, &hits).URL)
	require.NoError(t, c.Subscribe(context.Background()))

	out, err := c.handleFrame(context.Background(), frame(t, "btcusdt@depth@100ms", map[string]any{
		"e": "depthUpdate", "E": 1704067200000, "s": "BTCUSDT",
		"U": 150, "u": 151,
	}), time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Nil(t, out[0].(*models.BookUpdate).Book.Delta)
	assert.EqualValues(t, 2, hits.Load())
}

func TestHandleTickerFrame(t *testing.T) {
	c := testClient(t, "")

	out, err := c.handleFrame(context.Background(), frame(t, "btcusdt@ticker", map[string]any{
		"e": "24hrTicker", "E": 1704067200000, "s": "BTCUSDT",
		"b": "100.0", "B": "7.0", "a": "100.5", "A": "8.0", "c": "100.2", "C": 1704067200001,
	}), time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)

	ev := out[0].(*models.TickerUpdate)
	require.NotNil(t, ev.Bid)
	require.NotNil(t, ev.Ask)
	assert.Equal(t, "100", ev.Bid.String())
	assert.Equal(t, "100.5", ev.Ask.String())
	assert.Nil(t, ev.Last)
	assert.Equal(t, "100.2", ev.Raw["c"])
	require.NotNil(t, ev.Timestamp)
}

func TestHandleTradeFrame(t *testing.T) {
	c := testClient(t, "")

	out, err := c.handleFrame(context.Background(), frame(t, "btcusdt@trade", map[string]any{
		"e": "trade", "E": 1704067200000, "s": "BTCUSDT",
		"t": 42, "p": "100.1", "q": "0.5", "T": 1704067199999, "m": true, "M": true,
	}), time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)

	ev := out[0].(*models.TradeUpdate)
	assert.Equal(t, "sell", ev.Side)
	assert.Equal(t, "42", ev.ID)
	assert.True(t, ev.Price.Equal(decimal.RequireFromString("100.1")))
	assert.Equal(t, time.UnixMilli(1704067199999).UTC(), *ev.Timestamp)
}

func TestHandleFrameIgnoresUnknownSymbol(t *testing.T) {
	c := testClient(t, "")

	out, err := c.handleFrame(context.Background(), frame(t, "xrpusdt@trade", map[string]any{
		"e": "trade", "s": "XRPUSDT", "p": "1", "q": "1",
	}), time.Now())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReadStreamsSnapshotThenDiffs(t *testing.T) {
	rest := restServer(t, nil)
	upgrader := websocket.Upgrader{}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stream", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("streams"), "btcusdt@depth@100ms")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate","E":1704067200000,"s":"BTCUSDT","U":101,"u":101,"b":[["99.5","0"]],"a":[]}}`))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(ws.Close)

	c := newClient(Config{
		WebsocketURL: "ws" + strings.TrimPrefix(ws.URL, "http"),
		RESTURL:      rest.URL,
		Symbols:      []string{"BTC-USDT"},
		MaxDepth:     30,
	}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())

	events, _ := c.Read(ctx)
	first := (<-events).(*models.BookUpdate)
	assert.Nil(t, first.Book.Delta)
	second := (<-events).(*models.BookUpdate)
	require.NotNil(t, second.Book.Delta)
	assert.Len(t, second.Book.Delta.Bids, 1)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}
