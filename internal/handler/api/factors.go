package api

import (
	"strings"

	drepo "FeedRelay/internal/domain/repository"
	xhttp "FeedRelay/pkg/http"
	"FeedRelay/pkg/http/middleware"
	xlogger "FeedRelay/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FactorRequest addresses one latest factor snapshot.
type FactorRequest struct {
	Exchange string `param:"exchange" validate:"required,alpha,max=32"`
	Symbol   string `param:"symbol" validate:"required,max=32"`
}

// FactorsHandler serves the latest factor snapshots over HTTP.
type FactorsHandler struct {
	logger  *xlogger.Logger
	store   drepo.FactorStore
	limiter *middleware.Limiter
}

func NewFactorsHandler(logger *xlogger.Logger, store drepo.FactorStore, limiter *middleware.Limiter) *FactorsHandler {
	return &FactorsHandler{logger: logger, store: store, limiter: limiter}
}

func (h *FactorsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/v1/factors")
	if h.limiter != nil {
		g.Use(middleware.RateLimit(h.limiter))
	}
	g.GET("", h.List)
	g.GET("/:exchange/:symbol", h.Get)
}

func (h *FactorsHandler) List(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.store.List())
}

func (h *FactorsHandler) Get(c echo.Context) error {
	req := &FactorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	exchange := strings.ToLower(req.Exchange)
	symbol := strings.ToUpper(req.Symbol)

	f, ok := h.store.Get(exchange, symbol)
	if !ok {
		h.logger.Debug("factor not found", xlogger.String("exchange", exchange), xlogger.String("symbol", symbol))
		return xhttp.NotFoundResponse(c, nil)
	}
	return xhttp.SuccessResponse(c, f)
}
