package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"RiskPulse/internal/domain"
	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/internal/usecase"
	xhttp "RiskPulse/pkg/http"
	xlogger "RiskPulse/pkg/logger"
	xutil "RiskPulse/pkg/util"
)

// RiskEchoHandler exposes the risk engine over HTTP.
type RiskEchoHandler struct {
	logger *xlogger.Logger
	engine *usecase.Engine
	rl     *ratelimit.Limiter
	now    func() time.Time
}

type RiskHandlerOption func(*RiskEchoHandler)

// WithWriteLimiter throttles mutating and batch endpoints per client IP.
func WithWriteLimiter(rl *ratelimit.Limiter) RiskHandlerOption {
	return func(h *RiskEchoHandler) { h.rl = rl }
}

func WithHandlerClock(now func() time.Time) RiskHandlerOption {
	return func(h *RiskEchoHandler) { h.now = now }
}

func NewRiskEchoHandler(logger *xlogger.Logger, engine *usecase.Engine, opts ...RiskHandlerOption) *RiskEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &RiskEchoHandler{logger: logger, engine: engine, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *RiskEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/risk")
	g.GET("/assess", h.Assess)
	g.POST("/batch", h.Batch, h.throttle)
	g.PUT("/bounds", h.UpdateBounds, h.throttle)
	g.PUT("/coefficient", h.SetCoefficient, h.throttle)
	g.POST("/outcomes", h.RecordOutcome, h.throttle)
	g.GET("/alerts", h.Alerts)
	g.GET("/momentum", h.Momentum)
	g.GET("/distribution", h.Distribution)
	g.GET("/levels", h.Levels)
	g.GET("/overrides", h.Overrides)
	g.GET("/history", h.History)
}

func (h *RiskEchoHandler) throttle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.RealIP() + ":" + c.Path()
		if h.rl != nil && !h.rl.Allow(key) {
			wait := h.rl.RetryAfter(key)
			h.logger.Warn("risk api rate limited", xlogger.String("remote", c.RealIP()), xlogger.String("route", c.Path()))
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError(wait.Milliseconds()))
		}
		return next(c)
	}
}

// Assess returns the assessment at the given price, or at the live price when
// price is omitted.
func (h *RiskEchoHandler) Assess(c echo.Context) error {
	req := &models.AssessRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	var (
		res models.Assessment
		err error
	)
	if req.Price != nil {
		res, err = h.engine.Assess(ctx, req.Symbol, *req.Price)
	} else {
		res, err = h.engine.AssessLive(ctx, req.Symbol)
	}
	if err != nil {
		return h.fail(c, "assess", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Batch(c echo.Context) error {
	req := &models.BatchAssessRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	items := h.engine.BatchAssess(c.Request().Context(), req.Symbols, req.Prices)
	return xhttp.ListResponse(c, items, int64(len(items)))
}

func (h *RiskEchoHandler) UpdateBounds(c echo.Context) error {
	req := &models.UpdateBoundsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sb, err := h.engine.UpdateSymbolBounds(c.Request().Context(), req.Symbol, req.MinPrice, req.MaxPrice, req.Reason, req.CreatedBy)
	if err != nil {
		return h.fail(c, "update bounds", err)
	}
	return xhttp.SuccessResponse(c, sb)
}

func (h *RiskEchoHandler) SetCoefficient(c echo.Context) error {
	req := &models.CoefficientOverrideRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	o, err := h.engine.SetCoefficientOverride(c.Request().Context(), req.Symbol, req.Value, req.Reason, req.CreatedBy)
	if err != nil {
		return h.fail(c, "set coefficient", err)
	}
	return xhttp.SuccessResponse(c, o)
}

func (h *RiskEchoHandler) RecordOutcome(c echo.Context) error {
	req := &models.RecordOutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var ts time.Time
	if req.Timestamp != "" {
		t, ok := xutil.ParseTime(req.Timestamp)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_INVALID_TIMESTAMP", "Timestamp", "timestamp must be RFC3339 or unix time", http.StatusBadRequest))
		}
		ts = t
	}
	o, err := h.engine.RecordOutcome(c.Request().Context(), req.Symbol, req.ActualPrice, ts)
	if err != nil {
		return h.fail(c, "record outcome", err)
	}
	return xhttp.CreatedResponse(c, o)
}

func (h *RiskEchoHandler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	var price float64
	if req.Price != nil {
		price = *req.Price
	} else {
		a, err := h.engine.AssessLive(ctx, req.Symbol)
		if err != nil {
			return h.fail(c, "alerts", err)
		}
		price = a.CurrentPrice
	}
	alerts, err := h.engine.GetAlerts(ctx, req.Symbol, price)
	if err != nil {
		return h.fail(c, "alerts", err)
	}
	return xhttp.ListResponse(c, alerts, int64(len(alerts)))
}

func (h *RiskEchoHandler) Momentum(c echo.Context) error {
	req := &models.MomentumRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	m, err := h.engine.Momentum(c.Request().Context(), req.Symbol, req.WindowDays)
	if err != nil {
		return h.fail(c, "momentum", err)
	}
	return xhttp.SuccessResponse(c, m)
}

func (h *RiskEchoHandler) Distribution(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	bands, err := h.engine.RiskDistribution(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "distribution", err)
	}
	return xhttp.ListResponse(c, bands, int64(len(bands)))
}

func (h *RiskEchoHandler) Levels(c echo.Context) error {
	req := &models.RiskLevelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	levels, err := h.engine.RiskLevels(c.Request().Context(), req.Symbol, req.Step)
	if err != nil {
		return h.fail(c, "levels", err)
	}
	return xhttp.ListResponse(c, levels, int64(len(levels)))
}

func (h *RiskEchoHandler) Overrides(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.engine.Overrides(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "overrides", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *RiskEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := h.now().UTC()
	to := xutil.ParseTimeDefault(req.To, now)
	from := xutil.ParseTimeDefault(req.From, to.Add(-24*time.Hour))
	if !from.Before(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be before to"))
	}
	rows, err := h.engine.History(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *RiskEchoHandler) Health(c echo.Context) error {
	if err := h.engine.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.UnavailableResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, "ok")
}

func (h *RiskEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.IsServerError() {
		h.logger.Error("risk "+op+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps engine errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, domain.ErrSymbolNotFound):
		return xhttp.NewAppError("ERR_SYMBOL_NOT_FOUND", "symbol", err.Error(), http.StatusNotFound).WithError(err)
	case errors.Is(err, domain.ErrInvalidPrice):
		return xhttp.NewAppError("ERR_INVALID_PRICE", "price", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, domain.ErrInvalidBounds):
		return xhttp.NewAppError("ERR_INVALID_BOUNDS", "", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return xhttp.NewAppError("ERR_PERSISTENCE_UNAVAILABLE", "", "persistence unavailable, retry later", http.StatusServiceUnavailable).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
