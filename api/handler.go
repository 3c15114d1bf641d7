package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/EMayer0602/support-resistance-12-sub000/internal/config"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/engine"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/execution"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/infrastructure"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/model"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/storage"
)

type Handler struct {
	db          *pgxpool.Pool
	logger      *zap.Logger
	loader      *engine.DataLoader
	saver       *storage.TradeSaver
	instruments map[string]config.InstrumentConfig
	netter      *execution.Netter
	ledger      *execution.PositionLedger
	runner      *execution.Runner
	broker      execution.BrokerClient
}

func NewHandler(db *pgxpool.Pool, logger *zap.Logger, saver *storage.TradeSaver,
	instruments []config.InstrumentConfig, netter *execution.Netter,
	ledger *execution.PositionLedger, runner *execution.Runner, broker execution.BrokerClient) *Handler {

	// the stored config carries the normalized symbol too, so signals derived
	// from it always find their config again
	bySymbol := make(map[string]config.InstrumentConfig, len(instruments))
	for _, ic := range instruments {
		ic.Symbol = normalizeSymbol(ic.Symbol)
		bySymbol[ic.Symbol] = ic
	}

	return &Handler{
		db:          db,
		logger:      logger,
		loader:      engine.NewDataLoader(db),
		saver:       saver,
		instruments: bySymbol,
		netter:      netter,
		ledger:      ledger,
		runner:      runner,
		broker:      broker,
	}
}

func normalizeSymbol(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	return s
}

// Auth Handlers

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	var userID int64
	err = h.db.QueryRow(c.Request.Context(),
		"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id",
		req.Email, string(hash)).Scan(&userID)

	if err != nil {
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user created", "id": userID})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID int64
	var hash string
	err := h.db.QueryRow(c.Request.Context(),
		"SELECT id, password_hash FROM users WHERE email = $1", req.Email).Scan(&userID, &hash)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := GenerateToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Data Handlers

func (h *Handler) GetHistoryBars(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))

	rows, err := h.db.Query(c.Request.Context(),
		"SELECT date, symbol, open, high, low, close, volume FROM market_bars WHERE symbol = $1 ORDER BY date DESC LIMIT 250",
		symbol)
	if err != nil {
		h.logger.Error("failed to query bars", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer rows.Close()

	bars := make([]model.Bar, 0)
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Date, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			h.logger.Error("failed to scan bar", zap.Error(err))
			continue
		}
		bars = append(bars, b)
	}

	c.JSON(http.StatusOK, bars)
}

// Backtest Handlers

type backtestRequest struct {
	Symbol         string            `json:"symbol" binding:"required"`
	Direction      model.Direction   `json:"direction" binding:"required"`
	PastWindow     int               `json:"past_window" binding:"required"`
	TradeWindow    int               `json:"trade_window" binding:"required"`
	Capital        decimal.Decimal   `json:"capital"`
	CommissionRate decimal.Decimal   `json:"commission_rate"`
	MinCommission  decimal.Decimal   `json:"min_commission"`
	RoundingFactor int64             `json:"rounding_factor"`
	TradeOn        model.PriceSource `json:"trade_on"`
	StartDate      time.Time         `json:"start_date" binding:"required"`
	EndDate        time.Time         `json:"end_date" binding:"required"`
}

func (r backtestRequest) instrumentConfig() config.InstrumentConfig {
	ic := config.InstrumentConfig{
		Symbol:         normalizeSymbol(r.Symbol),
		CapitalLong:    r.Capital,
		CapitalShort:   r.Capital,
		RoundingFactor: r.RoundingFactor,
		TradeOn:        r.TradeOn,
		PastWindow:     r.PastWindow,
		TradeWindow:    r.TradeWindow,
		CommissionRate: r.CommissionRate,
		MinCommission:  r.MinCommission,
	}
	if ic.RoundingFactor <= 0 {
		ic.RoundingFactor = 1
	}
	if ic.TradeOn == "" {
		ic.TradeOn = model.TradeOnClose
	}
	return ic
}

func (h *Handler) RunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ic := req.instrumentConfig()
	series, err := h.loader.LoadBars(c.Request.Context(), ic.Symbol, req.StartDate, req.EndDate)
	if err != nil {
		h.logger.Error("failed to load bars for backtest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load data"})
		return
	}

	report, err := engine.BacktestVerified(series, ic, req.Direction, req.PastWindow, req.TradeWindow)
	if err != nil {
		h.logger.Error("backtest reconciliation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trade log reconciliation failed"})
		return
	}
	infrastructure.BacktestRuns.Inc()

	if h.saver != nil {
		for _, t := range report.Trades {
			h.saver.Add(t)
		}
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) SearchWindows(c *gin.Context) {
	var req struct {
		backtestRequest
		PastRange  config.WindowRange `json:"past_range" binding:"required"`
		TradeRange config.WindowRange `json:"trade_range" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ic := req.instrumentConfig()
	series, err := h.loader.LoadBars(c.Request.Context(), ic.Symbol, req.StartDate, req.EndDate)
	if err != nil {
		h.logger.Error("failed to load bars for search", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load data"})
		return
	}

	result := engine.SearchWindows(series, ic, req.Direction, req.PastRange, req.TradeRange)
	c.JSON(http.StatusOK, result)
}

// Session Handlers

func (h *Handler) sessionParams(c *gin.Context) (time.Time, execution.Session, bool) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, "", false
	}
	session := execution.Session(strings.ToUpper(c.DefaultQuery("session", string(execution.SessionOpen))))
	if session != execution.SessionOpen && session != execution.SessionClose {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session must be open or close"})
		return time.Time{}, "", false
	}
	return date, session, true
}

// sessionSignals derives every instrument's signals and keeps the ones
// executing on the given date.
func (h *Handler) sessionSignals(ctx context.Context, date time.Time) ([]model.Signal, error) {
	var today []model.Signal
	for _, ic := range h.instruments {
		series, err := h.loader.LoadBars(ctx, ic.Symbol, date.AddDate(-2, 0, 0), date)
		if err != nil {
			return nil, err
		}
		if len(series) == 0 {
			h.logger.Warn("no bars for instrument, skipping", zap.String("symbol", ic.Symbol))
			continue
		}

		var directions []model.Direction
		if ic.LongEnabled {
			directions = append(directions, model.DirectionLong)
		}
		if ic.ShortEnabled {
			directions = append(directions, model.DirectionShort)
		}

		for _, dir := range directions {
			signals := engine.SessionSignals(series, ic, dir, date)
			for _, s := range signals {
				infrastructure.SignalsGenerated.WithLabelValues(s.Symbol, string(s.Direction)).Inc()
			}
			today = append(today, signals...)
		}
	}
	return today, nil
}

func (h *Handler) PreviewOrders(c *gin.Context) {
	date, _, ok := h.sessionParams(c)
	if !ok {
		return
	}

	signals, err := h.sessionSignals(c.Request.Context(), date)
	if err != nil {
		h.logger.Error("failed to derive session signals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive signals"})
		return
	}

	orders, discrepancies := h.netter.Net(signals, h.ledger, h.instruments)
	c.JSON(http.StatusOK, gin.H{"orders": orders, "discrepancies": discrepancies})
}

func (h *Handler) RunSession(c *gin.Context) {
	date, session, ok := h.sessionParams(c)
	if !ok {
		return
	}

	signals, err := h.sessionSignals(c.Request.Context(), date)
	if err != nil {
		h.logger.Error("failed to derive session signals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive signals"})
		return
	}

	orders, discrepancies := h.netter.Net(signals, h.ledger, h.instruments)
	executed, err := h.runner.Execute(c.Request.Context(), date, session, orders)
	if err != nil {
		if errors.Is(err, execution.ErrSessionDone) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("session aborted", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    err.Error(),
			"executed": executed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"executed": executed, "discrepancies": discrepancies})
}

// Position Handlers

func (h *Handler) GetPositions(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Snapshot())
}

// ResyncLedger replaces the local ledger with broker-reported positions.
func (h *Handler) ResyncLedger(c *gin.Context) {
	positions, err := h.broker.Positions(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to fetch broker positions", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "broker positions unavailable"})
		return
	}
	if err := h.ledger.Resync(positions); err != nil {
		h.logger.Error("failed to persist resynced ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist ledger"})
		return
	}
	c.JSON(http.StatusOK, positions)
}
