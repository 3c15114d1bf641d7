package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/EMayer0602/support-resistance-12-sub000/api"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/config"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/execution"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/infrastructure"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/push"
	"github.com/EMayer0602/support-resistance-12-sub000/internal/storage"
)

// App defines the application structure and its dependencies
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *pgxpool.Pool
	NC          *nats.Conn
	JS          nats.JetStreamContext
	Store       *storage.Store
	Ledger      *execution.PositionLedger
	Tracker     *execution.IdempotencyTracker
	Runner      *execution.Runner
	Broker      execution.BrokerClient
	Instruments []config.InstrumentConfig
	Gateway     *push.Gateway
	HTTPServer  *http.Server

	tradeSaver *storage.TradeSaver
	orderSaver *storage.OrderSaver
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	infrastructure.Init()
	logger := infrastructure.Logger

	return &App{
		Config: &cfg,
		Logger: logger,
	}, nil
}

// Init initializes all application components
func (a *App) Init(ctx context.Context) error {
	// 1. Database
	dbPool, err := pgxpool.Connect(ctx, a.Config.DB_DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = dbPool

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 2. NATS
	nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.NC = nc
	a.JS = js

	// 3. Durable trading state
	store, err := storage.NewStore(a.Config.StateDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	a.Store = store

	ledger, err := execution.NewPositionLedger(store, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load position ledger: %w", err)
	}
	a.Ledger = ledger

	tracker, err := execution.NewIdempotencyTracker(store, a.Logger, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to load idempotency tracker: %w", err)
	}
	a.Tracker = tracker

	// 4. Instruments and execution services. The broker transport is an
	// external collaborator; the built-in paper broker fills orders against
	// its own book.
	instruments, err := config.LoadInstruments(a.Config.Instruments)
	if err != nil {
		return fmt.Errorf("failed to load instruments: %w", err)
	}
	a.Instruments = instruments

	a.Broker = execution.NewPaperBroker()
	a.Runner = execution.NewRunner(a.Logger, store, ledger, tracker, a.Broker, js, a.Config.DryRun)
	a.Gateway = push.NewGateway(js, a.Logger)

	return nil
}

// Run starts the application services and the HTTP server
func (a *App) Run(ctx context.Context) error {
	a.tradeSaver = storage.NewTradeSaver(a.DB, a.Logger, 1*time.Second, 100)
	a.orderSaver = storage.NewOrderSaver(a.DB, a.Logger)
	go a.tradeSaver.Run(ctx)

	a.startPersistenceService()
	a.startSearchWorker(ctx)
	a.startQuoteWorker(ctx)

	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(),
	}

	go func() {
		a.Logger.Info("starting http server",
			zap.String("port", a.Config.Port),
			zap.Bool("dry_run", a.Config.DryRun),
		)
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown()
}

// waitForShutdown handles graceful shutdown signals
func (a *App) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	a.Logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.tradeSaver.Flush(ctx)
	a.NC.Close()
	a.DB.Close()

	return nil
}

// initDatabase runs the database initialization script
func (a *App) initDatabase(ctx context.Context) error {
	sqlFile := "scripts/init.sql"
	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return fmt.Errorf("failed to read init script: %w", err)
	}

	_, err = a.DB.Exec(ctx, string(content))
	if err != nil {
		return fmt.Errorf("failed to execute init script: %w", err)
	}

	a.Logger.Info("database initialized successfully")
	return nil
}

// setupRouter configures the Gin router and its routes
func (a *App) setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api.SetJWTSecret(a.Config.JWTSecret)
	netter := execution.NewNetter(a.Logger)
	apiHandler := api.NewHandler(a.DB, a.Logger, a.tradeSaver, a.Instruments, netter, a.Ledger, a.Runner, a.Broker)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/register", apiHandler.Register)
		v1.POST("/login", apiHandler.Login)
		v1.GET("/bars/:symbol", apiHandler.GetHistoryBars)
	}

	protected := r.Group("/api/v1")
	protected.Use(api.AuthMiddleware())
	{
		protected.POST("/backtest", apiHandler.RunBacktest)
		protected.POST("/search", apiHandler.SearchWindows)
		protected.POST("/session/preview", apiHandler.PreviewOrders)
		protected.POST("/session/run", apiHandler.RunSession)
		protected.GET("/positions", apiHandler.GetPositions)
		protected.POST("/positions/resync", apiHandler.ResyncLedger)
	}

	r.GET("/ws", func(c *gin.Context) {
		a.Gateway.ServeHTTP(c.Writer, c.Request)
	})

	return r
}
