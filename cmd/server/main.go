package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"optionbot/internal/automation"
	"optionbot/internal/config"
	cronrunner "optionbot/internal/cron"
	"optionbot/internal/db"
	"optionbot/internal/handler"
	"optionbot/internal/logger"
	"optionbot/internal/oracle"
	"optionbot/internal/pipeline"
	gormrepository "optionbot/internal/repository/gorm"
	signalgen "optionbot/internal/signal"
	"optionbot/internal/sizing"
)

func main() {
	cfgPath := os.Getenv("OB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("OB_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	var surfaces pipeline.SurfaceFactory
	if !cfg.Trading.SimulationMode {
		browserCfg := automation.BrowserConfig{
			LoginURL:     cfg.Venue.LoginURL,
			TradingURL:   cfg.Venue.TradingURL,
			ElementWait:  cfg.Automation.ElementWait,
			NavigateWait: cfg.Automation.NavigateWait,
			PollInterval: cfg.Automation.PollInterval,
		}
		devtoolsURL := cfg.Automation.DevToolsURL
		surfaces = func(ctx context.Context) (automation.Surface, error) {
			browser, err := automation.OpenBrowser(ctx, devtoolsURL, browserCfg, logger)
			if err != nil {
				return nil, err
			}
			return browser, nil
		}
		logger.Info("live execution enabled", zap.String("devtools_url", devtoolsURL))
	} else {
		logger.Info("simulation mode: trades settle without touching the venue")
	}

	pipe := &pipeline.Pipeline{
		Repo:     store,
		Signals:  &signalgen.Generator{Period: cfg.Trading.RSIPeriod},
		Sizer:    &sizing.Sizer{Ledger: store, Logger: logger, Window: cfg.Trading.ChargingWindow},
		Oracle:   oracle.NewRandomOracle(time.Now().UnixNano()),
		Surfaces: surfaces,
		Logger:   logger,
		Trading:  cfg.Trading,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	webhookHandler := &handler.WebhookHandler{Pipeline: pipe, Logger: logger}
	webhookHandler.Register(engine)
	simulateHandler := &handler.SimulateHandler{Pipeline: pipe, Logger: logger}
	simulateHandler.Register(engine)
	tradeHandler := &handler.TradeHandler{Repo: store, DefaultLimit: cfg.Trading.HistoryPageLimit}
	tradeHandler.Register(engine)
	accountHandler := &handler.AccountHandler{Repo: store, Surfaces: surfaces, Logger: logger}
	accountHandler.Register(engine)
	strategyHandler := &handler.StrategyHandler{Repo: store, Trading: cfg.Trading}
	strategyHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add(cfg.Cron.SyntheticCycle, func(ctx context.Context) {
			runAutoTradeCycle(ctx, store, pipe, logger)
		})
		if err != nil {
			logger.Warn("cron register synthetic cycle failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// runAutoTradeCycle runs one synthetic decision cycle for every account that
// opted in. Cycles for distinct accounts run concurrently; the pipeline's
// per-account lock keeps each account serialized with webhook traffic.
func runAutoTradeCycle(ctx context.Context, store *gormrepository.Store, pipe *pipeline.Pipeline, logger *zap.Logger) {
	accounts, err := store.ListAutoTradeAccounts(ctx)
	if err != nil {
		logger.Warn("auto-trade account scan failed", zap.Error(err))
		return
	}
	for _, account := range accounts {
		account := account
		go func() {
			res, err := pipe.RunSynthetic(ctx, pipeline.SyntheticRequest{
				AccountID: account.ID,
				Charging:  account.ChargingMode,
			})
			if err != nil {
				logger.Warn("auto-trade cycle failed",
					zap.String("account_id", account.ID),
					zap.Error(err),
				)
				return
			}
			if !res.Fired {
				logger.Debug("auto-trade cycle idle", zap.String("account_id", account.ID))
			}
		}()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
