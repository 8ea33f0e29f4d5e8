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

	"tradewithme/internal/chain"
	"tradewithme/internal/config"
	cronrunner "tradewithme/internal/cron"
	"tradewithme/internal/db"
	"tradewithme/internal/handler"
	"tradewithme/internal/logger"
	gormrepository "tradewithme/internal/repository/gorm"
	"tradewithme/internal/service"
	"tradewithme/internal/session"
	"tradewithme/internal/ws"
)

func main() {
	cfgPath := os.Getenv("TW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TW_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.Postgres)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	chainClient, err := chain.NewClient(cfg.Chain)
	if err != nil {
		log.Fatal("chain client init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := gormrepository.New(dbConn.Gorm)

	metadataCache, err := service.NewMetadataCache(ctx, store, chainClient,
		&http.Client{Timeout: cfg.Chain.Timeout}, log)
	if err != nil {
		log.Fatal("metadata cache init failed", zap.Error(err))
	}

	balances := session.NewTokenAmountCache(cfg.Session.BalanceTTL)
	sessions := session.NewSharedSessions(balances, cfg.Session.SendBuffer)

	tradeService := &service.TradeService{Repo: store, Sessions: sessions, Logger: log}
	tokenService := &service.TokenService{Chain: chainClient, Metadata: metadataCache, Logger: log}
	transactionService := &service.TransactionService{Chain: chainClient, Logger: log}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	wsHandler := &ws.Handler{
		Sessions: sessions,
		Balances: balances,
		Tokens:   tokenService,
		Logger:   log,
	}

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	tradeHandler := &handler.TradeHandler{
		Trades:       tradeService,
		Transactions: transactionService,
		Sessions:     sessions,
		WS:           wsHandler,
	}
	tradeHandler.Register(engine)
	tokenHandler := &handler.TokenHandler{Tokens: tokenService}
	tokenHandler.Register(engine)

	cronRunner := cronrunner.New(log, ctx)
	_, err = cronRunner.Add("trade expiry", cfg.Session.ExpireCron, func(ctx context.Context) error {
		_, err := tradeService.ExpireStaleTrades(ctx, cfg.Session.TradeTTL)
		return err
	})
	if err != nil {
		log.Warn("cron register trade expiry failed", zap.Error(err))
	}
	_, err = cronRunner.Add("session prune", "@every 5m", func(ctx context.Context) error {
		if n := sessions.PruneIdle(); n > 0 {
			log.Info("pruned idle sessions", zap.Int("count", n))
		}
		return nil
	})
	if err != nil {
		log.Warn("cron register session prune failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
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
