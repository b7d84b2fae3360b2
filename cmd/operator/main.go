package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupRouter mounts the provider, readings and completion fakes on one engine.
func SetupRouter(provider *MockProvider, lectionary *Lectionary) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/:phone/messages", provider.SendMessage)
		v1.POST("/chat/completions", lectionary.Complete)
	}
	router.GET("/readings/:date", lectionary.GetReadings)
	router.GET("/health", provider.HealthCheck)
	router.PUT("/config", provider.UpdateConfig)
	router.GET("/debug/messages", provider.ListSent)

	return router
}

type operatorConfig struct {
	ListenAddr   string        `env:"OPERATOR_LISTEN_ADDR,default=:8090"`
	DeliveryRate float64       `env:"OPERATOR_DELIVERY_RATE,default=1"`
	MinDelay     time.Duration `env:"OPERATOR_MIN_DELAY,default=50ms"`
	MaxDelay     time.Duration `env:"OPERATOR_MAX_DELAY,default=300ms"`
	Token        string        `env:"PROVIDER_TOKEN"`
	Pretty       bool          `env:"OPERATOR_PRETTY_LOGS,default=true"`
}

func loadOperatorConfig() (operatorConfig, error) {
	var cfg operatorConfig
	_, err := env.UnmarshalFromEnviron(&cfg)
	return cfg, err
}

func main() {
	cfg, err := loadOperatorConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid operator config")
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Str("addr", cfg.ListenAddr).
		Float64("delivery_rate", cfg.DeliveryRate).
		Dur("min_delay", cfg.MinDelay).
		Dur("max_delay", cfg.MaxDelay).
		Bool("auth", cfg.Token != "").
		Msg("mock operator starting")

	provider := NewMockProvider(cfg.DeliveryRate, cfg.MinDelay, cfg.MaxDelay, cfg.Token)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           SetupRouter(provider, &Lectionary{}),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("mock operator stopped")
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Int("sent", len(provider.Sent())).Msg("mock operator exited")
}
