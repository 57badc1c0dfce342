// Package proxy implements the rotachat relay: an authenticated streaming
// chat endpoint that forwards conversations to the configured upstream
// provider, re-emits provider chunks verbatim as SSE, and records one usage
// log row per generation attempt.
package proxy

import (
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/pkg/auth"
	"github.com/rotaworks/rotachat/pkg/llm"
	"github.com/rotaworks/rotachat/pkg/storage"
	"github.com/rotaworks/rotachat/proxy/metrics"
	"github.com/rotaworks/rotachat/proxy/worker"
)

// Proxy is the relay server. It holds no client-visible state: each request
// is independent except for the usage log side effect, which runs on the
// worker pool.
type Proxy struct {
	config     Config
	driver     storage.Driver
	verifier   auth.Verifier
	workerPool *worker.Pool
	logger     *zap.Logger
	httpClient *http.Client
	server     *fiber.App
	metrics    *metrics.Metrics
	secrets    func(string) string
}

// New creates a new Proxy.
func New(config Config, driver storage.Driver, verifier auth.Verifier, logger *zap.Logger) (*Proxy, error) {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	wp, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  config.Publisher,
		Metrics:    m,
		NumWorkers: config.NumWorkers,
		QueueSize:  config.QueueSize,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	secrets := config.SecretLookup
	if secrets == nil {
		secrets = os.Getenv
	}

	p := &Proxy{
		config:     config,
		driver:     driver,
		verifier:   verifier,
		workerPool: wp,
		logger:     logger,
		server:     app,
		metrics:    m,
		secrets:    secrets,
		httpClient: &http.Client{
			// Generations can be slow; rely on streaming reads, not a
			// request deadline tight enough to kill long completions.
			Timeout: 5 * time.Minute,
		},
	}

	app.Use(corsMiddleware)
	app.Get("/ping", p.handlePing)
	app.Get("/v1/models", p.handleListModels)
	app.Post("/v1/chat", p.handleChat)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return p, nil
}

// Run starts the relay server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting relay server",
		zap.String("listen", p.config.ListenAddr),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting relay server",
		zap.String("listen", listener.Addr().String()),
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the relay and drains the worker pool.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

// App exposes the fiber app for in-process testing.
func (p *Proxy) App() *fiber.App {
	return p.server
}

func (p *Proxy) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleListModels serves the active model configurations, sorted by
// ordering. Secret references and system prompts stay server-side.
func (p *Proxy) handleListModels(c *fiber.Ctx) error {
	configs, err := p.driver.ActiveModelConfigs(c.Context())
	if err != nil {
		p.logger.Error("listing model configs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	options := make([]llm.ModelOption, 0, len(configs))
	for _, cfg := range configs {
		options = append(options, llm.ModelOption{
			ID:              cfg.ID,
			DisplayName:     cfg.DisplayName,
			ModelIdentifier: cfg.ModelIdentifier,
			BaseURL:         cfg.BaseURL,
			Ordering:        cfg.Ordering,
		})
	}

	return c.JSON(options)
}
