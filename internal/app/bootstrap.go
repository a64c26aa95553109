package app

import (
	"fmt"
	"log"
	"strings"

	"gigwatch/internal/delivery/http/handler"
	"gigwatch/internal/delivery/http/middleware"
	"gigwatch/internal/infrastructure/cache"
	"gigwatch/internal/observability"
	"gigwatch/internal/pipeline"
	"gigwatch/internal/pkg/response"
	"gigwatch/internal/repository"
	"gigwatch/internal/scraper"
	"gigwatch/internal/ws"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type App struct {
	Fiber        *fiber.App
	Hub          *ws.Hub
	Registry     *prometheus.Registry
	Orchestrator *pipeline.Orchestrator
}

// Bootstrap wires the whole process: repositories, orchestrator with
// its observability sinks, and the ops server (health, run history,
// metrics, run-event websocket feed, manual run trigger).
func Bootstrap(c *Container, logger *log.Logger) *App {
	hub := ws.NewHub(logger)
	go hub.Run()

	reg := prometheus.NewRegistry()
	sink := observability.MultiSink{
		observability.NewLogSink(logger),
		observability.NewPromSink(reg),
		ws.NewSink(hub),
	}

	gigStore := repository.NewPostgresGigStore(c.DB)
	runRepo := repository.NewPostgresRunRepository(c.DB)
	errRepo := repository.NewPostgresErrorLogRepository(c.DB)

	orch := pipeline.NewOrchestrator(
		scraper.NewRegistryFromConfig(c.Sources),
		c.Sources,
		gigStore,
		runRepo,
		errRepo,
		cache.NewRunLock(c.Redis),
		sink,
		logger,
	)

	f := fiber.New(fiber.Config{})
	f.Use(middleware.NewAccessLogMiddleware(logger).Middleware())
	f.Use(middleware.NewErrorMiddleware().Middleware())

	healthHandler := handler.NewHealthHandler(c.DB, c.Redis)
	runHandler := handler.NewRunHandler(runRepo, errRepo)
	pipelineHandler := handler.NewPipelineHandler(orch, logger)
	wsHandler := ws.NewHandler(hub, logger)

	f.Get("/health", healthHandler.Handle)
	f.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	v1 := f.Group("/api/v1")
	v1.Get("/runs", runHandler.ListRuns)
	v1.Get("/runs/:id/errors", runHandler.ListRunErrors)
	v1.Post("/sources/:id/runs", pipelineHandler.TriggerRun)

	f.Get("/ws/runs", wsHandler.HandleRunsWS)

	f.Use(func(c fiber.Ctx) error {
		return response.Error(c, fiber.StatusNotFound, "", nil)
	})

	return &App{Fiber: f, Hub: hub, Registry: reg, Orchestrator: orch}
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
