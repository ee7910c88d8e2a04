package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pouria-abbasi/mediascout/config"
	"github.com/pouria-abbasi/mediascout/internal/cache"
	"github.com/pouria-abbasi/mediascout/internal/index"
	"github.com/pouria-abbasi/mediascout/internal/pagefetch"
	"github.com/pouria-abbasi/mediascout/internal/research"
	"github.com/pouria-abbasi/mediascout/internal/store"
	"github.com/pouria-abbasi/mediascout/provider"
	"github.com/pouria-abbasi/mediascout/sources/registry"
)

// Run wires the full service and serves HTTP until the process exits.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrations: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var gen research.TextGenerator
	var scorer research.RelevanceScorer
	llm, err := provider.NewProvider(provider.OpenAI, cfg.LLM)
	switch {
	case err == provider.ErrNotConfigured:
		baseLogger.Printf("no LLM configured, planning falls back to templates and scoring is skipped")
	case err != nil:
		return err
	default:
		gen = llm
		scorer = llm
	}

	regOpts := registry.Options{}
	if cfg.PageFetch.Enabled {
		regOpts.Enricher = pagefetch.New(cfg.PageFetch.PoolSize, cfg.PageFetch.Timeout, cfg.PageFetch.MaxChars, nil)
	}

	adapters := registry.Build(cfg.Sources, regOpts)
	if len(adapters) == 0 {
		return fmt.Errorf("no source adapters enabled")
	}

	hitCache := cache.New(ctx, cfg.Storage.Redis, nil)
	indexes := index.NewManager(cfg.Research.CacheTTL)

	orch := research.NewOrchestrator(research.OrchestratorOptions{
		Planner:           research.NewPlanner(gen, cfg.Research.QueriesPerType, nil),
		Executor:          research.NewExecutor(cfg.Research.FanoutTimeout, hitCache, cfg.Research.CacheTTL, nil),
		Filter:            research.NewFilter(scorer, cfg.Research.FilterThreshold, cfg.LLM.ScoreBatchSize, cfg.Research.TitleBlacklist, nil),
		Registry:          research.NewRegistry(nil),
		Adapters:          adapters,
		Sink:              st,
		Indexer:           indexes,
		PerCallLimit:      cfg.Research.PerCallLimit,
		MaxConcurrentJobs: cfg.Research.MaxConcurrentJobs,
	})

	jan := newJanitor(cfg.Research.JanitorInterval, cfg.Research.JobRetention, cfg.Research.RecordRetention,
		orch.Registry(), indexes, st, baseLogger)
	go jan.run(ctx)

	api := e.Group("/api")
	rh := &ResearchHandler{Orch: orch, Store: st, Indexes: indexes}
	rh.Register(api.Group("/research"))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10040"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
