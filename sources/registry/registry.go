// Package registry assembles the enabled source adapters from configuration.
// Each source appears exactly once, parameterized by its typed descriptor,
// rather than as per-call-site copies.
package registry

import (
	"log"
	"net/http"

	"github.com/pouria-abbasi/mediascout/config"
	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
	"github.com/pouria-abbasi/mediascout/sources/archive"
	"github.com/pouria-abbasi/mediascout/sources/brave"
	"github.com/pouria-abbasi/mediascout/sources/chronicling"
	"github.com/pouria-abbasi/mediascout/sources/duckduckgo"
	"github.com/pouria-abbasi/mediascout/sources/newsapi"
	"github.com/pouria-abbasi/mediascout/sources/openverse"
	"github.com/pouria-abbasi/mediascout/sources/serper"
	"github.com/pouria-abbasi/mediascout/sources/wikimedia"
)

// Options carries cross-cutting dependencies handed to adapters.
type Options struct {
	Logger   *log.Logger
	Client   *http.Client
	Enricher duckduckgo.PageEnricher
}

// Build returns every adapter enabled in cfg. Keyed adapters are skipped,
// with a logged warning, when their key is missing.
func Build(cfg config.SourcesConfig, opts Options) []sources.Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[SOURCES] ", log.LstdFlags)
	}

	var out []sources.Adapter

	if cfg.Archive.Enabled {
		for _, mt := range []models.MediaType{models.MediaVideo, models.MediaImage} {
			out = append(out, archive.Search{
				MediaType: mt,
				Endpoint:  cfg.Archive.Endpoint,
				Client:    opts.Client,
				Logger:    logger,
			})
		}
	}
	if cfg.Chronicling.Enabled {
		out = append(out, chronicling.Search{Endpoint: cfg.Chronicling.Endpoint, Client: opts.Client, Logger: logger})
	}
	if cfg.Wikimedia.Enabled {
		out = append(out, wikimedia.Search{Endpoint: cfg.Wikimedia.Endpoint, Client: opts.Client, Logger: logger})
	}
	if cfg.Openverse.Enabled {
		out = append(out, openverse.Search{Endpoint: cfg.Openverse.Endpoint, Client: opts.Client, Logger: logger})
	}
	if cfg.NewsAPI.Enabled {
		if cfg.NewsAPI.APIKey == "" {
			logger.Printf("newsapi enabled but api key missing, skipping")
		} else {
			out = append(out, newsapi.Search{APIKey: cfg.NewsAPI.APIKey, Endpoint: cfg.NewsAPI.Endpoint, Client: opts.Client, Logger: logger})
		}
	}
	if cfg.Serper.Enabled {
		if cfg.Serper.APIKey == "" {
			logger.Printf("serper enabled but api key missing, skipping")
		} else {
			for _, mt := range []models.MediaType{models.MediaVideo, models.MediaNews} {
				out = append(out, serper.Search{
					APIKey:    cfg.Serper.APIKey,
					MediaType: mt,
					BaseURL:   cfg.Serper.Endpoint,
					Client:    opts.Client,
					Logger:    logger,
				})
			}
		}
	}
	if cfg.Brave.Enabled {
		if cfg.Brave.APIKey == "" {
			logger.Printf("brave enabled but api key missing, skipping")
		} else {
			out = append(out, brave.Search{APIKey: cfg.Brave.APIKey, Endpoint: cfg.Brave.Endpoint, Client: opts.Client, Logger: logger})
		}
	}
	if cfg.DuckDuckGo.Enabled {
		out = append(out, duckduckgo.Search{
			Endpoint: cfg.DuckDuckGo.Endpoint,
			Client:   opts.Client,
			Logger:   logger,
			Enricher: opts.Enricher,
		})
	}

	return out
}
