// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/pyq-harvester/internal/assets"
	"github.com/pdiddy/pyq-harvester/internal/crawl"
	"github.com/pdiddy/pyq-harvester/internal/harvest"
	"github.com/pdiddy/pyq-harvester/internal/inertia"
	"github.com/pdiddy/pyq-harvester/internal/ledger"
	"github.com/pdiddy/pyq-harvester/internal/library"
	"github.com/pdiddy/pyq-harvester/internal/normalize"
	"github.com/pdiddy/pyq-harvester/pkg/types"
)

const (
	defaultBaseURL    = "https://quizpractice.space"
	defaultTimeout    = 60 * time.Second
	defaultDelay      = 1 * time.Second
	defaultWorkDir    = "scraped_data"
	defaultLibraryDir = "subjects"
	defaultWorkers    = 4
	defaultUserAgent  = "Mozilla/5.0 (compatible; pyq-harvester/0.1)"
)

// envKeyReplacer maps nested keys to env names: crawl.delay -> PYQ_HARVESTER_CRAWL_DELAY.
var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

func setDefaults() {
	routes := crawl.DefaultRoutes()
	for key, value := range map[string]any{
		"log.mode":              "dev",
		"log.level":             "info",
		"base_url":              defaultBaseURL,
		"timeout":               defaultTimeout,
		"user_agent":            defaultUserAgent,
		"work_dir":              defaultWorkDir,
		"ledger":                true,
		"assets.cdn_base":       "",
		"assets.workers":        defaultWorkers,
		"assets.download":       true,
		"normalize.id_scheme":   string(types.IDTimestamp),
		"library.dir":           defaultLibraryDir,
		"library.subject_match": string(types.MatchExact),
		"library.image_prefix":  "",
		"crawl.delay":           defaultDelay,
		"crawl.limit":           0,
		"crawl.filter":          "",
		"crawl.skip_harvested":  false,
		"crawl.routes.entry":    routes.Entry,
		"crawl.routes.exam":     routes.Exam,
		"crawl.routes.course":   routes.Course,
		"crawl.routes.paper":    routes.Paper,
	} {
		viper.SetDefault(key, value)
	}
}

// bindFlags binds viper keys to the named flags of fs.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if f := fs.Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// loadConfig assembles the harvest configuration from viper.
func loadConfig() (types.HarvestConfig, error) {
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("timeout"),
		UserAgent: viper.GetString("user_agent"),
	}
	if httpCfg.Timeout <= 0 {
		httpCfg.Timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(viper.GetString("base_url"), "/")
	if baseURL == "" {
		return types.HarvestConfig{}, fmt.Errorf("base_url must not be empty")
	}

	idScheme := types.IDScheme(viper.GetString("normalize.id_scheme"))
	switch idScheme {
	case types.IDTimestamp, types.IDUUID:
	default:
		return types.HarvestConfig{}, fmt.Errorf("normalize.id_scheme: unknown scheme %q (want timestamp or uuid)", idScheme)
	}
	match := types.SubjectMatch(viper.GetString("library.subject_match"))
	switch match {
	case types.MatchExact, types.MatchFold:
	default:
		return types.HarvestConfig{}, fmt.Errorf("library.subject_match: unknown mode %q (want exact or fold)", match)
	}

	cdnBase := viper.GetString("assets.cdn_base")
	return types.HarvestConfig{
		Protocol: types.ProtocolConfig{HTTPConfig: httpCfg, BaseURL: baseURL},
		Assets: types.AssetConfig{
			HTTPConfig: httpCfg,
			BaseURL:    baseURL,
			CDNBase:    cdnBase,
			Workers:    viper.GetInt("assets.workers"),
			Download:   viper.GetBool("assets.download"),
		},
		Normalize: types.NormalizeConfig{
			IDScheme:   idScheme,
			CDNBase:    cdnBase,
			SourceBase: baseURL,
		},
		Library: types.LibraryConfig{
			Dir:          viper.GetString("library.dir"),
			SubjectMatch: match,
			ImagePrefix:  viper.GetString("library.image_prefix"),
		},
		Crawl: types.CrawlConfig{
			Limit:         viper.GetInt("crawl.limit"),
			NameFilter:    viper.GetString("crawl.filter"),
			PaperDelay:    viper.GetDuration("crawl.delay"),
			SkipHarvested: viper.GetBool("crawl.skip_harvested"),
			Routes: types.Routes{
				Entry:  viper.GetString("crawl.routes.entry"),
				Exam:   viper.GetString("crawl.routes.exam"),
				Course: viper.GetString("crawl.routes.course"),
				Paper:  viper.GetString("crawl.routes.paper"),
			},
		},
		WorkDir: viper.GetString("work_dir"),
	}, nil
}

// components are the wired stages shared by the crawl and fetch commands.
type components struct {
	client   *inertia.Client
	store    *library.Store
	ledger   *ledger.Ledger
	pipeline *harvest.Pipeline
}

func (c *components) Close() {
	if c.ledger != nil {
		if err := c.ledger.Close(); err != nil {
			appLog.Warn("closing ledger", "error", err)
		}
	}
}

// buildComponents wires the protocol client, asset fetcher, normalizer,
// library store and ledger into a pipeline. Image downloads share the
// protocol client's cookie session.
func buildComponents(cfg types.HarvestConfig) (*components, error) {
	client, err := inertia.NewClient(nil, cfg.Protocol, appLog.With("stage", "inertia"))
	if err != nil {
		return nil, err
	}
	store, err := library.NewStore(cfg.Library, appLog.With("stage", "library"))
	if err != nil {
		return nil, err
	}

	c := &components{client: client, store: store}
	if viper.GetBool("ledger") {
		l, err := ledger.OpenInDir(cfg.WorkDir)
		if err != nil {
			appLog.Warn("harvest ledger unavailable, continuing without it", "error", err)
		} else {
			c.ledger = l
		}
	}

	c.pipeline, err = harvest.NewPipeline(cfg, harvest.Deps{
		Pages:      client,
		Fetcher:    assets.NewFetcher(client.HTTPClient(), cfg.Assets, appLog.With("stage", "assets")),
		Normalizer: normalize.New(cfg.Normalize),
		Store:      store,
		Ledger:     c.ledger,
		Logger:     appLog.With("stage", "harvest"),
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
