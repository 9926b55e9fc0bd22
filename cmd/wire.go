package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"risk-vetting-engine/aggregate"
	"risk-vetting-engine/config"
	"risk-vetting-engine/logging"
	"risk-vetting-engine/ports"
	"risk-vetting-engine/redirect"
	"risk-vetting-engine/safelist"
	"risk-vetting-engine/sources"
	"risk-vetting-engine/sources/dnsbl"
	"risk-vetting-engine/sources/memory"
	"risk-vetting-engine/sources/postgres"
	"risk-vetting-engine/sources/safebrowsing"
	"risk-vetting-engine/sources/whoisage"
	"risk-vetting-engine/vetting"
)

// app is everything a command needs, built from config.
type app struct {
	cfg    config.Config
	logger *zap.SugaredLogger
	cache  *safelist.Cache
	engine *vetting.Engine
	close  func()
}

func loadConfig() (config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return config.Config{}, err
	}
	if debugMode {
		cfg.Debug = true
	}
	if seedFile != "" {
		cfg.SeedFile = seedFile
	}
	return cfg, nil
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	trust, blacklist, reports, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	members := []sources.Named{{Name: "database", Source: blacklist}}
	if cfg.DNSBLEnabled {
		checker := dnsbl.New(dnsbl.ResolverAddr(cfg.DNSBLResolver),
			dnsbl.ParseZones(cfg.DNSBLDomainZones), dnsbl.ParseZones(cfg.DNSBLIPZones), 0, logger)
		members = append(members, sources.Named{Name: "dnsbl", Source: checker})
	}
	if cfg.SafeBrowsingKey != "" {
		members = append(members, sources.Named{Name: "safebrowsing", Source: safebrowsing.New(cfg.SafeBrowsingKey)})
	}

	cache := safelist.New(trust,
		safelist.WithMaxAge(cfg.SafeListMaxAge),
		safelist.WithReloadTimeout(cfg.LookupTimeout),
		safelist.WithLogger(logger),
	)
	resolver := redirect.NewResolver(redirect.NewHTTPProbe(cfg.RedirectHopTimeout), cfg.RedirectMaxHops, logger,
		redirect.WithTotalTimeout(cfg.RedirectTotal))
	blacklists := sources.NewBlacklists(logger, members...)
	agg := aggregate.New(blacklists, reports, cfg.LookupTimeout, logger)

	opts := []vetting.Option{vetting.WithLogger(logger)}
	if cfg.WhoisEnabled {
		opts = append(opts, vetting.WithDomainAger(whoisage.New(cfg.LookupTimeout, logger), cfg.WhoisNewDomainDays))
	}

	logger.Infow("[Wire] engine ready", "blacklists", blacklists.Len(), "whois", cfg.WhoisEnabled, "database", cfg.DatabaseURL != "")
	return &app{
		cfg:    cfg,
		logger: logger,
		cache:  cache,
		engine: vetting.NewEngine(resolver, cache, agg, opts...),
		close: func() {
			closeStore()
			_ = logger.Sync()
		},
	}, nil
}

// openStore picks Postgres when DATABASE_URL is set and the in-memory seed otherwise.
// With both a database and a seed file, the seed is imported into the database.
func openStore(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (ports.TrustSource, ports.BlacklistSource, ports.ReportSource, func(), error) {
	if cfg.DatabaseURL == "" {
		store := memory.Default()
		if cfg.SeedFile != "" {
			var err error
			if store, err = memory.Load(cfg.SeedFile); err != nil {
				return nil, nil, nil, nil, err
			}
		}
		logger.Infow("[Wire] using in-memory store", "seed", cfg.SeedFile)
		return store, store, store, func() {}, nil
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, nil, err
	}
	if cfg.SeedFile != "" {
		seed, err := memory.ReadSeed(cfg.SeedFile)
		if err == nil {
			err = db.Import(ctx, seed.Trusted, seed.Blacklist, seed.Reports)
		}
		if err != nil {
			db.Close()
			return nil, nil, nil, nil, fmt.Errorf("import seed: %w", err)
		}
		logger.Infow("[Wire] seed imported", "file", cfg.SeedFile)
	}
	return db, db, db, db.Close, nil
}
