package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/auth"
	"github.com/harrisonrobin/friday/pkg/cache"
	"github.com/harrisonrobin/friday/pkg/config"
	"github.com/harrisonrobin/friday/pkg/engine"
	"github.com/harrisonrobin/friday/pkg/google"
	"github.com/harrisonrobin/friday/pkg/icalpal"
	"github.com/harrisonrobin/friday/pkg/logging"
	"github.com/harrisonrobin/friday/pkg/metrics"
	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/orgmode"
	"github.com/harrisonrobin/friday/pkg/source"
	"github.com/harrisonrobin/friday/pkg/taskwarrior"
	"github.com/harrisonrobin/friday/pkg/ticktick"
	"go.uber.org/zap"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg    *config.Config
	loc    *time.Location
	log    *zap.Logger
	cache  *cache.Cache
	engine *engine.Engine

	closers []io.Closer
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	log, err := logging.New(opts.verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	var cfg *config.Config
	if opts.configPath != "" {
		home, herr := config.GetHome()
		if herr != nil {
			return nil, herr
		}
		cfg, err = config.LoadFile(home, opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.strict {
		cfg.Strict = true
	}

	a := &app{cfg: cfg, log: log}
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	a.cache = cache.New(store, cfg.Cache.TTL, log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a.loc = loc
	workDay, err := cfg.WorkWindow()
	if err != nil {
		return nil, err
	}
	deepWork, err := cfg.DeepWorkWindows()
	if err != nil {
		return nil, err
	}

	var c *cache.Cache
	if !opts.noCache {
		c = a.cache
	}
	tasks, calendars := buildAdapters(ctx, cfg, loc, log)
	a.engine = engine.New(c, tasks, calendars, engine.Options{
		Location:      loc,
		WorkDay:       workDay,
		DeepWork:      deepWork,
		MinSlot:       cfg.MinSlot(),
		UrgentDays:    cfg.UrgentDays,
		WorkLists:     cfg.WorkTaskLists,
		PersonalLists: cfg.PersonalTaskLists,
		Precedence:    cfg.Calendar.Precedence,
		Timeout:       cfg.Fetch.Timeout,
		Concurrency:   cfg.Fetch.Concurrency,
		TTL:           cfg.Cache.TTL,
		Strict:        cfg.Strict,
	}, log)
	return a, nil
}

func (a *app) store() (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case config.BackendRedis:
		rdb := cache.NewRedisClient(a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisPassword, a.cfg.Cache.RedisDB)
		a.closers = append(a.closers, rdb)
		return cache.NewRedisStore(rdb, a.cfg.Cache.Retention), nil
	case config.BackendFile:
		return cache.NewFileStore(a.cfg.Cache.Dir), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", a.cfg.Cache.Backend)
	}
}

// today is the current date in the configured timezone.
func (a *app) today() civil.Date {
	return civil.DateOf(now().In(a.loc))
}

// close flushes metrics and releases connections. Errors are logged only.
func (a *app) close() {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.log.Warn("failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// buildAdapters turns the enabled sections of cfg into adapters. A source
// that cannot be set up still takes part in every run and reports itself
// unavailable, so partial bundles always name it.
func buildAdapters(ctx context.Context, cfg *config.Config, loc *time.Location, log *zap.Logger) (tasks, calendars []source.Adapter) {
	if cfg.TickTick.Enabled {
		tasks = append(tasks, tickTickAdapter(ctx, cfg, log))
	}
	if cfg.Taskwarrior.Enabled {
		tasks = append(tasks, taskwarrior.NewClient(cfg.Taskwarrior.Command, cfg.Taskwarrior.Filter))
	}
	if cfg.OrgMode.Enabled {
		tasks = append(tasks, orgmode.NewAdapter(cfg.OrgMode.Files))
	}

	if len(cfg.Google.Accounts) > 0 {
		g := google.NewAdapter(loc)
		for _, acct := range cfg.Google.Accounts {
			g.AddAccount(ctx, cfg.Google.ClientSecretFile, acct, cfg.Timezone, log)
		}
		calendars = append(calendars, g)
	}
	if cfg.ICalPal.Enabled {
		calendars = append(calendars, icalpal.NewAdapter(cfg.ICalPal.Command, cfg.ICalPal.IncludeCalendars, cfg.ICalPal.ExcludeCalendars))
	}
	return tasks, calendars
}

func tickTickAdapter(ctx context.Context, cfg *config.Config, log *zap.Logger) source.Adapter {
	oc := auth.TickTickConfig(cfg.TickTick.ClientID, cfg.TickTick.ClientSecret)
	httpClient, err := auth.Client(ctx, oc, cfg.TickTick.TokenFile, log)
	if err != nil {
		return broken(ticktick.SourceName, model.KindTask, err)
	}
	return ticktick.NewClient(httpClient, cfg.TickTick.BaseURL)
}

// broken is an adapter that always fails with err.
func broken(name string, kind model.Kind, err error) source.Adapter {
	return source.Func{
		SourceName: name,
		RecordKind: kind,
		FetchFunc: func(context.Context, source.Range) ([]model.RawRecord, error) {
			return nil, source.Unavailable(name, err)
		},
	}
}
