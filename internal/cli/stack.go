// Package cli assembles a workspace from configuration for the arbor commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
)

// Stack is a configured workspace and the resources behind it.
type Stack struct {
	Workspace *arbor.Workspace
	Store     ports.DocumentStore
	Templates ports.TemplateSource
	Metrics   *observability.Metrics

	loam    *loam.Loader
	logger  *slog.Logger
	closers []func() error
}

// Build opens the store and template source named by cfg and creates a
// workspace over them.
func Build(cfg config.Config, logger *slog.Logger) (*Stack, error) {
	st := &Stack{
		Metrics: observability.NewMetrics(),
		logger:  logger,
	}

	var sessionOpts []session.Option
	var wsOpts []arbor.WorkspaceOption

	switch cfg.Store.Backend {
	case config.StoreMemory:
		st.Store = memory.NewStore()
	case config.StoreFile:
		st.Store = file.New(cfg.Store.Dir)
	case config.StoreRedis:
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		st.Store = rs
		st.closers = append(st.closers, rs.Close)
		sessionOpts = append(sessionOpts, session.WithLocker(redis.NewLocker(rs.Client(), rc.Prefix+"lock:")))
		if rc.Bridge {
			wsOpts = append(wsOpts, arbor.WithTransport(func(id string) ports.Transport {
				return redis.NewTransport(rs.Client(), rc.Prefix, id)
			}))
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	var mws []middleware.Middleware
	if len(cfg.Store.MaskProps) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Store.MaskProps))
	}
	if cfg.Store.EncryptionKey != "" {
		key, err := cfg.Key()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	store := middleware.Chain(st.Store, mws...)

	if cfg.Templates.Dir != "" {
		l, err := loam.Open(cfg.Templates.Dir)
		if err != nil {
			return nil, err
		}
		st.loam = l
		st.Templates = l
	} else {
		starters, err := StarterTemplates()
		if err != nil {
			return nil, err
		}
		st.Templates = starters
	}

	hooks := observability.Chain(observability.LoggingHooks(logger), st.Metrics.Hooks())
	wsOpts = append(wsOpts,
		arbor.WithTemplates(st.Templates),
		arbor.WithSessionOptions(sessionOpts...),
		arbor.WithWorkspaceLogger(logger),
		arbor.WithDesignerOptions(
			arbor.WithLifecycleHooks(hooks),
			arbor.WithBusOptions(bus.WithMailboxWarning(cfg.Bus.MailboxWarning)),
		),
	)
	st.Workspace = arbor.NewWorkspace(store, wsOpts...)
	return st, nil
}

// WatchTemplates logs template changes until ctx is done.
// It is a no-op unless templates come from a loam directory.
func (st *Stack) WatchTemplates(ctx context.Context) error {
	if st.loam == nil {
		return nil
	}
	changes, err := st.loam.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for name := range changes {
			st.logger.Info("template changed", "template", name)
		}
	}()
	return nil
}

// Close flushes the workspace and releases the store.
func (st *Stack) Close(ctx context.Context) error {
	errs := []error{st.Workspace.Close(ctx)}
	for _, c := range st.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
