package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
)

// LoggingHooks logs every lifecycle event. Drag "over" steps log at debug.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			logger.InfoContext(ctx, "mutation",
				"document_id", e.DocumentID,
				"kind", e.Kind,
				"instance_id", e.InstanceID,
				"parent_id", e.ParentID,
				"index", e.Index,
				"version", e.Version,
			)
		},
		OnMutationRejected: func(ctx context.Context, e *domain.MutationEvent) {
			logger.WarnContext(ctx, "mutation rejected",
				"document_id", e.DocumentID,
				"kind", e.Kind,
				"instance_id", e.InstanceID,
				"err", e.Err,
			)
		},
		OnDrag: func(ctx context.Context, e *domain.DragEvent) {
			level := slog.LevelInfo
			if e.Phase == domain.DragOver {
				level = slog.LevelDebug
			}
			attrs := []any{"document_id", e.DocumentID, "phase", e.Phase, "instance_id", e.InstanceID}
			if e.Component != "" {
				attrs = append(attrs, "component", e.Component)
			}
			if e.Target != nil {
				attrs = append(attrs, "parent_id", e.Target.ParentID, "index", e.Target.Index)
			}
			logger.Log(ctx, level, "drag", attrs...)
		},
	}
}

// Chain runs every non-nil callback of each hook set in order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, s := range sets {
		out.OnMutation = chainMutation(out.OnMutation, s.OnMutation)
		out.OnMutationRejected = chainMutation(out.OnMutationRejected, s.OnMutationRejected)
		out.OnDrag = chainDrag(out.OnDrag, s.OnDrag)
	}
	return out
}

func chainMutation(a, b func(context.Context, *domain.MutationEvent)) func(context.Context, *domain.MutationEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.MutationEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainDrag(a, b func(context.Context, *domain.DragEvent)) func(context.Context, *domain.DragEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.DragEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
