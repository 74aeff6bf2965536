package metamodel

import (
	"context"
	"log/slog"
	"time"
)

// UpdateScript is a unit of mutation run by ExecuteUpdate. The callback it
// receives is only valid until Run returns.
type UpdateScript interface {
	Run(ctx context.Context, cb *UpdateCallback) error
}

// UpdateScriptFunc adapts a function to UpdateScript.
type UpdateScriptFunc func(ctx context.Context, cb *UpdateCallback) error

// Run calls f(ctx, cb).
func (f UpdateScriptFunc) Run(ctx context.Context, cb *UpdateCallback) error {
	return f(ctx, cb)
}

// ExecuteUpdate runs script with exclusive write access to the resource.
// Scripts on the same DataContext run one at a time; waiting for the gate
// ends with ctx. Other DataContext instances over the same file are not
// coordinated.
//
// It returns ErrNotWritable without running script when the resource is
// read-only. A failing script is not retried; changes it already made stay.
func (dc *DataContext) ExecuteUpdate(ctx context.Context, script UpdateScript) error {
	ec := NewErrorContext("execute update", dc.resource.Name())
	if script == nil {
		return ec.WithDetails("script cannot be nil").Error(ErrConfiguration)
	}
	if !dc.IsWritable() {
		return ec.Error(ErrNotWritable)
	}

	if err := dc.gate.Acquire(ctx, 1); err != nil {
		return ec.WithDetails("waiting for update gate").Error(err)
	}
	defer dc.gate.Release(1)

	cb := newUpdateCallback(dc)
	defer cb.close()

	start := time.Now()
	dc.logger.DebugContext(ctx, "update started", slog.String("resource", dc.resource.Name()))
	if err := script.Run(ctx, cb); err != nil {
		dc.logger.WarnContext(ctx, "update failed",
			slog.String("resource", dc.resource.Name()),
			slog.Any("error", err),
		)
		return ec.Error(err)
	}
	dc.logger.DebugContext(ctx, "update finished",
		slog.String("resource", dc.resource.Name()),
		slog.Int("rewrites", cb.rewrites),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
