package performance

import (
	"context"

	"github.com/wesleyorama2/surge/internal/js"
)

// ScriptRuntime is the part of js.Runtime the engine drives.
type ScriptRuntime interface {
	Start(ctx context.Context, prog *js.Program) (*js.Handle, error)
	Poll(ctx context.Context, h *js.Handle) (js.PollResult, error)
	Compact(ctx context.Context) error
	TryCompact() bool
	PendingOps() int
	Close() error
}

var _ ScriptRuntime = (*js.Runtime)(nil)
