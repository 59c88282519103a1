package index

import "context"

// Entity kinds mirrored into the index.
const (
	EntityService = "service"
	EntityAgent   = "agent"
)

// MirrorEventArgs is the queue job enqueued after a registry mutation.
// It names the record to (re)index; the worker reads the current state
// from the registries, so replays and reorderings converge on the
// latest version.
type MirrorEventArgs struct {
	Entity    string `json:"entity"`
	ServiceID int64  `json:"service_id,omitempty"`
	AgentKey  string `json:"agent_key,omitempty"`
}

func (MirrorEventArgs) Kind() string { return "index_mirror" }

// Emitter enqueues mirror events. The HTTP layer calls it after
// successful mutations; a nil emitter disables mirroring.
type Emitter interface {
	Emit(ctx context.Context, args MirrorEventArgs) error
}

// EmitFunc adapts a closure (typically over river.Client.Insert) to
// Emitter.
type EmitFunc func(ctx context.Context, args MirrorEventArgs) error

func (f EmitFunc) Emit(ctx context.Context, args MirrorEventArgs) error { return f(ctx, args) }
