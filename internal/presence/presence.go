package presence

import "context"

// Tracker advertises which rooms currently have live members on this
// hub instance. It is an operational aid (dashboards, future routing),
// not part of the membership source of truth.
type Tracker interface {
	Register(ctx context.Context, room string) error
	Deregister(ctx context.Context, room string) error
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}

// Noop is used when no presence backend is configured.
type Noop struct{}

func (Noop) Register(ctx context.Context, room string) error   { return nil }
func (Noop) Deregister(ctx context.Context, room string) error { return nil }
func (Noop) StartHeartbeat(ctx context.Context) error          { return nil }
func (Noop) StopHeartbeat()                                    {}
func (Noop) Close() error                                      { return nil }
