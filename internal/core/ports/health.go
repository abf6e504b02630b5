package ports

import "context"

// HealthChecker reports whether an external dependency answers.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Probe adapts a ping function to HealthChecker.
type Probe struct {
	Dependency string
	PingFunc   func(ctx context.Context) error
}

func (p Probe) Name() string { return p.Dependency }

func (p Probe) Ping(ctx context.Context) error { return p.PingFunc(ctx) }
