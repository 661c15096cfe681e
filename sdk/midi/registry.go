package midi

import (
	"context"
	"sync"

	"github.com/miditools/midiport/sdk/contracts"
)

// DriverState describes the lifecycle of a lazily loaded platform driver.
type DriverState int

const (
	// DriverUnrequested means no session has asked for the driver yet.
	DriverUnrequested DriverState = iota
	// DriverPending means the loader is running and the outcome is not known.
	DriverPending
	// DriverReady means the driver loaded and is shared by all sessions.
	DriverReady
	// DriverFailed means the loader returned an error; it is not retried.
	DriverFailed
)

func (s DriverState) String() string {
	switch s {
	case DriverUnrequested:
		return "unrequested"
	case DriverPending:
		return "pending"
	case DriverReady:
		return "ready"
	case DriverFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// registry owns one lazily loaded driver shared process-wide. The
// loader runs on its own goroutine because some platforms grant access
// asynchronously; sessions observe the outcome by polling snapshot or
// blocking on await. The resolved channel is closed exactly once, on
// the transition to DriverReady or DriverFailed.
type registry struct {
	loader func(*contracts.ClientOptions) (contracts.Driver, error)

	mu       sync.Mutex
	state    DriverState
	driver   contracts.Driver
	err      error
	resolved chan struct{}
}

func newRegistry(loader func(*contracts.ClientOptions) (contracts.Driver, error)) *registry {
	return &registry{loader: loader, resolved: make(chan struct{})}
}

// request starts the loader unless it already ran. The first caller's
// options decide how the driver is built; later options are ignored.
func (r *registry) request(opts *contracts.ClientOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != DriverUnrequested {
		return
	}
	r.state = DriverPending
	o := *opts
	go r.load(&o)
}

func (r *registry) load(opts *contracts.ClientOptions) {
	d, err := r.loader(opts)
	r.mu.Lock()
	if err != nil {
		r.state = DriverFailed
		r.err = err
	} else {
		r.state = DriverReady
		r.driver = d
	}
	close(r.resolved)
	r.mu.Unlock()
}

// snapshot reports the current state without blocking.
func (r *registry) snapshot() (DriverState, contracts.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.driver, r.err
}

// await blocks until the driver resolves or ctx is done.
func (r *registry) await(ctx context.Context) (contracts.Driver, error) {
	select {
	case <-r.resolved:
		_, d, err := r.snapshot()
		return d, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// driverSource is what a session holds: either a fixed driver supplied
// through WithDriver, or a view onto the shared platform registry.
type driverSource struct {
	fixed contracts.Driver
	reg   *registry
}

func newFixedSource(d contracts.Driver) *driverSource {
	return &driverSource{fixed: d}
}

func newRegistrySource(r *registry) *driverSource {
	return &driverSource{reg: r}
}

// current returns the driver if it is usable right now.
func (s *driverSource) current() (contracts.Driver, bool) {
	if s.fixed != nil {
		return s.fixed, true
	}
	state, d, _ := s.reg.snapshot()
	if state != DriverReady {
		return nil, false
	}
	return d, true
}

// await blocks until the driver is usable or ctx is done.
func (s *driverSource) await(ctx context.Context) (contracts.Driver, error) {
	if s.fixed != nil {
		return s.fixed, nil
	}
	return s.reg.await(ctx)
}
