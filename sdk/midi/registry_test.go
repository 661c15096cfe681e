package midi

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miditools/midiport/internal/driver/memdrv"
	"github.com/miditools/midiport/internal/logger"
	"github.com/miditools/midiport/sdk/contracts"
)

func TestRegistry_Lifecycle(t *testing.T) {
	gate := make(chan struct{})
	drv := memdrv.New()
	var calls atomic.Int32
	reg := newRegistry(func(opts *contracts.ClientOptions) (contracts.Driver, error) {
		calls.Add(1)
		<-gate
		return drv, nil
	})

	if state, _, _ := reg.snapshot(); state != DriverUnrequested {
		t.Fatalf("initial state = %v, want unrequested", state)
	}

	reg.request(&contracts.ClientOptions{})
	if state, _, _ := reg.snapshot(); state != DriverPending {
		t.Fatalf("state after request = %v, want pending", state)
	}

	// A second request while pending must not start another load.
	reg.request(&contracts.ClientOptions{})

	close(gate)
	got, err := reg.await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if got != contracts.Driver(drv) {
		t.Fatal("await returned a different driver")
	}
	if state, d, _ := reg.snapshot(); state != DriverReady || d == nil {
		t.Fatalf("state after load = %v, driver nil = %v", state, d == nil)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("loader ran %d times, want 1", n)
	}
}

func TestRegistry_LoadFailure(t *testing.T) {
	boom := errors.New("no such device")
	reg := newRegistry(func(opts *contracts.ClientOptions) (contracts.Driver, error) {
		return nil, boom
	})
	reg.request(&contracts.ClientOptions{})

	if _, err := reg.await(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("await err = %v, want %v", err, boom)
	}
	state, d, err := reg.snapshot()
	if state != DriverFailed || d != nil || !errors.Is(err, boom) {
		t.Fatalf("snapshot = %v, %v, %v", state, d, err)
	}

	// Failure is final; a later request does not retry.
	reg.request(&contracts.ClientOptions{})
	if state, _, _ := reg.snapshot(); state != DriverFailed {
		t.Fatalf("state after re-request = %v, want failed", state)
	}
}

func TestRegistry_FirstOptionsWin(t *testing.T) {
	names := make(chan string, 1)
	reg := newRegistry(func(opts *contracts.ClientOptions) (contracts.Driver, error) {
		names <- opts.ClientName
		return memdrv.New(), nil
	})

	reg.request(&contracts.ClientOptions{ClientName: "first"})
	reg.request(&contracts.ClientOptions{ClientName: "second"})

	if _, err := reg.await(context.Background()); err != nil {
		t.Fatalf("await: %v", err)
	}
	if name := <-names; name != "first" {
		t.Fatalf("loader saw options %q, want first", name)
	}
}

func TestRegistry_AwaitHonorsContext(t *testing.T) {
	reg := newRegistry(func(opts *contracts.ClientOptions) (contracts.Driver, error) {
		select {} // never resolves
	})
	reg.request(&contracts.ClientOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := reg.await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("await err = %v, want deadline exceeded", err)
	}
}

func TestDriverSource_FixedAndRegistry(t *testing.T) {
	drv := memdrv.New()
	fixed := newFixedSource(drv)
	if d, ok := fixed.current(); !ok || d != contracts.Driver(drv) {
		t.Fatal("fixed source must be usable immediately")
	}
	if d, err := fixed.await(context.Background()); err != nil || d == nil {
		t.Fatalf("fixed await = %v, %v", d, err)
	}

	gate := make(chan struct{})
	reg := newRegistry(func(opts *contracts.ClientOptions) (contracts.Driver, error) {
		<-gate
		return memdrv.New(), nil
	})
	src := newRegistrySource(reg)
	reg.request(&contracts.ClientOptions{})
	if _, ok := src.current(); ok {
		t.Fatal("registry source usable while loader is pending")
	}
	close(gate)
	if _, err := src.await(context.Background()); err != nil {
		t.Fatalf("await: %v", err)
	}
	if _, ok := src.current(); !ok {
		t.Fatal("registry source not usable after load")
	}
}

func TestNewInput_FailedRegistrySurfacesErrInit(t *testing.T) {
	saved := platformRegistry
	defer func() { platformRegistry = saved }()
	boom := errors.New("backend unavailable")
	platformRegistry = newRegistry(func(opts *contracts.ClientOptions) (contracts.Driver, error) {
		return nil, boom
	})

	// The first session starts the load; the outcome is unknown at
	// construction time, so it succeeds and sees no ports yet.
	first, err := NewInput(
		contracts.WithDriverName("rtmidi"),
		contracts.WithLogger(logger.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewInput during pending load: %v", err)
	}
	if n := first.PortCount(); n != 0 {
		t.Fatalf("PortCount before load = %d, want 0", n)
	}
	if err := first.AwaitReady(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("AwaitReady err = %v, want %v", err, boom)
	}

	// Once the registry has failed, construction reports it up front.
	_, err = NewInput(
		contracts.WithDriverName("rtmidi"),
		contracts.WithLogger(logger.NewNop()),
	)
	if !errors.Is(err, contracts.ErrInit) || !errors.Is(err, boom) {
		t.Fatalf("NewInput after failed load err = %v, want ErrInit wrapping %v", err, boom)
	}
}
