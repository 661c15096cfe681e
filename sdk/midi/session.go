package midi

import (
	"context"
	"sync"

	"github.com/miditools/midiport/sdk/contracts"
)

// session carries the state common to input and output sessions: the
// driver source, the port table, and the connected flag. Each session
// owns its own table; input and output sessions never share one.
type session struct {
	logger     contracts.Logger
	clientName string
	direction  string
	source     *driverSource
	enumerate  func(contracts.Driver) ([]contracts.PortInfo, error)

	mu        sync.Mutex
	table     portTable
	connected bool
}

// refreshLocked merges a fresh discovery scan into the table. While the
// driver is still loading the scan is skipped and the table keeps its
// previous contents. Callers hold s.mu.
func (s *session) refreshLocked() {
	d, ok := s.source.current()
	if !ok {
		return
	}
	ports, err := s.enumerate(d)
	if err != nil {
		s.logger.Warn("port discovery failed",
			s.logger.Field().String("direction", s.direction),
			s.logger.Field().Error("error", err))
		return
	}
	s.table.merge(ports)
}

// Ports refreshes the port table from the driver and returns it in
// port-number order. Numbers assigned to ports seen earlier never move.
func (s *session) Ports() []contracts.PortInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return s.table.snapshot()
}

// PortCount refreshes the port table and returns the number of known
// ports. The count never decreases for the lifetime of the session.
func (s *session) PortCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	return s.table.count()
}

// PortName returns the display name of a known port without triggering
// a refresh. Numbers outside [0, PortCount()) yield
// contracts.ErrPortNumberOutOfRange.
func (s *session) PortName(port int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.name(port)
}

// AwaitReady blocks until the platform driver has resolved, or ctx is
// done. Sessions remain usable without calling it: enumeration simply
// reports no ports until the driver is ready.
func (s *session) AwaitReady(ctx context.Context) error {
	_, err := s.source.await(ctx)
	return err
}

func (s *session) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
