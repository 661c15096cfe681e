package midi

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miditools/midiport/sdk/contracts"
)

// Input is an unconnected input session. It owns the ignore filter and
// a port table for input ports; Connect turns it into a live
// InputConnection and Close on the connection hands it back.
type Input struct {
	session
	ignore atomic.Uint32
}

// NewInput creates a new input session with the specified options.
// It never blocks: the platform driver keeps loading in the background
// and enumeration reports no ports until it is ready.
//
// opts ...contracts.Option: A variadic list of option functions to customize the session.
//
// Returns:
//   - *Input: An unconnected input session.
//   - error: An error if the platform is unsupported or the driver already failed to load.
func NewInput(opts ...contracts.Option) (*Input, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	source, err := resolveDriverSource(&options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrInit, err)
	}
	in := &Input{
		session: session{
			logger:     options.Logger,
			clientName: options.ClientName,
			direction:  "input",
			source:     source,
			enumerate:  contracts.Driver.Inputs,
		},
	}
	in.ignore.Store(uint32(options.Ignore))
	return in, nil
}

// SetIgnore replaces the ignore flags. The change applies to every
// message delivered afterwards, including on a live connection made
// from this session.
func (in *Input) SetIgnore(flags contracts.Ignore) {
	in.ignore.Store(uint32(flags))
}

// Ignore returns the current ignore flags.
func (in *Input) Ignore() contracts.Ignore {
	return contracts.Ignore(in.ignore.Load())
}

// Connect opens the input port with the given number and starts
// delivering its messages. Each delivery invokes callback with the
// timestamp in microseconds, the raw message bytes, and exclusive
// access to data; message bytes are only valid for the duration of the
// callback. Invocations never overlap. The connection owns callback
// and data until Close returns them.
//
// A port number outside [0, PortCount()) fails with
// contracts.ErrPortNumberOutOfRange and leaves the session unchanged,
// so the caller can retry with a corrected number. Backend failures
// fail with contracts.ErrConnect. Connect does not refresh the port
// table; enumerate first.
func Connect[T any](in *Input, port int, connName string, callback func(timestampUS uint64, message []byte, ctx *T), data T) (*InputConnection[T], error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.connected {
		return nil, fmt.Errorf("%w: session already connected", contracts.ErrConnect)
	}
	id, ok := in.table.identity(port)
	if !ok {
		return nil, fmt.Errorf("%w: %d with %d ports known", contracts.ErrPortNumberOutOfRange, port, in.table.count())
	}
	d, ok := in.source.current()
	if !ok {
		return nil, fmt.Errorf("%w: driver not ready", contracts.ErrConnect)
	}
	p, err := d.OpenInput(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrConnect, err)
	}
	conn := &InputConnection[T]{
		in:       in,
		port:     p,
		name:     connName,
		callback: callback,
		data:     data,
		epoch:    time.Now(),
	}
	if err := p.SetReceiver(conn.deliver); err != nil {
		if cerr := p.Close(); cerr != nil {
			in.logger.Debug("input port close failed",
				in.logger.Field().Error("error", cerr))
		}
		return nil, fmt.Errorf("%w: %v", contracts.ErrConnect, err)
	}
	in.connected = true
	in.logger.Info("Input port connected",
		in.logger.Field().Int("port", port),
		in.logger.Field().String("id", id),
		in.logger.Field().String("connection", connName))
	return conn, nil
}

// InputConnection is a live input subscription. It owns the delivery
// callback and the caller's context until Close.
type InputConnection[T any] struct {
	in       *Input
	port     contracts.InputPort
	name     string
	callback func(timestampUS uint64, message []byte, ctx *T)

	mu         sync.Mutex
	closed     bool
	data       T
	epoch      time.Time
	lastTS     uint64
	delivered  uint64
	suppressed uint64

	closeOnce sync.Once
}

// deliver is the sink registered with the driver port. The mutex
// serializes invocations, so the callback never runs concurrently with
// itself or with Close's teardown.
func (c *InputConnection[T]) deliver(timestampUS int64, message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(message) == 0 {
		return
	}
	if c.in.Ignore().ShouldSuppress(message[0]) {
		c.suppressed++
		return
	}
	ts := c.stamp(timestampUS)
	c.delivered++
	c.callback(ts, message, &c.data)
}

// stamp converts a driver timestamp into the connection's clock:
// microseconds, never decreasing, counted from a connection-scoped
// epoch. Negative driver timestamps mean the platform provided none
// and are replaced with time since the epoch.
func (c *InputConnection[T]) stamp(timestampUS int64) uint64 {
	var ts uint64
	if timestampUS >= 0 {
		ts = uint64(timestampUS)
	} else {
		ts = uint64(time.Since(c.epoch).Microseconds())
	}
	if ts < c.lastTS {
		ts = c.lastTS
	}
	c.lastTS = ts
	return ts
}

// Close tears the connection down and returns the session together
// with the context value, including every mutation the callback made.
// The delivery sink is unregistered before anything is released: once
// Close returns, the callback is never invoked again. Closing twice is
// safe; the second call returns the session and a zero context.
// Close waits for an in-flight delivery and must not be called from
// the delivery callback itself.
func (c *InputConnection[T]) Close() (*Input, T) {
	var data T
	c.closeOnce.Do(func() {
		if err := c.port.ClearReceiver(); err != nil {
			c.in.logger.Debug("input receiver unregister failed",
				c.in.logger.Field().Error("error", err))
		}
		c.mu.Lock()
		c.closed = true
		data = c.data
		var zero T
		c.data = zero
		delivered, suppressed := c.delivered, c.suppressed
		c.mu.Unlock()
		if err := c.port.Close(); err != nil {
			c.in.logger.Warn("input port close failed",
				c.in.logger.Field().Error("error", err))
		}
		c.in.setConnected(false)
		c.in.logger.Info("Input port disconnected",
			c.in.logger.Field().String("connection", c.name),
			c.in.logger.Field().Uint64("delivered", delivered),
			c.in.logger.Field().Uint64("suppressed", suppressed))
	})
	return c.in, data
}
