package midi

import (
	"fmt"
	"sync"

	"github.com/miditools/midiport/sdk/contracts"
)

// Output is an unconnected output session with its own port table for
// output ports.
type Output struct {
	session
}

// NewOutput creates a new output session with the specified options.
// It never blocks; see NewInput for the driver loading behavior.
//
// opts ...contracts.Option: A variadic list of option functions to customize the session.
//
// Returns:
//   - *Output: An unconnected output session.
//   - error: An error if the platform is unsupported or the driver already failed to load.
func NewOutput(opts ...contracts.Option) (*Output, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	source, err := resolveDriverSource(&options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrInit, err)
	}
	out := &Output{
		session: session{
			logger:     options.Logger,
			clientName: options.ClientName,
			direction:  "output",
			source:     source,
			enumerate:  contracts.Driver.Outputs,
		},
	}
	return out, nil
}

// Connect opens the output port with the given number for writing.
// The same failure contract as input connect applies: an out-of-range
// number fails with contracts.ErrPortNumberOutOfRange and leaves the
// session unchanged, backend failures fail with contracts.ErrConnect,
// and the port table is not refreshed.
func (out *Output) Connect(port int, connName string) (*OutputConnection, error) {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.connected {
		return nil, fmt.Errorf("%w: session already connected", contracts.ErrConnect)
	}
	id, ok := out.table.identity(port)
	if !ok {
		return nil, fmt.Errorf("%w: %d with %d ports known", contracts.ErrPortNumberOutOfRange, port, out.table.count())
	}
	d, ok := out.source.current()
	if !ok {
		return nil, fmt.Errorf("%w: driver not ready", contracts.ErrConnect)
	}
	p, err := d.OpenOutput(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrConnect, err)
	}
	out.connected = true
	out.logger.Info("Output port connected",
		out.logger.Field().Int("port", port),
		out.logger.Field().String("id", id),
		out.logger.Field().String("connection", connName))
	return &OutputConnection{out: out, port: p, name: connName}, nil
}

// OutputConnection is a live output write handle.
type OutputConnection struct {
	out  *Output
	port contracts.OutputPort
	name string

	mu     sync.Mutex
	closed bool
	sent   uint64

	closeOnce sync.Once
}

// Send forwards the message bytes to the port verbatim. A rejected
// write fails with contracts.ErrSend carrying the backend diagnostic,
// as does sending on a closed connection.
func (c *OutputConnection) Send(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: connection closed", contracts.ErrSend)
	}
	if err := c.port.Write(message); err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrSend, err)
	}
	c.sent++
	return nil
}

// Close requests the port be closed and returns the session. The close
// is fire-and-forget: the platform may release the device after Close
// returns, and close failures are only logged. Closing twice is safe.
func (c *OutputConnection) Close() *Output {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sent := c.sent
		c.mu.Unlock()
		if err := c.port.Close(); err != nil {
			c.out.logger.Debug("output port close failed",
				c.out.logger.Field().Error("error", err))
		}
		c.out.setConnected(false)
		c.out.logger.Info("Output port disconnected",
			c.out.logger.Field().String("connection", c.name),
			c.out.logger.Field().Uint64("sent", sent))
	})
	return c.out
}
