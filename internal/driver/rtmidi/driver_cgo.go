//go:build cgo
// +build cgo

package rtmidi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/miditools/midiport/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/multierr"
)

// Driver wraps the rtmidi library, which talks to ALSA on Linux and to
// the native MIDI service elsewhere. Port identities are the rtmidi
// port names, with a counter suffix on collisions; names survive
// rescans while port numbers do not.
type Driver struct {
	logger contracts.Logger
	drv    *rtmididrv.Driver

	mu     sync.Mutex
	inputs []*inputPort
}

// New creates the rtmidi driver.
func New(options *contracts.ClientOptions) (contracts.Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, err
	}
	options.Logger.Info("rtmidi driver created")
	return &Driver{logger: options.Logger, drv: drv}, nil
}

func (d *Driver) String() string {
	return "rtmidi"
}

func portID(seen map[string]int, name string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return fmt.Sprintf("%s#%d", name, n)
	}
	return name
}

// Inputs enumerates the currently visible input ports.
func (d *Driver) Inputs() ([]contracts.PortInfo, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	seen := make(map[string]int)
	ports := make([]contracts.PortInfo, len(ins))
	for i, in := range ins {
		ports[i] = contracts.PortInfo{ID: portID(seen, in.String()), Name: in.String()}
	}
	return ports, nil
}

// Outputs enumerates the currently visible output ports.
func (d *Driver) Outputs() ([]contracts.PortInfo, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	seen := make(map[string]int)
	ports := make([]contracts.PortInfo, len(outs))
	for i, out := range outs {
		ports[i] = contracts.PortInfo{ID: portID(seen, out.String()), Name: out.String()}
	}
	return ports, nil
}

// OpenInput opens the input port with the given identity.
func (d *Driver) OpenInput(id string) (contracts.InputPort, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	seen := make(map[string]int)
	for _, in := range ins {
		if portID(seen, in.String()) != id {
			continue
		}
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("error opening MIDI input %q: %w", id, err)
		}
		p := &inputPort{logger: d.logger, in: in}
		d.mu.Lock()
		d.inputs = append(d.inputs, p)
		d.mu.Unlock()
		return p, nil
	}
	return nil, fmt.Errorf("unknown MIDI input port %q", id)
}

// OpenOutput opens the output port with the given identity.
func (d *Driver) OpenOutput(id string) (contracts.OutputPort, error) {
	outs, err := d.drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	seen := make(map[string]int)
	for _, out := range outs {
		if portID(seen, out.String()) != id {
			continue
		}
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("error opening MIDI output %q: %w", id, err)
		}
		return &outputPort{out: out}, nil
	}
	return nil, fmt.Errorf("unknown MIDI output port %q", id)
}

// Close stops every listener and closes the underlying driver, which
// closes all ports it opened.
func (d *Driver) Close() error {
	d.mu.Lock()
	inputs := d.inputs
	d.inputs = nil
	d.mu.Unlock()
	var err error
	for _, p := range inputs {
		err = multierr.Append(err, p.ClearReceiver())
	}
	return multierr.Append(err, d.drv.Close())
}

// inputPort is one open rtmidi input.
type inputPort struct {
	logger contracts.Logger
	in     drivers.In

	mu   sync.Mutex
	recv contracts.Receiver
	stop func()
}

// SetReceiver starts listening. Category filtering is done upstream,
// so the listener asks rtmidi for everything, time code and active
// sensing included.
func (p *inputPort) SetReceiver(r contracts.Receiver) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return errors.New("receiver already registered")
	}
	p.recv = r
	stop, err := p.in.Listen(p.handleMessage, drivers.ListenConfig{
		TimeCode:    true,
		ActiveSense: true,
		SysEx:       true,
	})
	if err != nil {
		p.recv = nil
		return fmt.Errorf("error listening on MIDI input: %w", err)
	}
	p.stop = stop
	return nil
}

// handleMessage forwards one inbound message, converting the
// millisecond timestamp to microseconds.
func (p *inputPort) handleMessage(msg []byte, timestampms int32) {
	p.mu.Lock()
	if r := p.recv; r != nil && len(msg) > 0 {
		r(int64(timestampms)*1000, append([]byte(nil), msg...))
	}
	p.mu.Unlock()
}

// ClearReceiver stops the listener. Acquiring the mutex waits out any
// in-flight delivery.
func (p *inputPort) ClearReceiver() error {
	p.mu.Lock()
	p.recv = nil
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop != nil {
		stop()
	}
	return nil
}

// Close stops the listener and closes the port.
func (p *inputPort) Close() error {
	if err := p.ClearReceiver(); err != nil {
		return err
	}
	return p.in.Close()
}

// outputPort is one open rtmidi output.
type outputPort struct {
	mu     sync.Mutex
	closed bool
	out    drivers.Out
}

// Write sends the message bytes as-is.
func (p *outputPort) Write(message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("output port is closed")
	}
	return p.out.Send(message)
}

// Close closes the port.
func (p *outputPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.out.Close()
}
