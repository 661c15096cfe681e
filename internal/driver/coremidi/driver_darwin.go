//go:build darwin
// +build darwin

package coremidi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/miditools/midiport/sdk/contracts"
	"github.com/youpy/go-coremidi"
	"go.uber.org/multierr"
)

// Error definitions for CoreMIDI connection and handling issues.
var (
	ErrUnknownPort     = errors.New("unknown MIDI port")
	ErrCreateInputPort = errors.New("error creating input port")
	ErrConnectSource   = errors.New("error connecting to MIDI source")
)

// internalPortConnection is an interface for handling disconnection from a MIDI source.
type internalPortConnection interface {
	Disconnect()
}

// Driver talks to macOS CoreMIDI through one shared client. Port
// identities are composed from the entity, manufacturer, and port
// names, with a counter suffix when several ports collide on the same
// composed name.
type Driver struct {
	logger     contracts.Logger
	clientName string
	client     coremidi.Client

	mu      sync.Mutex
	inputs  []*inputPort
	outputs []*outputPort
}

// New creates the CoreMIDI driver, registering a client under the
// configured client name.
func New(options *contracts.ClientOptions) (contracts.Driver, error) {
	client, err := coremidi.NewClient(options.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("CoreMIDI client successfully created",
		options.Logger.Field().String("client", options.ClientName))
	return &Driver{
		logger:     options.Logger,
		clientName: options.ClientName,
		client:     client,
	}, nil
}

func (d *Driver) String() string {
	return "coremidi"
}

// portID composes a stable identity for a port.
func portID(seen map[string]int, entityName, manufacturer, name string) string {
	id := fmt.Sprintf("%s/%s/%s", manufacturer, entityName, name)
	seen[id]++
	if n := seen[id]; n > 1 {
		id = fmt.Sprintf("%s#%d", id, n)
	}
	return id
}

// Inputs enumerates the currently visible MIDI sources.
func (d *Driver) Inputs() ([]contracts.PortInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	seen := make(map[string]int)
	ports := make([]contracts.PortInfo, len(sources))
	for i, source := range sources {
		entity := source.Entity()
		ports[i] = contracts.PortInfo{
			ID:   portID(seen, entity.Name(), entity.Manufacturer(), source.Name()),
			Name: source.Name(),
		}
	}
	return ports, nil
}

// Outputs enumerates the currently visible MIDI destinations.
func (d *Driver) Outputs() ([]contracts.PortInfo, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	seen := make(map[string]int)
	ports := make([]contracts.PortInfo, len(destinations))
	for i, destination := range destinations {
		entity := destination.Entity()
		ports[i] = contracts.PortInfo{
			ID:   portID(seen, entity.Name(), entity.Manufacturer(), destination.Name()),
			Name: destination.Name(),
		}
	}
	return ports, nil
}

// OpenInput opens the MIDI source with the given identity.
func (d *Driver) OpenInput(id string) (contracts.InputPort, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	seen := make(map[string]int)
	for _, source := range sources {
		entity := source.Entity()
		if portID(seen, entity.Name(), entity.Manufacturer(), source.Name()) != id {
			continue
		}
		p := &inputPort{driver: d, source: source}
		d.mu.Lock()
		d.inputs = append(d.inputs, p)
		d.mu.Unlock()
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPort, id)
}

// OpenOutput opens the MIDI destination with the given identity.
func (d *Driver) OpenOutput(id string) (contracts.OutputPort, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	seen := make(map[string]int)
	for _, destination := range destinations {
		entity := destination.Entity()
		if portID(seen, entity.Name(), entity.Manufacturer(), destination.Name()) != id {
			continue
		}
		port, err := coremidi.NewOutputPort(d.client, d.clientName)
		if err != nil {
			return nil, fmt.Errorf("error creating output port: %w", err)
		}
		p := &outputPort{port: port, destination: destination}
		d.mu.Lock()
		d.outputs = append(d.outputs, p)
		d.mu.Unlock()
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPort, id)
}

// Close disconnects every port the driver handed out.
func (d *Driver) Close() error {
	d.mu.Lock()
	inputs := d.inputs
	outputs := d.outputs
	d.inputs, d.outputs = nil, nil
	d.mu.Unlock()
	var err error
	for _, p := range inputs {
		err = multierr.Append(err, p.Close())
	}
	for _, p := range outputs {
		err = multierr.Append(err, p.Close())
	}
	return err
}

// inputPort is one open CoreMIDI source subscription. The CoreMIDI
// input port is created when the receiver is registered, because the
// packet handler is bound at port creation time.
type inputPort struct {
	driver *Driver
	source coremidi.Source

	mu   sync.Mutex
	recv contracts.Receiver
	conn internalPortConnection
}

// SetReceiver creates the CoreMIDI input port and connects the source.
func (p *inputPort) SetReceiver(r contracts.Receiver) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return errors.New("receiver already registered")
	}
	port, err := coremidi.NewInputPort(p.driver.client, p.driver.clientName, p.handlePacket)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}
	conn, err := port.Connect(p.source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectSource, err)
	}
	p.recv = r
	p.conn = conn
	return nil
}

// handlePacket forwards one inbound packet to the receiver. CoreMIDI
// packet timestamps are in mach absolute time units, so they are not
// converted here; deliveries carry no timestamp.
func (p *inputPort) handlePacket(source coremidi.Source, packet coremidi.Packet) {
	p.mu.Lock()
	if r := p.recv; r != nil && len(packet.Data) > 0 {
		r(-1, append([]byte(nil), packet.Data...))
	}
	p.mu.Unlock()
}

// ClearReceiver disconnects the source. Acquiring the mutex waits out
// any in-flight delivery.
func (p *inputPort) ClearReceiver() error {
	p.mu.Lock()
	p.recv = nil
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()
	if conn != nil {
		conn.Disconnect()
	}
	return nil
}

func (p *inputPort) Close() error {
	return p.ClearReceiver()
}

// outputPort is one open CoreMIDI destination.
type outputPort struct {
	port        coremidi.OutputPort
	destination coremidi.Destination

	mu     sync.Mutex
	closed bool
}

// Write sends the message to the destination in a single packet.
func (p *outputPort) Write(message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("output port is closed")
	}
	packet := coremidi.NewPacket(append([]byte(nil), message...), 0)
	return packet.Send(&p.port, &p.destination)
}

func (p *outputPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
