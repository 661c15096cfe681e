//go:build cgo
// +build cgo

package portmidi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/miditools/midiport/sdk/contracts"
	pm "github.com/rakyll/portmidi"
	"go.uber.org/multierr"
)

const (
	streamBufferSize = 1024
	readBatchSize    = 64
)

// Driver wraps the portable PortMidi library. Devices are identified
// by interface and device name, with a counter suffix on collisions.
// PortMidi packs system-exclusive data across events; those frames are
// not reassembled and inbound sysex is dropped.
type Driver struct {
	logger contracts.Logger

	mu      sync.Mutex
	inputs  []*inputPort
	outputs []*outputPort
}

// New initializes PortMidi and creates the driver.
func New(options *contracts.ClientOptions) (contracts.Driver, error) {
	if err := pm.Initialize(); err != nil {
		return nil, fmt.Errorf("error initializing portmidi: %w", err)
	}
	options.Logger.Info("portmidi driver created")
	return &Driver{logger: options.Logger}, nil
}

func (d *Driver) String() string {
	return "portmidi"
}

func portID(seen map[string]int, interf, name string) string {
	id := fmt.Sprintf("%s/%s", interf, name)
	seen[id]++
	if n := seen[id]; n > 1 {
		id = fmt.Sprintf("%s#%d", id, n)
	}
	return id
}

// Inputs enumerates the available input devices.
func (d *Driver) Inputs() ([]contracts.PortInfo, error) {
	seen := make(map[string]int)
	var ports []contracts.PortInfo
	for i := 0; i < pm.CountDevices(); i++ {
		info := pm.Info(pm.DeviceID(i))
		if info == nil || !info.IsInputAvailable {
			continue
		}
		ports = append(ports, contracts.PortInfo{
			ID:   portID(seen, info.Interf, info.Name),
			Name: info.Name,
		})
	}
	return ports, nil
}

// Outputs enumerates the available output devices.
func (d *Driver) Outputs() ([]contracts.PortInfo, error) {
	seen := make(map[string]int)
	var ports []contracts.PortInfo
	for i := 0; i < pm.CountDevices(); i++ {
		info := pm.Info(pm.DeviceID(i))
		if info == nil || !info.IsOutputAvailable {
			continue
		}
		ports = append(ports, contracts.PortInfo{
			ID:   portID(seen, info.Interf, info.Name),
			Name: info.Name,
		})
	}
	return ports, nil
}

// findDevice resolves a port identity to its current device number.
func findDevice(id string, input bool) (pm.DeviceID, bool) {
	seen := make(map[string]int)
	for i := 0; i < pm.CountDevices(); i++ {
		info := pm.Info(pm.DeviceID(i))
		if info == nil {
			continue
		}
		if input && !info.IsInputAvailable {
			continue
		}
		if !input && !info.IsOutputAvailable {
			continue
		}
		if portID(seen, info.Interf, info.Name) == id {
			return pm.DeviceID(i), true
		}
	}
	return 0, false
}

// OpenInput opens the input device with the given identity.
func (d *Driver) OpenInput(id string) (contracts.InputPort, error) {
	device, ok := findDevice(id, true)
	if !ok {
		return nil, fmt.Errorf("unknown MIDI input device %q", id)
	}
	stream, err := pm.NewInputStream(device, streamBufferSize)
	if err != nil {
		return nil, fmt.Errorf("error opening MIDI input %q: %w", id, err)
	}
	p := &inputPort{logger: d.logger, stream: stream}
	d.mu.Lock()
	d.inputs = append(d.inputs, p)
	d.mu.Unlock()
	return p, nil
}

// OpenOutput opens the output device with the given identity.
func (d *Driver) OpenOutput(id string) (contracts.OutputPort, error) {
	device, ok := findDevice(id, false)
	if !ok {
		return nil, fmt.Errorf("unknown MIDI output device %q", id)
	}
	stream, err := pm.NewOutputStream(device, streamBufferSize, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening MIDI output %q: %w", id, err)
	}
	p := &outputPort{stream: stream}
	d.mu.Lock()
	d.outputs = append(d.outputs, p)
	d.mu.Unlock()
	return p, nil
}

// Close closes every open stream and terminates PortMidi.
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
	return multierr.Append(err, pm.Terminate())
}

// midiMessageLen gives the byte count of a short message by status.
func midiMessageLen(status byte) int {
	switch {
	case status >= 0xC0 && status <= 0xDF:
		return 2
	case status == 0xF1 || status == 0xF3:
		return 2
	case status == 0xF2:
		return 3
	case status >= 0xF4:
		return 1
	default:
		return 3
	}
}

// eventBytes rebuilds the wire bytes of one short message. Sysex
// frames and continuation data yield nil.
func eventBytes(e pm.Event) []byte {
	status := byte(e.Status & 0xFF)
	if status < 0x80 || status == 0xF0 || status == 0xF7 {
		return nil
	}
	return []byte{status, byte(e.Data1 & 0xFF), byte(e.Data2 & 0xFF)}[:midiMessageLen(status)]
}

// inputPort is one open PortMidi input stream. PortMidi has no
// callback API, so a poll loop drains the stream while a receiver is
// registered.
type inputPort struct {
	logger contracts.Logger
	stream *pm.Stream

	mu     sync.Mutex
	recv   contracts.Receiver
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// SetReceiver registers the sink and starts the poll loop.
func (p *inputPort) SetReceiver(r contracts.Receiver) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("input port is closed")
	}
	if p.stop != nil {
		return errors.New("receiver already registered")
	}
	p.recv = r
	p.stop = make(chan struct{})
	p.wg.Add(1)
	go p.pollLoop(p.stop)
	return nil
}

func (p *inputPort) pollLoop(stop chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}
		ready, err := p.stream.Poll()
		if err != nil {
			p.logger.Warn("portmidi poll failed", p.logger.Field().Error("error", err))
			return
		}
		if !ready {
			time.Sleep(time.Millisecond)
			continue
		}
		events, err := p.stream.Read(readBatchSize)
		if err != nil {
			p.logger.Warn("portmidi read failed", p.logger.Field().Error("error", err))
			return
		}
		for _, e := range events {
			p.deliver(e)
		}
	}
}

func (p *inputPort) deliver(e pm.Event) {
	message := eventBytes(e)
	if message == nil {
		return
	}
	p.mu.Lock()
	if r := p.recv; r != nil {
		r(int64(e.Timestamp)*1000, message)
	}
	p.mu.Unlock()
}

// ClearReceiver stops the poll loop and waits for it to exit, which
// also waits out any in-flight delivery.
func (p *inputPort) ClearReceiver() error {
	p.mu.Lock()
	p.recv = nil
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
		p.wg.Wait()
	}
	return nil
}

// Close stops the poll loop and closes the stream.
func (p *inputPort) Close() error {
	if err := p.ClearReceiver(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.stream.Close()
}

// outputPort is one open PortMidi output stream.
type outputPort struct {
	mu     sync.Mutex
	closed bool
	stream *pm.Stream
}

// Write sends the message. Short messages go out packed; anything
// longer than three bytes, or starting a system-exclusive block, goes
// through the sysex path.
func (p *outputPort) Write(message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("output port is closed")
	}
	if len(message) == 0 {
		return nil
	}
	if len(message) > 3 || message[0] == 0xF0 {
		return p.stream.WriteSysExBytes(0, append([]byte(nil), message...))
	}
	var data1, data2 int64
	if len(message) > 1 {
		data1 = int64(message[1])
	}
	if len(message) > 2 {
		data2 = int64(message[2])
	}
	return p.stream.WriteShort(int64(message[0]), data1, data2)
}

// Close closes the stream.
func (p *outputPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.stream.Close()
}
