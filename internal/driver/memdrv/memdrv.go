// Package memdrv provides an in-memory MIDI driver for tests. Ports
// are added by hand, inbound messages are injected with Emit, and
// outbound messages are captured for inspection.
package memdrv

import (
	"fmt"
	"sync"

	"github.com/miditools/midiport/sdk/contracts"
	"go.uber.org/multierr"
)

// Driver is a scriptable contracts.Driver with no platform behind it.
type Driver struct {
	mu      sync.Mutex
	inputs  []*InputHandle
	outputs []*OutputHandle
}

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{}
}

func (d *Driver) String() string {
	return "mem"
}

// AddInput makes a new input port discoverable and returns its handle
// for scripting.
func (d *Driver) AddInput(id, name string) *InputHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := &InputHandle{info: contracts.PortInfo{ID: id, Name: name}}
	d.inputs = append(d.inputs, h)
	return h
}

// AddOutput makes a new output port discoverable and returns its handle.
func (d *Driver) AddOutput(id, name string) *OutputHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := &OutputHandle{info: contracts.PortInfo{ID: id, Name: name}}
	d.outputs = append(d.outputs, h)
	return h
}

// RemoveInput hides an input port from discovery, as if unplugged.
// An existing open handle keeps working until closed.
func (d *Driver) RemoveInput(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, h := range d.inputs {
		if h.info.ID == id {
			d.inputs = append(d.inputs[:i], d.inputs[i+1:]...)
			return
		}
	}
}

// Inputs enumerates the currently visible input ports.
func (d *Driver) Inputs() ([]contracts.PortInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]contracts.PortInfo, 0, len(d.inputs))
	for _, h := range d.inputs {
		out = append(out, h.info)
	}
	return out, nil
}

// Outputs enumerates the currently visible output ports.
func (d *Driver) Outputs() ([]contracts.PortInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]contracts.PortInfo, 0, len(d.outputs))
	for _, h := range d.outputs {
		out = append(out, h.info)
	}
	return out, nil
}

// OpenInput opens the input port with the given identity.
func (d *Driver) OpenInput(id string) (contracts.InputPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.inputs {
		if h.info.ID == id {
			return h.open()
		}
	}
	return nil, fmt.Errorf("unknown input port %q", id)
}

// OpenOutput opens the output port with the given identity.
func (d *Driver) OpenOutput(id string) (contracts.OutputPort, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.outputs {
		if h.info.ID == id {
			return h.open()
		}
	}
	return nil, fmt.Errorf("unknown output port %q", id)
}

// Close closes every port the driver handed out.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	for _, h := range d.inputs {
		err = multierr.Append(err, h.Close())
	}
	for _, h := range d.outputs {
		err = multierr.Append(err, h.Close())
	}
	return err
}

// InputHandle is a scriptable input port. Emit injects messages as if
// the device sent them; the same mutex serializes Emit against
// SetReceiver and ClearReceiver, so ClearReceiver never returns while
// a delivery is in flight.
type InputHandle struct {
	info    contracts.PortInfo
	mu      sync.Mutex
	opened  bool
	openErr error
	recv    contracts.Receiver
}

func (h *InputHandle) open() (contracts.InputPort, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.openErr != nil {
		return nil, h.openErr
	}
	h.opened = true
	return h, nil
}

// FailOpen makes subsequent opens of this port fail with err.
func (h *InputHandle) FailOpen(err error) {
	h.mu.Lock()
	h.openErr = err
	h.mu.Unlock()
}

// Emit delivers a message to the registered receiver and reports
// whether anyone received it. The timestamp passes through unchanged.
func (h *InputHandle) Emit(timestampUS int64, message []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.opened || h.recv == nil {
		return false
	}
	h.recv(timestampUS, append([]byte(nil), message...))
	return true
}

// SetReceiver registers the delivery sink.
func (h *InputHandle) SetReceiver(r contracts.Receiver) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.opened {
		return fmt.Errorf("input port %q is not open", h.info.ID)
	}
	h.recv = r
	return nil
}

// ClearReceiver unregisters the delivery sink.
func (h *InputHandle) ClearReceiver() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recv = nil
	return nil
}

// Close closes the port. Further Emit calls deliver nowhere.
func (h *InputHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = false
	h.recv = nil
	return nil
}

// OutputHandle is a scriptable output port capturing written messages.
type OutputHandle struct {
	info     contracts.PortInfo
	mu       sync.Mutex
	opened   bool
	openErr  error
	writeErr error
	written  [][]byte
}

func (h *OutputHandle) open() (contracts.OutputPort, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.openErr != nil {
		return nil, h.openErr
	}
	h.opened = true
	return h, nil
}

// FailOpen makes subsequent opens of this port fail with err.
func (h *OutputHandle) FailOpen(err error) {
	h.mu.Lock()
	h.openErr = err
	h.mu.Unlock()
}

// FailWrites makes subsequent writes fail with err; nil restores them.
func (h *OutputHandle) FailWrites(err error) {
	h.mu.Lock()
	h.writeErr = err
	h.mu.Unlock()
}

// Write captures a copy of the message.
func (h *OutputHandle) Write(message []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.opened {
		return fmt.Errorf("output port %q is closed", h.info.ID)
	}
	if h.writeErr != nil {
		return h.writeErr
	}
	h.written = append(h.written, append([]byte(nil), message...))
	return nil
}

// Written returns the messages written so far, oldest first.
func (h *OutputHandle) Written() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.written))
	copy(out, h.written)
	return out
}

// Close closes the port. Further writes fail.
func (h *OutputHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = false
	return nil
}
