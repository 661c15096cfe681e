//go:build windows
// +build windows

package winmm

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/miditools/midiport/sdk/contracts"
	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type hMidiIn windows.Handle
type hMidiOut windows.Handle

// Constants for callback flags
const (
	CALLBACK_NULL     = 0x00000000 // No callback mechanism
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_LONGDATA  = 0x3C4 // Long MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

// MIDIHDR flag set once the device is done with a buffer
const mhdrDone = 0x00000001

// Struct representing MIDI input device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// Struct representing a long-message buffer header
type midiHdr struct {
	lpData          uintptr
	dwBufferLength  uint32
	dwBytesRecorded uint32
	dwUser          uintptr
	dwFlags         uint32
	lpNext          uintptr
	reserved        uintptr
	dwOffset        uint32
	dwReserved      [8]uintptr
}

// Load the winmm.dll library and required functions
var (
	winmm                      = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs       = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps       = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen             = winmm.NewProc("midiInOpen")
	procMidiInStart            = winmm.NewProc("midiInStart")
	procMidiInStop             = winmm.NewProc("midiInStop")
	procMidiInClose            = winmm.NewProc("midiInClose")
	procMidiOutGetNumDevs      = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps      = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen            = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg        = winmm.NewProc("midiOutShortMsg")
	procMidiOutPrepareHeader   = winmm.NewProc("midiOutPrepareHeader")
	procMidiOutLongMsg         = winmm.NewProc("midiOutLongMsg")
	procMidiOutUnprepareHeader = winmm.NewProc("midiOutUnprepareHeader")
	procMidiOutClose           = winmm.NewProc("midiOutClose")
)

// midiInCallbackPtr is created once; Windows callback slots are a
// process-wide limited resource.
var midiInCallbackPtr = windows.NewCallback(midiInCallback)

// tokenRegistry maps the opaque instance value passed through
// midiInOpen back to the owning port. Handing Go pointers to the
// platform directly is not safe, so ports are keyed by token.
var (
	tokensMu  sync.Mutex
	nextToken uintptr
	tokens    = map[uintptr]*inputPort{}
)

func registerToken(p *inputPort) uintptr {
	tokensMu.Lock()
	defer tokensMu.Unlock()
	nextToken++
	tokens[nextToken] = p
	return nextToken
}

func lookupToken(token uintptr) *inputPort {
	tokensMu.Lock()
	defer tokensMu.Unlock()
	return tokens[token]
}

func releaseToken(token uintptr) {
	tokensMu.Lock()
	defer tokensMu.Unlock()
	delete(tokens, token)
}

// Driver talks to the Windows multimedia MIDI API. Device identities
// are the device names reported by the driver, with a counter suffix
// when several devices share a name.
type Driver struct {
	logger contracts.Logger

	mu      sync.Mutex
	inputs  []*inputPort
	outputs []*outputPort
}

// New creates the winmm driver.
func New(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Info("MIDI driver created for Windows")
	return &Driver{logger: options.Logger}, nil
}

func (d *Driver) String() string {
	return "winmm"
}

func portID(seen map[string]int, name string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return fmt.Sprintf("%s#%d", name, n)
	}
	return name
}

// inputDeviceName reads the display name of one input device.
func inputDeviceName(device uint32) (string, bool) {
	var caps midiInCaps
	r1, _, _ := procMidiInGetDevCaps.Call(
		uintptr(device),
		uintptr(unsafe.Pointer(&caps)),
		unsafe.Sizeof(caps),
	)
	if r1 != 0 {
		return "", false
	}
	return windows.UTF16ToString(caps.szPname[:]), true
}

// outputDeviceName reads the display name of one output device.
func outputDeviceName(device uint32) (string, bool) {
	var caps midiOutCaps
	r1, _, _ := procMidiOutGetDevCaps.Call(
		uintptr(device),
		uintptr(unsafe.Pointer(&caps)),
		unsafe.Sizeof(caps),
	)
	if r1 != 0 {
		return "", false
	}
	return windows.UTF16ToString(caps.szPname[:]), true
}

// Inputs enumerates the available MIDI input devices.
func (d *Driver) Inputs() ([]contracts.PortInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)
	seen := make(map[string]int)
	ports := make([]contracts.PortInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		name, ok := inputDeviceName(i)
		if !ok {
			d.logger.Warn(fmt.Sprintf("Failed to get information for MIDI input device %d", i))
			continue
		}
		ports = append(ports, contracts.PortInfo{ID: portID(seen, name), Name: name})
	}
	return ports, nil
}

// Outputs enumerates the available MIDI output devices.
func (d *Driver) Outputs() ([]contracts.PortInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)
	seen := make(map[string]int)
	ports := make([]contracts.PortInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		name, ok := outputDeviceName(i)
		if !ok {
			d.logger.Warn(fmt.Sprintf("Failed to get information for MIDI output device %d", i))
			continue
		}
		ports = append(ports, contracts.PortInfo{ID: portID(seen, name), Name: name})
	}
	return ports, nil
}

// findInputDevice resolves a port identity to the current device number.
func findInputDevice(id string) (uint32, bool) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	seen := make(map[string]int)
	for i := uint32(0); i < uint32(r0); i++ {
		name, ok := inputDeviceName(i)
		if !ok {
			continue
		}
		if portID(seen, name) == id {
			return i, true
		}
	}
	return 0, false
}

// findOutputDevice resolves a port identity to the current device number.
func findOutputDevice(id string) (uint32, bool) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	seen := make(map[string]int)
	for i := uint32(0); i < uint32(r0); i++ {
		name, ok := outputDeviceName(i)
		if !ok {
			continue
		}
		if portID(seen, name) == id {
			return i, true
		}
	}
	return 0, false
}

// OpenInput opens the input device with the given identity. Capture
// does not start until a receiver is registered.
func (d *Driver) OpenInput(id string) (contracts.InputPort, error) {
	device, ok := findInputDevice(id)
	if !ok {
		return nil, fmt.Errorf("unknown MIDI input device %q", id)
	}
	p := &inputPort{logger: d.logger, id: id}
	p.token = registerToken(p)

	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&p.handle)),
		uintptr(device),
		midiInCallbackPtr,
		p.token,
		uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
	)
	if r1 != 0 {
		releaseToken(p.token)
		d.logger.Error(fmt.Sprintf("Failed to open MIDI input device %d: %v", device, err))
		return nil, fmt.Errorf("failed to open MIDI input device %d: %v", device, err)
	}
	d.mu.Lock()
	d.inputs = append(d.inputs, p)
	d.mu.Unlock()
	return p, nil
}

// OpenOutput opens the output device with the given identity.
func (d *Driver) OpenOutput(id string) (contracts.OutputPort, error) {
	device, ok := findOutputDevice(id)
	if !ok {
		return nil, fmt.Errorf("unknown MIDI output device %q", id)
	}
	p := &outputPort{logger: d.logger, id: id}
	r1, _, err := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&p.handle)),
		uintptr(device),
		0,
		0,
		uintptr(CALLBACK_NULL),
	)
	if r1 != 0 {
		d.logger.Error(fmt.Sprintf("Failed to open MIDI output device %d: %v", device, err))
		return nil, fmt.Errorf("failed to open MIDI output device %d: %v", device, err)
	}
	d.mu.Lock()
	d.outputs = append(d.outputs, p)
	d.mu.Unlock()
	return p, nil
}

// Close closes every port the driver handed out.
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

// midiInCallback processes incoming MIDI messages for all open ports.
func midiInCallback(hmi uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	p := lookupToken(dwInstance)
	if p == nil {
		return 0
	}

	switch wMsg {
	case MIM_OPEN:
		p.logger.Debug("MIDI input device opened")
	case MIM_CLOSE:
		p.logger.Debug("MIDI input device closed")
	case MIM_DATA:
		status := byte(dwParam1 & 0xFF)
		data1 := byte((dwParam1 >> 8) & 0xFF)
		data2 := byte((dwParam1 >> 16) & 0xFF)
		message := []byte{status, data1, data2}[:midiMessageLen(status)]
		p.deliver(int64(dwParam2)*1000, message)
	case MIM_LONGDATA:
		// System-exclusive receive needs pre-queued buffers; not wired.
		p.logger.Debug("Received MIM_LONGDATA message; ignored")
	case MIM_ERROR, MIM_LONGERROR:
		p.logger.Error(fmt.Sprintf("MIDI error: msg=0x%X", wMsg))
	case MIM_MOREDATA:
		p.logger.Debug("Received MIM_MOREDATA message; ignored")
	default:
		p.logger.Warn(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}

	return 0
}

// inputPort is one open winmm input device.
type inputPort struct {
	logger contracts.Logger
	id     string
	token  uintptr
	handle hMidiIn

	mu      sync.Mutex
	recv    contracts.Receiver
	started bool
	closed  bool
}

func (p *inputPort) deliver(timestampUS int64, message []byte) {
	p.mu.Lock()
	if r := p.recv; r != nil {
		r(timestampUS, append([]byte(nil), message...))
	}
	p.mu.Unlock()
}

// SetReceiver registers the sink and starts capture.
func (p *inputPort) SetReceiver(r contracts.Receiver) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("input port is closed")
	}
	p.recv = r
	if p.started {
		return nil
	}
	r1, _, err := procMidiInStart.Call(uintptr(p.handle))
	if r1 != 0 {
		p.recv = nil
		return fmt.Errorf("failed to start MIDI capture: %v", err)
	}
	p.started = true
	return nil
}

// ClearReceiver stops capture. Acquiring the mutex waits out any
// in-flight delivery.
func (p *inputPort) ClearReceiver() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recv = nil
	if !p.started {
		return nil
	}
	r1, _, err := procMidiInStop.Call(uintptr(p.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to stop MIDI capture: %v", err)
	}
	p.started = false
	return nil
}

// Close stops capture and closes the device.
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
	releaseToken(p.token)
	r1, _, err := procMidiInClose.Call(uintptr(p.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI input device: %v", err)
	}
	p.handle = 0
	return nil
}

// outputPort is one open winmm output device.
type outputPort struct {
	logger contracts.Logger
	id     string
	handle hMidiOut

	mu     sync.Mutex
	closed bool
}

// Write sends the message. Messages of up to three bytes go out as one
// packed short message; longer ones, and anything starting a
// system-exclusive block, go through the long-message path.
func (p *outputPort) Write(message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("output port is closed")
	}
	if len(message) == 0 {
		return nil
	}
	if len(message) <= 3 && message[0] != 0xF0 {
		var packed uint32
		for i := len(message) - 1; i >= 0; i-- {
			packed = packed<<8 | uint32(message[i])
		}
		r1, _, err := procMidiOutShortMsg.Call(uintptr(p.handle), uintptr(packed))
		if r1 != 0 {
			return fmt.Errorf("failed to send MIDI message: %v", err)
		}
		return nil
	}
	return p.writeLong(message)
}

// writeLong sends a buffer through prepare/long/unprepare, waiting for
// the device to finish with the buffer before releasing it.
func (p *outputPort) writeLong(message []byte) error {
	buf := append([]byte(nil), message...)
	hdr := midiHdr{
		lpData:         uintptr(unsafe.Pointer(&buf[0])),
		dwBufferLength: uint32(len(buf)),
	}
	hdrSize := unsafe.Sizeof(hdr)

	r1, _, err := procMidiOutPrepareHeader.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&hdr)), hdrSize)
	if r1 != 0 {
		return fmt.Errorf("failed to prepare MIDI buffer: %v", err)
	}
	r1, _, err = procMidiOutLongMsg.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&hdr)), hdrSize)
	if r1 != 0 {
		procMidiOutUnprepareHeader.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&hdr)), hdrSize)
		return fmt.Errorf("failed to send long MIDI message: %v", err)
	}
	for hdr.dwFlags&mhdrDone == 0 {
		time.Sleep(time.Millisecond)
	}
	r1, _, err = procMidiOutUnprepareHeader.Call(uintptr(p.handle), uintptr(unsafe.Pointer(&hdr)), hdrSize)
	runtime.KeepAlive(buf)
	if r1 != 0 {
		return fmt.Errorf("failed to release MIDI buffer: %v", err)
	}
	return nil
}

// Close closes the device.
func (p *outputPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	r1, _, err := procMidiOutClose.Call(uintptr(p.handle))
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI output device: %v", err)
	}
	p.handle = 0
	return nil
}
