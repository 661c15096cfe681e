package contracts

// PortInfo describes one discoverable MIDI port.
type PortInfo struct {
	ID   string // Stable identity assigned by the platform backend.
	Name string // Display name; may be empty when the platform reports none.
}

// Receiver consumes inbound messages from an open input port.
//
// timestampUS is the delivery time in microseconds relative to an
// arbitrary per-port epoch chosen by the driver, or negative when the
// driver cannot provide one. message must remain valid after the call
// returns; drivers copy when their native layer reuses buffers.
type Receiver func(timestampUS int64, message []byte)

// Driver is the capability contract every platform backend satisfies.
// Implementations live under internal/driver and are selected per
// operating system; sessions never reach past this interface.
type Driver interface {
	// String returns the short driver name, e.g. "coremidi".
	String() string
	// Inputs enumerates the currently visible input ports.
	Inputs() ([]PortInfo, error)
	// Outputs enumerates the currently visible output ports.
	Outputs() ([]PortInfo, error)
	// OpenInput opens the input port with the given identity.
	OpenInput(id string) (InputPort, error)
	// OpenOutput opens the output port with the given identity.
	OpenOutput(id string) (OutputPort, error)
	// Close releases the driver and every port it opened.
	Close() error
}

// InputPort is an open input endpoint delivering messages to a Receiver.
type InputPort interface {
	// SetReceiver registers the delivery sink. Messages observed before a
	// receiver is set are discarded by the driver.
	SetReceiver(r Receiver) error
	// ClearReceiver unregisters the sink. It does not return while a
	// delivery is in flight; once it returns the receiver is never
	// invoked again.
	ClearReceiver() error
	Close() error
}

// OutputPort is an open output endpoint accepting raw MIDI bytes.
type OutputPort interface {
	Write(message []byte) error
	Close() error
}
