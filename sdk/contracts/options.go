package contracts

// ClientOptions defines the configuration options for a MIDI session.
type ClientOptions struct {
	Logger     Logger   // Logger for session and driver events.
	LogLevel   LogLevel // Minimum level the logger emits.
	ClientName string   // Name under which the session registers with the platform MIDI service.
	Driver     Driver   // Explicit driver; bypasses platform selection when set.
	DriverName string   // Named platform driver to load, e.g. "portmidi". Empty selects the platform default.
	Ignore     Ignore   // Initial ignore flags for input sessions.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the session.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the session.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithClientName sets the name reported to the platform MIDI service.
func WithClientName(name string) Option {
	return func(opts *ClientOptions) {
		opts.ClientName = name
	}
}

// WithDriver supplies the driver directly instead of loading the
// platform one. Sessions built this way share nothing process-wide.
func WithDriver(d Driver) Option {
	return func(opts *ClientOptions) {
		opts.Driver = d
	}
}

// WithDriverName selects a named platform driver for the process.
// Only the first session to touch the platform registry decides.
func WithDriverName(name string) Option {
	return func(opts *ClientOptions) {
		opts.DriverName = name
	}
}

// WithIgnore sets the initial ignore flags for an input session.
func WithIgnore(flags Ignore) Option {
	return func(opts *ClientOptions) {
		opts.Ignore = flags
	}
}
