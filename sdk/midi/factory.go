package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/miditools/midiport/internal/driver/coremidi"
	"github.com/miditools/midiport/internal/driver/portmidi"
	"github.com/miditools/midiport/internal/driver/rtmidi"
	"github.com/miditools/midiport/internal/driver/winmm"
	"github.com/miditools/midiport/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system has no platform driver.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// driverLoaders maps OS names to the default platform driver loader.
var driverLoaders = map[string]func(*contracts.ClientOptions) (contracts.Driver, error){
	"darwin":  coremidi.New, // macOS (Darwin) CoreMIDI driver.
	"windows": winmm.New,    // Windows multimedia (winmm) driver.
	"linux":   rtmidi.New,   // Linux ALSA driver via rtmidi.
}

// namedLoaders maps driver names accepted by WithDriverName.
var namedLoaders = map[string]func(*contracts.ClientOptions) (contracts.Driver, error){
	"coremidi": coremidi.New,
	"winmm":    winmm.New,
	"rtmidi":   rtmidi.New,
	"portmidi": portmidi.New,
}

// platformRegistry is the process-wide home of the lazily loaded
// platform driver. Every session built without WithDriver shares it.
var platformRegistry = newRegistry(loadPlatformDriver)

// loadPlatformDriver builds the driver selected by the options, or the
// default one for the current operating system.
func loadPlatformDriver(opts *contracts.ClientOptions) (contracts.Driver, error) {
	if opts.DriverName != "" {
		if loader, exists := namedLoaders[opts.DriverName]; exists {
			return loader(opts)
		}
		return nil, fmt.Errorf("unknown midi driver %q", opts.DriverName)
	}
	if loader, exists := driverLoaders[runtime.GOOS]; exists {
		return loader(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}

// checkPlatform reports, without loading anything, whether the options
// can possibly resolve to a driver. Sessions call it so an unsupported
// platform fails at construction instead of at first use.
func checkPlatform(opts *contracts.ClientOptions) error {
	if opts.DriverName != "" {
		if _, exists := namedLoaders[opts.DriverName]; !exists {
			return fmt.Errorf("unknown midi driver %q", opts.DriverName)
		}
		return nil
	}
	if _, exists := driverLoaders[runtime.GOOS]; !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
	}
	return nil
}

// resolveDriverSource decides where a new session gets its driver from:
// a caller-supplied driver is used as-is, otherwise the platform
// registry is requested. A registry that already failed surfaces the
// stored error immediately.
func resolveDriverSource(opts *contracts.ClientOptions) (*driverSource, error) {
	if opts.Driver != nil {
		return newFixedSource(opts.Driver), nil
	}
	if err := checkPlatform(opts); err != nil {
		return nil, err
	}
	platformRegistry.request(opts)
	if state, _, err := platformRegistry.snapshot(); state == DriverFailed {
		return nil, err
	}
	return newRegistrySource(platformRegistry), nil
}
