//go:build !darwin
// +build !darwin

package coremidi

import (
	"fmt"

	"github.com/miditools/midiport/sdk/contracts"
)

// New reports that CoreMIDI is unavailable on non-macOS systems.
func New(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("CoreMIDI is not available on this platform")
	return nil, fmt.Errorf("coremidi driver is not available on this platform")
}
