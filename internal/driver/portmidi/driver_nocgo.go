//go:build !cgo
// +build !cgo

package portmidi

import (
	"fmt"

	"github.com/miditools/midiport/sdk/contracts"
)

// New reports that the PortMidi driver is unavailable without cgo.
func New(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("portmidi driver requires cgo")
	return nil, fmt.Errorf("portmidi driver requires cgo")
}
