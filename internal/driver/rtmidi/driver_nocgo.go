//go:build !cgo
// +build !cgo

package rtmidi

import (
	"fmt"

	"github.com/miditools/midiport/sdk/contracts"
)

// New reports that rtmidi needs cgo.
func New(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("rtmidi driver requires cgo")
	return nil, fmt.Errorf("rtmidi driver requires cgo")
}
