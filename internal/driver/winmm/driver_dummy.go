//go:build !windows
// +build !windows

package winmm

import (
	"fmt"

	"github.com/miditools/midiport/sdk/contracts"
)

// New reports that the winmm driver is unavailable off Windows.
func New(options *contracts.ClientOptions) (contracts.Driver, error) {
	options.Logger.Warn("winmm is not available on this platform")
	return nil, fmt.Errorf("winmm driver is not available on this platform")
}
