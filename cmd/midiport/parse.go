package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miditools/midiport/sdk/contracts"
)

// parseMessage converts hex byte tokens, with or without an 0x prefix,
// into a raw MIDI message.
func parseMessage(args []string) ([]byte, error) {
	message := make([]byte, 0, len(args))
	for _, arg := range args {
		tok := strings.TrimPrefix(strings.ToLower(arg), "0x")
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid message byte %q", arg)
		}
		message = append(message, byte(b))
	}
	return message, nil
}

// parseIgnore converts a comma-separated category list into ignore
// flags. An empty spec ignores nothing.
func parseIgnore(spec string) (contracts.Ignore, error) {
	flags := contracts.IgnoreNone
	if spec == "" {
		return flags, nil
	}
	for _, tok := range strings.Split(spec, ",") {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "sysex":
			flags |= contracts.IgnoreSysex
		case "time":
			flags |= contracts.IgnoreTime
		case "activesense":
			flags |= contracts.IgnoreActiveSense
		case "all":
			flags |= contracts.IgnoreAll
		case "none", "":
		default:
			return contracts.IgnoreNone, fmt.Errorf("unknown ignore category %q", strings.TrimSpace(tok))
		}
	}
	return flags, nil
}
