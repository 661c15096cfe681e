package contracts

// Status bytes the ignore filter classifies. Every other status byte
// always passes through to the delivery callback.
const (
	StatusSysexStart  byte = 0xF0 // System-exclusive start.
	StatusTimeCode    byte = 0xF1 // MIDI time code quarter frame.
	StatusTimingClock byte = 0xF8 // Real-time timing clock.
	StatusActiveSense byte = 0xFE // Active sensing keep-alive.
)

// Ignore is a bitset of inbound message categories suppressed before
// delivery. Filtering looks at the leading status byte only and never
// inspects the payload.
type Ignore uint8

const (
	IgnoreNone        Ignore = 0x00
	IgnoreSysex       Ignore = 0x01
	IgnoreTime        Ignore = 0x02
	IgnoreActiveSense Ignore = 0x04
	IgnoreAll                = IgnoreSysex | IgnoreTime | IgnoreActiveSense
)

// Contains reports whether every category in flag is set.
func (i Ignore) Contains(flag Ignore) bool {
	return i&flag == flag
}

// ShouldSuppress reports whether a message beginning with status must be
// dropped. Sysex start maps to IgnoreSysex, time code and timing clock
// both map to IgnoreTime, active sensing maps to IgnoreActiveSense.
func (i Ignore) ShouldSuppress(status byte) bool {
	switch status {
	case StatusSysexStart:
		return i.Contains(IgnoreSysex)
	case StatusTimeCode, StatusTimingClock:
		return i.Contains(IgnoreTime)
	case StatusActiveSense:
		return i.Contains(IgnoreActiveSense)
	default:
		return false
	}
}

// String lists the set categories, e.g. "sysex|time", or "none".
func (i Ignore) String() string {
	if i == IgnoreNone {
		return "none"
	}
	s := ""
	if i.Contains(IgnoreSysex) {
		s += "|sysex"
	}
	if i.Contains(IgnoreTime) {
		s += "|time"
	}
	if i.Contains(IgnoreActiveSense) {
		s += "|activesense"
	}
	return s[1:]
}
