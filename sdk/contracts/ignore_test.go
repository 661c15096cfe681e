package contracts

import "testing"

func TestIgnore_ShouldSuppress(t *testing.T) {
	cases := []struct {
		flags  Ignore
		status byte
		want   bool
	}{
		{IgnoreNone, StatusSysexStart, false},
		{IgnoreNone, StatusTimingClock, false},
		{IgnoreSysex, StatusSysexStart, true},
		{IgnoreSysex, StatusTimeCode, false},
		{IgnoreTime, StatusTimeCode, true},
		{IgnoreTime, StatusTimingClock, true},
		{IgnoreTime, StatusActiveSense, false},
		{IgnoreActiveSense, StatusActiveSense, true},
		{IgnoreActiveSense, StatusSysexStart, false},
		{IgnoreAll, StatusSysexStart, true},
		{IgnoreAll, StatusTimeCode, true},
		{IgnoreAll, StatusTimingClock, true},
		{IgnoreAll, StatusActiveSense, true},
		// Channel voice messages always pass.
		{IgnoreAll, 0x90, false},
		{IgnoreAll, 0x80, false},
		{IgnoreAll, 0xB0, false},
		// Other system messages always pass too.
		{IgnoreAll, 0xF2, false},
		{IgnoreAll, 0xFA, false},
		{IgnoreAll, 0xFF, false},
	}
	for _, c := range cases {
		if got := c.flags.ShouldSuppress(c.status); got != c.want {
			t.Errorf("flags %v status %#02x: suppress = %v, want %v", c.flags, c.status, got, c.want)
		}
	}
}

func TestIgnore_Contains(t *testing.T) {
	flags := IgnoreSysex | IgnoreTime
	if !flags.Contains(IgnoreSysex) {
		t.Error("want sysex contained")
	}
	if !flags.Contains(IgnoreTime) {
		t.Error("want time contained")
	}
	if flags.Contains(IgnoreActiveSense) {
		t.Error("activesense must not be contained")
	}
	if flags.Contains(IgnoreAll) {
		t.Error("all must not be contained in a partial set")
	}
	if !IgnoreAll.Contains(flags) {
		t.Error("all must contain every partial set")
	}
}

func TestIgnore_String(t *testing.T) {
	cases := []struct {
		flags Ignore
		want  string
	}{
		{IgnoreNone, "none"},
		{IgnoreSysex, "sysex"},
		{IgnoreTime, "time"},
		{IgnoreActiveSense, "activesense"},
		{IgnoreSysex | IgnoreTime, "sysex|time"},
		{IgnoreAll, "sysex|time|activesense"},
	}
	for _, c := range cases {
		if got := c.flags.String(); got != c.want {
			t.Errorf("String(%#02x) = %q, want %q", uint8(c.flags), got, c.want)
		}
	}
}
