package midi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/miditools/midiport/internal/driver/memdrv"
	"github.com/miditools/midiport/internal/logger"
	"github.com/miditools/midiport/sdk/contracts"
)

func newTestOutput(t *testing.T, drv *memdrv.Driver, opts ...contracts.Option) *Output {
	t.Helper()
	all := append([]contracts.Option{
		contracts.WithDriver(drv),
		contracts.WithLogger(logger.NewNop()),
	}, opts...)
	out, err := NewOutput(all...)
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	return out
}

func TestOutput_SendForwardsVerbatim(t *testing.T) {
	drv := memdrv.New()
	h := drv.AddOutput("mem:0", "Synth")
	out := newTestOutput(t, drv)
	out.PortCount()

	conn, err := out.Connect(0, "writer")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	messages := [][]byte{
		{0x90, 0x3C, 0x64},
		{0xF0, 0x7E, 0x00, 0x09, 0x01, 0xF7},
		{0xF8},
	}
	for _, m := range messages {
		if err := conn.Send(m); err != nil {
			t.Fatalf("send %v: %v", m, err)
		}
	}
	conn.Close()

	written := h.Written()
	if len(written) != len(messages) {
		t.Fatalf("wrote %d messages, want %d", len(written), len(messages))
	}
	for i, m := range messages {
		if !bytes.Equal(written[i], m) {
			t.Fatalf("message %d = %v, want %v", i, written[i], m)
		}
	}
}

func TestOutput_SendErrorsCarrySentinel(t *testing.T) {
	drv := memdrv.New()
	h := drv.AddOutput("mem:0", "Synth")
	out := newTestOutput(t, drv)
	out.PortCount()

	conn, err := out.Connect(0, "writer")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	h.FailWrites(errors.New("device unplugged"))
	err = conn.Send([]byte{0x90, 0x3C, 0x64})
	if !errors.Is(err, contracts.ErrSend) {
		t.Fatalf("send on failing port: %v, want ErrSend", err)
	}

	// The connection survives a failed send.
	h.FailWrites(nil)
	if err := conn.Send([]byte{0x80, 0x3C, 0x00}); err != nil {
		t.Fatalf("send after recovery: %v", err)
	}
}

func TestOutput_SendAfterCloseRejected(t *testing.T) {
	drv := memdrv.New()
	drv.AddOutput("mem:0", "Synth")
	out := newTestOutput(t, drv)
	out.PortCount()

	conn, err := out.Connect(0, "writer")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	back := conn.Close()
	if back != out {
		t.Fatal("Close returned a different session")
	}

	if err := conn.Send([]byte{0x90, 0x3C, 0x64}); !errors.Is(err, contracts.ErrSend) {
		t.Fatalf("send after close: %v, want ErrSend", err)
	}
}

func TestOutput_CloseIdempotent(t *testing.T) {
	drv := memdrv.New()
	drv.AddOutput("mem:0", "Synth")
	out := newTestOutput(t, drv)
	out.PortCount()

	conn, err := out.Connect(0, "writer")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if conn.Close() != out || conn.Close() != out {
		t.Fatal("Close must return the session every time")
	}

	// And the session reconnects.
	conn2, err := out.Connect(0, "again")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	conn2.Close()
}

func TestOutput_ConnectContract(t *testing.T) {
	drv := memdrv.New()
	h := drv.AddOutput("mem:0", "Synth")
	out := newTestOutput(t, drv)

	// No enumeration yet: every number is out of range.
	if _, err := out.Connect(0, "premature"); !errors.Is(err, contracts.ErrPortNumberOutOfRange) {
		t.Fatalf("connect before discovery: %v, want out of range", err)
	}

	out.PortCount()
	if _, err := out.Connect(7, "bad"); !errors.Is(err, contracts.ErrPortNumberOutOfRange) {
		t.Fatalf("connect(7): %v, want out of range", err)
	}

	h.FailOpen(errors.New("device busy"))
	if _, err := out.Connect(0, "busy"); !errors.Is(err, contracts.ErrConnect) {
		t.Fatalf("connect on failing port: %v, want ErrConnect", err)
	}
	h.FailOpen(nil)

	conn, err := out.Connect(0, "good")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := out.Connect(0, "second"); !errors.Is(err, contracts.ErrConnect) {
		t.Fatalf("second connect: %v, want ErrConnect", err)
	}
	conn.Close()
}

func TestOutput_EmptyMessagePassesThrough(t *testing.T) {
	drv := memdrv.New()
	h := drv.AddOutput("mem:0", "Synth")
	out := newTestOutput(t, drv)
	out.PortCount()

	conn, err := out.Connect(0, "writer")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	// No length policing in the session: the backend decides.
	if err := conn.Send(nil); err != nil {
		t.Fatalf("send empty: %v", err)
	}
	if written := h.Written(); len(written) != 1 || len(written[0]) != 0 {
		t.Fatalf("written = %v, want one empty message", written)
	}
}
