package memdrv

import (
	"bytes"
	"errors"
	"testing"
)

func TestDriver_Discovery(t *testing.T) {
	d := New()
	d.AddInput("mem:in0", "Pad")
	d.AddInput("mem:in1", "Keys")
	d.AddOutput("mem:out0", "Synth")

	ins, err := d.Inputs()
	if err != nil || len(ins) != 2 {
		t.Fatalf("Inputs = %v, %v, want 2 ports", ins, err)
	}
	if ins[0].ID != "mem:in0" || ins[1].Name != "Keys" {
		t.Fatalf("unexpected inputs: %v", ins)
	}
	outs, err := d.Outputs()
	if err != nil || len(outs) != 1 {
		t.Fatalf("Outputs = %v, %v, want 1 port", outs, err)
	}

	d.RemoveInput("mem:in0")
	ins, _ = d.Inputs()
	if len(ins) != 1 || ins[0].ID != "mem:in1" {
		t.Fatalf("inputs after remove: %v", ins)
	}
}

func TestDriver_OpenUnknownPort(t *testing.T) {
	d := New()
	if _, err := d.OpenInput("mem:ghost"); err == nil {
		t.Fatal("open unknown input succeeded")
	}
	if _, err := d.OpenOutput("mem:ghost"); err == nil {
		t.Fatal("open unknown output succeeded")
	}
}

func TestInputHandle_EmitLifecycle(t *testing.T) {
	d := New()
	h := d.AddInput("mem:in0", "Pad")

	if h.Emit(0, []byte{0xF8}) {
		t.Fatal("emit delivered before open")
	}

	port, err := d.OpenInput("mem:in0")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if h.Emit(0, []byte{0xF8}) {
		t.Fatal("emit delivered before a receiver was set")
	}

	var got []byte
	var gotTS int64
	if err := port.SetReceiver(func(timestampUS int64, message []byte) {
		gotTS = timestampUS
		got = message
	}); err != nil {
		t.Fatalf("set receiver: %v", err)
	}

	src := []byte{0x90, 0x3C, 0x64}
	if !h.Emit(42, src) {
		t.Fatal("emit found no receiver")
	}
	if gotTS != 42 || !bytes.Equal(got, src) {
		t.Fatalf("received %d %v, want 42 %v", gotTS, got, src)
	}

	// The receiver sees a copy, not the caller's buffer.
	src[0] = 0x80
	if got[0] != 0x90 {
		t.Fatal("delivery aliases the emitted buffer")
	}

	if err := port.ClearReceiver(); err != nil {
		t.Fatalf("clear receiver: %v", err)
	}
	if h.Emit(43, []byte{0xF8}) {
		t.Fatal("emit delivered after receiver cleared")
	}
}

func TestInputHandle_RemovedPortKeepsWorking(t *testing.T) {
	d := New()
	h := d.AddInput("mem:in0", "Pad")
	port, err := d.OpenInput("mem:in0")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	delivered := 0
	if err := port.SetReceiver(func(int64, []byte) { delivered++ }); err != nil {
		t.Fatalf("set receiver: %v", err)
	}

	d.RemoveInput("mem:in0")
	if ins, _ := d.Inputs(); len(ins) != 0 {
		t.Fatalf("removed port still discoverable: %v", ins)
	}
	if !h.Emit(0, []byte{0xF8}) {
		t.Fatal("open handle stopped delivering after removal")
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
}

func TestInputHandle_FailOpen(t *testing.T) {
	d := New()
	h := d.AddInput("mem:in0", "Pad")
	boom := errors.New("device busy")
	h.FailOpen(boom)
	if _, err := d.OpenInput("mem:in0"); !errors.Is(err, boom) {
		t.Fatalf("open: %v, want %v", err, boom)
	}
	h.FailOpen(nil)
	if _, err := d.OpenInput("mem:in0"); err != nil {
		t.Fatalf("open after reset: %v", err)
	}
}

func TestOutputHandle_WriteCapture(t *testing.T) {
	d := New()
	h := d.AddOutput("mem:out0", "Synth")
	port, err := d.OpenOutput("mem:out0")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	src := []byte{0x90, 0x3C, 0x64}
	if err := port.Write(src); err != nil {
		t.Fatalf("write: %v", err)
	}
	src[0] = 0x80
	written := h.Written()
	if len(written) != 1 || written[0][0] != 0x90 {
		t.Fatalf("written = %v, want the original bytes", written)
	}

	boom := errors.New("buffer full")
	h.FailWrites(boom)
	if err := port.Write([]byte{0xF8}); !errors.Is(err, boom) {
		t.Fatalf("write while failing: %v, want %v", err, boom)
	}
	h.FailWrites(nil)

	if err := port.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := port.Write([]byte{0xF8}); err == nil {
		t.Fatal("write after close succeeded")
	}
}

func TestDriver_CloseClosesEverything(t *testing.T) {
	d := New()
	hin := d.AddInput("mem:in0", "Pad")
	hout := d.AddOutput("mem:out0", "Synth")
	in, err := d.OpenInput("mem:in0")
	if err != nil {
		t.Fatalf("open input: %v", err)
	}
	if err := in.SetReceiver(func(int64, []byte) {}); err != nil {
		t.Fatalf("set receiver: %v", err)
	}
	if _, err := d.OpenOutput("mem:out0"); err != nil {
		t.Fatalf("open output: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("driver close: %v", err)
	}
	if hin.Emit(0, []byte{0xF8}) {
		t.Fatal("emit delivered after driver close")
	}
	if err := hout.Write([]byte{0xF8}); err == nil {
		t.Fatal("write succeeded after driver close")
	}
}
