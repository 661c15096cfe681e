package midi

import (
	"errors"
	"testing"

	"github.com/miditools/midiport/sdk/contracts"
)

func TestPortTable_IndexStability(t *testing.T) {
	var table portTable
	table.merge([]contracts.PortInfo{
		{ID: "hw:0", Name: "Synth"},
		{ID: "hw:1", Name: "Drums"},
	})

	// A rescan that reorders and grows must keep existing slots.
	table.merge([]contracts.PortInfo{
		{ID: "hw:1", Name: "Drums"},
		{ID: "hw:2", Name: "Keys"},
		{ID: "hw:0", Name: "Synth"},
	})

	if got := table.count(); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	wantIDs := []string{"hw:0", "hw:1", "hw:2"}
	for i, want := range wantIDs {
		id, ok := table.identity(i)
		if !ok || id != want {
			t.Fatalf("identity(%d) = %q, %v, want %q", i, id, ok, want)
		}
	}
}

func TestPortTable_CountNeverDecreases(t *testing.T) {
	var table portTable
	table.merge([]contracts.PortInfo{
		{ID: "hw:0", Name: "Synth"},
		{ID: "hw:1", Name: "Drums"},
	})
	// The device behind hw:0 goes away; its slot must survive.
	table.merge([]contracts.PortInfo{
		{ID: "hw:1", Name: "Drums"},
	})
	if got := table.count(); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
	if name, err := table.name(0); err != nil || name != "Synth" {
		t.Fatalf("name(0) = %q, %v, want Synth", name, err)
	}
}

func TestPortTable_NameFallbackAndRefresh(t *testing.T) {
	var table portTable
	table.merge([]contracts.PortInfo{{ID: "hw:0"}})

	// No display name reported yet: the identity stands in.
	if name, err := table.name(0); err != nil || name != "hw:0" {
		t.Fatalf("name(0) = %q, %v, want hw:0", name, err)
	}

	table.merge([]contracts.PortInfo{{ID: "hw:0", Name: "Synth"}})
	if name, err := table.name(0); err != nil || name != "Synth" {
		t.Fatalf("name(0) after refresh = %q, %v, want Synth", name, err)
	}
}

func TestPortTable_OutOfRange(t *testing.T) {
	var table portTable
	if _, err := table.name(0); !errors.Is(err, contracts.ErrPortNumberOutOfRange) {
		t.Fatalf("name(0) on empty table: %v, want ErrPortNumberOutOfRange", err)
	}

	table.merge([]contracts.PortInfo{{ID: "hw:0", Name: "Synth"}})
	for _, port := range []int{-1, 1, 99} {
		if _, err := table.name(port); !errors.Is(err, contracts.ErrPortNumberOutOfRange) {
			t.Fatalf("name(%d): %v, want ErrPortNumberOutOfRange", port, err)
		}
		if _, ok := table.identity(port); ok {
			t.Fatalf("identity(%d) resolved, want miss", port)
		}
	}
}

func TestPortTable_SnapshotBackfillsNames(t *testing.T) {
	var table portTable
	table.merge([]contracts.PortInfo{
		{ID: "hw:0", Name: "Synth"},
		{ID: "hw:1"},
	})
	snap := table.snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snap))
	}
	if snap[0].Name != "Synth" || snap[1].Name != "hw:1" {
		t.Fatalf("snapshot names = %q, %q", snap[0].Name, snap[1].Name)
	}

	// The snapshot is a copy, not a view.
	snap[0].Name = "changed"
	if name, _ := table.name(0); name != "Synth" {
		t.Fatalf("table name mutated through snapshot: %q", name)
	}
}
