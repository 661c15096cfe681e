package midi

import (
	"fmt"

	"github.com/miditools/midiport/sdk/contracts"
)

// portTable maps caller-facing port numbers to backend port identities.
// Most platform APIs enumerate ports by position on every scan, so the
// table reconciles repeated scans instead of re-indexing: an identity
// keeps the slot it was first seen in, new identities append in
// discovery order. Indices therefore stay valid across refreshes for
// as long as the session lives.
type portTable struct {
	slots map[string]int
	ports []contracts.PortInfo
}

// merge folds one discovery scan into the table.
func (t *portTable) merge(candidates []contracts.PortInfo) {
	if t.slots == nil {
		t.slots = make(map[string]int)
	}
	for _, c := range candidates {
		if slot, seen := t.slots[c.ID]; seen {
			if c.Name != "" {
				t.ports[slot].Name = c.Name
			}
			continue
		}
		t.slots[c.ID] = len(t.ports)
		t.ports = append(t.ports, c)
	}
}

func (t *portTable) count() int {
	return len(t.ports)
}

// name returns the display name of the port at the given number, falling
// back to the backend identity when the platform reported no name.
func (t *portTable) name(port int) (string, error) {
	if port < 0 || port >= len(t.ports) {
		return "", fmt.Errorf("%w: %d with %d ports known", contracts.ErrPortNumberOutOfRange, port, len(t.ports))
	}
	if p := t.ports[port]; p.Name != "" {
		return p.Name, nil
	}
	return t.ports[port].ID, nil
}

// identity returns the backend identity of the port at the given number.
func (t *portTable) identity(port int) (string, bool) {
	if port < 0 || port >= len(t.ports) {
		return "", false
	}
	return t.ports[port].ID, true
}

// snapshot copies the table in index order, with display names already
// backfilled from identities.
func (t *portTable) snapshot() []contracts.PortInfo {
	out := make([]contracts.PortInfo, len(t.ports))
	for i, p := range t.ports {
		if p.Name == "" {
			p.Name = p.ID
		}
		out[i] = p
	}
	return out
}
