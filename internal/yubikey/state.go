package yubikey

import (
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/vaults"
)

// State is the lifecycle classification of a device slot relative to the
// registry and one target vault. It is recomputed on every query and never
// cached, because devices can be unplugged or swapped between calls.
type State int

const (
	// StateUnreachable means no device view could be obtained.
	StateUnreachable State = iota
	// StateLocked means the PIN retry counter is exhausted.
	StateLocked
	// StateNew means the slot is empty.
	StateNew
	// StateOrphaned means the slot holds an identity that no registry
	// entry describes.
	StateOrphaned
	// StateRegistered means the slot's registry entry is attached to the
	// target vault.
	StateRegistered
	// StateReusedElsewhere means a registry entry exists for the slot but
	// the target vault does not reference it.
	StateReusedElsewhere
)

func (s State) String() string {
	switch s {
	case StateUnreachable:
		return "unreachable"
	case StateLocked:
		return "locked"
	case StateNew:
		return "new"
	case StateOrphaned:
		return "orphaned"
	case StateRegistered:
		return "registered"
	case StateReusedElsewhere:
		return "reused-elsewhere"
	default:
		return "unknown"
	}
}

// Op is an operation gated by device state.
type Op int

const (
	// OpGenerate creates a fresh identity in the slot and registers it.
	OpGenerate Op = iota
	// OpRegister records an existing slot identity in the registry.
	OpRegister
	// OpDecrypt unwraps vault content with the slot's identity.
	OpDecrypt
	// OpAttach adds the slot's existing key id to another vault.
	OpAttach
	// OpStatus is read-only reporting, legal in every state.
	OpStatus
)

func (o Op) String() string {
	switch o {
	case OpGenerate:
		return "generate"
	case OpRegister:
		return "register"
	case OpDecrypt:
		return "decrypt"
	case OpAttach:
		return "attach"
	case OpStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Allows reports whether the operation is legal in this state. Mutating
// operations against locked or unreachable devices are rejected before
// anything touches the hardware.
func (s State) Allows(op Op) bool {
	if op == OpStatus {
		return true
	}
	switch s {
	case StateNew:
		return op == OpGenerate
	case StateOrphaned:
		return op == OpRegister
	case StateRegistered:
		return op == OpDecrypt
	case StateReusedElsewhere:
		return op == OpAttach
	default:
		return false
	}
}

// SlotIndex looks up a registry entry by device serial and slot.
// *registry.Registry satisfies it; tests substitute a fixture.
type SlotIndex interface {
	FindBySlot(serial string, slot uint8) (*registry.KeyEntry, bool)
}

// Classify maps a device snapshot to exactly one State. A nil view means
// the device query failed. A blocked PIN wins over every other
// classification, since a locked device can perform no identity operation
// regardless of what the registry says. The function is pure: it reads the
// index but mutates nothing.
func Classify(view *DeviceView, index SlotIndex, target *vaults.Vault) State {
	if view == nil {
		return StateUnreachable
	}
	if view.PinStatus == PinBlocked {
		return StateLocked
	}
	if !view.HasIdentity() {
		return StateNew
	}
	entry, ok := index.FindBySlot(view.Serial, view.Slot)
	if !ok {
		return StateOrphaned
	}
	if target != nil && target.HasKey(entry.KeyID) {
		return StateRegistered
	}
	return StateReusedElsewhere
}
