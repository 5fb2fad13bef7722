package yubikey

// PinStatus reports the PIV PIN retry condition of a device.
type PinStatus int

const (
	// PinOK means the PIN has retries remaining.
	PinOK PinStatus = iota
	// PinBlocked means the retry counter is exhausted and the device
	// refuses all PIN-gated operations until a PUK reset.
	PinBlocked
)

func (p PinStatus) String() string {
	if p == PinBlocked {
		return "blocked"
	}
	return "ok"
}

// DeviceView is a point-in-time snapshot of one attached YubiKey slot.
// It carries no registry knowledge; classification against the registry
// happens in Classify.
type DeviceView struct {
	// Serial is the device serial number as printed by the vendor tools.
	Serial string
	// Slot is the retired PIV slot index the age plugin uses (1-20).
	Slot uint8
	// Recipient is the age recipient string held in the slot, or empty
	// when the slot has no identity.
	Recipient string
	// IdentityTag is the short tag the plugin prints alongside the
	// recipient, used to cross-check registry entries.
	IdentityTag string
	// PinRetries is the number of PIN attempts remaining.
	PinRetries int
	// PinStatus summarises the retry counter.
	PinStatus PinStatus
	// FirmwareVersion as reported by the device, informational only.
	FirmwareVersion string
}

// HasIdentity reports whether the slot holds an age identity.
func (v *DeviceView) HasIdentity() bool {
	return v.Recipient != ""
}
