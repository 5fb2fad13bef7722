// Package yubikey models hardware key devices and their lifecycle.
//
// A device slot is classified on every query into exactly one state (new,
// orphaned, registered, reused elsewhere, locked, unreachable) by comparing
// a live DeviceView snapshot against the key registry and a target vault.
// States gate which operations are legal, so a locked or unplugged device
// is rejected before any command touches the hardware. Classification is
// never cached; devices can be swapped between calls.
package yubikey
