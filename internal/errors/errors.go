package errors

import "errors"

// User-input errors are recoverable by retrying with different input.
var (
	// ErrWrongPassphrase indicates the supplied passphrase could not unlock the key.
	ErrWrongPassphrase = errors.New("wrong passphrase")

	// ErrNoMatchingIdentity indicates no available identity could decrypt the payload.
	ErrNoMatchingIdentity = errors.New("no matching identity could decrypt the vault")

	// ErrAlreadyBoundElsewhere indicates the key is registered to a different vault.
	ErrAlreadyBoundElsewhere = errors.New("key is already bound to another vault")
)

// Device and environment errors carry remediation hints but are never
// auto-retried: retrying a PIN attempt against a locked device is destructive.
var (
	// ErrDeviceUnreachable indicates the hardware key could not be queried.
	ErrDeviceUnreachable = errors.New("device unreachable: reconnect the key and try again")

	// ErrDeviceLocked indicates the device PIN retry counter is exhausted.
	ErrDeviceLocked = errors.New("device is locked: PIN retries exhausted")

	// ErrTimedOut indicates an interactive operation exceeded its deadline.
	ErrTimedOut = errors.New("operation timed out")

	// ErrCancelled indicates the caller cancelled an operation in progress.
	ErrCancelled = errors.New("operation cancelled")
)

// Integrity errors signal a programming or data-corruption condition and are
// always fatal to the attempted operation.
var (
	// ErrDuplicateKeyID indicates a registry entry with this id already exists.
	ErrDuplicateKeyID = errors.New("key id already registered")

	// ErrUnsupportedRegistryVersion indicates the on-disk registry was written
	// by a newer, forward-incompatible format.
	ErrUnsupportedRegistryVersion = errors.New("registry format version is not supported")

	// ErrKeyNotFound indicates the key id does not exist in the registry.
	ErrKeyNotFound = errors.New("key not found in registry")

	// ErrVaultNotFound indicates the vault id does not resolve to a manifest.
	ErrVaultNotFound = errors.New("vault not found")
)

// Vault and recipient errors.
var (
	// ErrNoRecipients indicates the vault has no keys to encrypt to.
	ErrNoRecipients = errors.New("vault has no registered keys")

	// ErrNoCurrentVault indicates no vault is currently selected.
	ErrNoCurrentVault = errors.New("no vault selected")

	// ErrKeyAlreadyAttached indicates the key id is already in the vault's list.
	ErrKeyAlreadyAttached = errors.New("key is already attached to this vault")
)

// External-process errors.
var (
	// ErrUnrecognizedPrompt indicates the external tool presented a prompt not
	// in the signature table, usually a version mismatch.
	ErrUnrecognizedPrompt = errors.New("unrecognized prompt from external tool")
)
