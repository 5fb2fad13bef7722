// Package registry stores the durable set of keys that unlock vaults.
//
// The registry is one versioned JSON document per installation, owned
// exclusively by this package. Entries come in two kinds:
//
//   - Passphrase: an x25519 identity whose private half is stored as an
//     age-encrypted blob in the keys directory, unwrapped with the user's
//     passphrase at decrypt time.
//   - YubiKey: a hardware-resident identity identified by (serial, slot),
//     with the plugin recipient string and identity tag recorded here. The
//     private key never leaves the device.
//
// Invariants: key ids are globally unique; a hardware (serial, slot) pair maps
// to at most one entry. Entries outlive temporarily disconnected devices and
// may be referenced by any number of vaults; Remove refuses while references
// remain.
//
// Writes go through a temp-file/fsync/rename sequence so a crash never leaves
// a partial file. Reads are served from a cache validated against the on-disk
// file's size, mtime and content hash, so external modification (a backup
// restore, a second running instance) is picked up transparently.
package registry
