// Package crypto is the multi-recipient encryption engine.
//
// A vault payload is sealed once under a random content key; each of the
// vault's keys independently wraps that content key, so any single
// identity opens the whole payload. Passphrase keys are x25519 identities
// stored on disk wrapped under an scrypt passphrase stanza; hardware keys
// contribute their plugin recipient string at encrypt time and are only
// exercised during decryption, through a pseudo-terminal session with the
// age binary.
package crypto
