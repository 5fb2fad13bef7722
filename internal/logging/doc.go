// Package logging provides Vaultik's two logging surfaces.
//
// Logger is the user-facing CLI logger: colored, printf-style, gated by the
// --verbose and --debug flags.
//
// The package-level structured sink (Init, Op) writes JSON lines to
// vaultik.log in the user's log directory. Components emit operation name,
// duration, and outcome there. Two redaction rules apply before any value
// reaches a field: secrets (PINs, passphrases) are stripped with
// RedactSecret, and device serials are reduced to a fixed-length
// fingerprint with Fingerprint.
package logging
