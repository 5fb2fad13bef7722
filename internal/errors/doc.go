// Package errors defines sentinel error values shared across Vaultik.
//
// Errors fall into four groups mirroring how callers should react:
//
//   - User-input errors (wrong passphrase, no matching identity): report
//     verbatim, safe to retry with different input.
//   - Device/environment errors (unreachable, locked, timed out, cancelled):
//     report with a remediation hint; retry policy belongs to the caller.
//   - Integrity errors (duplicates, unsupported versions): fatal to the
//     operation, never bypassed.
//   - External-process errors (unrecognized prompts): surfaced with redacted
//     process output for diagnosis.
//
// Errors carrying structured payloads (duplicate slot details, referencing
// vault ids, per-identity failure reasons) are defined as types in their
// owning packages and unwrap to the sentinels here, so callers can always
// test with errors.Is.
package errors
