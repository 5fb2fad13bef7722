// Package utils provides small shared helpers: atomic file writes, terminal
// passphrase input, and string sanitization.
package utils
