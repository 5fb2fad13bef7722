// Package archive stages vault file sets for encryption.
//
// Files are packed into a tar stream with a manifest of per-file sizes and
// SHA-256 hashes; the manifest lives in the vault metadata so recovered
// files can be verified against what was originally sealed.
package archive
