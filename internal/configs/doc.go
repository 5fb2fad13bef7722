// Package configs manages user configuration and state-path resolution.
//
// Configuration lives in TOML at <config-dir>/vaultik/config.toml: the user's
// UUID, the interactive-automation timeout, and optional overrides for the
// external binaries (age, age-plugin-yubikey, ykman).
//
// Durable state lives under <data-dir>/vaultik:
//
//   - keys/               encrypted passphrase key blobs
//   - keys/registry.json  the key registry document
//   - vaults/             one manifest per vault, plus the current pointer
//   - logs/               structured log and audit trail
//
// UserVaultikSettings is initialized at startup from the XDG directories;
// SettingsAt lets tests root everything in a temp directory instead.
package configs
