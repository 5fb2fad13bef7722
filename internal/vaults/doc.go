// Package vaults persists vault manifests: which keys unlock which vault,
// plus the payload file list recorded at encryption time.
//
// Each vault is one JSON document under the vaults directory; a separate
// pointer file names the currently selected vault. Manifests reference
// registry keys by opaque id only. Key↔vault binding is many-to-many: a
// hardware key reused across vaults appears in several key lists, and the
// registry refuses to delete an entry while any manifest still references it.
package vaults
