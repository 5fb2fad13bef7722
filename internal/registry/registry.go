package registry

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	verrors "github.com/vaultik/vaultik/internal/errors"
	"github.com/vaultik/vaultik/internal/utils"
)

// formatVersion is the registry document version this build reads and writes.
// Loading a document with a higher version fails with
// ErrUnsupportedRegistryVersion instead of silently reinterpreting it.
const formatVersion = 1

// DuplicateSlotError reports an add of a hardware entry whose physical slot is
// already registered under a different key id.
type DuplicateSlotError struct {
	Serial        string
	Slot          uint8
	ExistingKeyID string
}

func (e *DuplicateSlotError) Error() string {
	return fmt.Sprintf("device slot %d on serial %s is already registered as key %s",
		e.Slot, e.Serial, e.ExistingKeyID)
}

// InUseError reports a remove of a key still referenced by vault manifests.
type InUseError struct {
	KeyID    string
	VaultIDs []string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("key %s is still attached to vaults: %s",
		e.KeyID, strings.Join(e.VaultIDs, ", "))
}

// ReferenceChecker answers which vaults currently reference a key id. The
// vault metadata store implements it; the indirection keeps the registry free
// of a dependency on vault persistence.
type ReferenceChecker interface {
	VaultsReferencing(keyID string) ([]string, error)
}

// document is the on-disk shape of the registry.
type document struct {
	Version int                 `json:"version"`
	Keys    map[string]KeyEntry `json:"keys"`
}

// Registry is the durable set of key entries. One value is constructed at
// startup and shared by handle; all mutation funnels through its write lock
// and atomic-write path. Reads come from an in-memory cache that is validated
// against the on-disk file and transparently reloaded when another process (a
// backup restore, a second instance) has replaced it.
type Registry struct {
	path string

	mu         sync.Mutex
	doc        *document
	fileSize   int64
	fileMtime  time.Time
	fileHash   [sha256.Size]byte
	generation uint64
}

// Open returns a registry handle for the document at path. The file is loaded
// lazily on first access; a missing file is an empty registry.
func Open(path string) *Registry {
	return &Registry{path: path}
}

// Generation increments on every mutation and every external-change reload.
// Tests and cache-sensitive callers use it to observe invalidation.
func (r *Registry) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Add inserts a new entry and persists the registry.
func (r *Registry) Add(entry KeyEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureFreshLocked(); err != nil {
		return err
	}

	if _, exists := r.doc.Keys[entry.KeyID]; exists {
		return fmt.Errorf("%w: %s", verrors.ErrDuplicateKeyID, entry.KeyID)
	}

	if entry.Kind == KindYubiKey {
		for id, existing := range r.doc.Keys {
			if existing.MatchesSlot(entry.Serial, entry.Slot) {
				return &DuplicateSlotError{
					Serial:        entry.Serial,
					Slot:          entry.Slot,
					ExistingKeyID: id,
				}
			}
		}
	}

	r.doc.Keys[entry.KeyID] = entry
	return r.persistLocked()
}

// Get returns the entry for keyID, if present.
func (r *Registry) Get(keyID string) (*KeyEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureFreshLocked(); err != nil {
		return nil, false
	}

	entry, ok := r.doc.Keys[keyID]
	if !ok {
		return nil, false
	}
	return &entry, true
}

// List returns all entries sorted by creation time, oldest first.
func (r *Registry) List() ([]KeyEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureFreshLocked(); err != nil {
		return nil, err
	}

	entries := make([]KeyEntry, 0, len(r.doc.Keys))
	for _, entry := range r.doc.Keys {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].KeyID < entries[j].KeyID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// FindBySlot returns the hardware entry backed by the given physical slot.
func (r *Registry) FindBySlot(serial string, slot uint8) (*KeyEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureFreshLocked(); err != nil {
		return nil, false
	}

	for _, entry := range r.doc.Keys {
		if entry.MatchesSlot(serial, slot) {
			e := entry
			return &e, true
		}
	}
	return nil, false
}

// TouchLastUsed records a successful private-key use for keyID.
func (r *Registry) TouchLastUsed(keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureFreshLocked(); err != nil {
		return err
	}

	entry, ok := r.doc.Keys[keyID]
	if !ok {
		return fmt.Errorf("%w: %s", verrors.ErrKeyNotFound, keyID)
	}

	now := time.Now().UTC()
	entry.LastUsed = &now
	r.doc.Keys[keyID] = entry
	return r.persistLocked()
}

// Remove deletes the entry for keyID. Deletion must be preceded by explicit
// detachment from every vault: if refs still reports referencing vaults the
// call fails with InUseError, preventing dangling key ids in manifests.
func (r *Registry) Remove(keyID string, refs ReferenceChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureFreshLocked(); err != nil {
		return err
	}

	if _, ok := r.doc.Keys[keyID]; !ok {
		return fmt.Errorf("%w: %s", verrors.ErrKeyNotFound, keyID)
	}

	if refs != nil {
		vaultIDs, err := refs.VaultsReferencing(keyID)
		if err != nil {
			return fmt.Errorf("failed to check vault references: %w", err)
		}
		if len(vaultIDs) > 0 {
			return &InUseError{KeyID: keyID, VaultIDs: vaultIDs}
		}
	}

	delete(r.doc.Keys, keyID)
	return r.persistLocked()
}

// ensureFreshLocked loads the document on first use and reloads it whenever
// the on-disk file no longer matches what the cache was built from.
func (r *Registry) ensureFreshLocked() error {
	info, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		if r.doc == nil {
			r.doc = &document{Version: formatVersion, Keys: map[string]KeyEntry{}}
			r.generation++
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat registry: %w", err)
	}

	if r.doc != nil && info.Size() == r.fileSize && info.ModTime().Equal(r.fileMtime) {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read registry: %w", err)
	}

	hash := sha256.Sum256(data)
	if r.doc != nil && hash == r.fileHash {
		// Same content, only metadata changed (e.g. restored from backup with
		// identical bytes). Refresh the stat cache, keep the document.
		r.fileSize = info.Size()
		r.fileMtime = info.ModTime()
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse registry: %w", err)
	}
	if doc.Version > formatVersion {
		return fmt.Errorf("%w: version %d, supported %d",
			verrors.ErrUnsupportedRegistryVersion, doc.Version, formatVersion)
	}
	if doc.Keys == nil {
		doc.Keys = map[string]KeyEntry{}
	}

	r.doc = &doc
	r.fileSize = info.Size()
	r.fileMtime = info.ModTime()
	r.fileHash = hash
	r.generation++
	return nil
}

// persistLocked writes the document atomically and refreshes the cache
// metadata so the write does not immediately invalidate our own cache.
func (r *Registry) persistLocked() error {
	r.doc.Version = formatVersion

	data, err := json.MarshalIndent(r.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	if err := utils.AtomicWrite(r.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}

	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("failed to stat registry after write: %w", err)
	}

	r.fileSize = info.Size()
	r.fileMtime = info.ModTime()
	r.fileHash = sha256.Sum256(data)
	r.generation++
	return nil
}
