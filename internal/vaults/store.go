package vaults

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	verrors "github.com/vaultik/vaultik/internal/errors"
	"github.com/vaultik/vaultik/internal/utils"
)

const currentPointerFile = "current"

// Store persists vault manifests, one JSON document per vault, plus a pointer
// file naming the currently selected vault.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) manifestPath(vaultID string) string {
	return filepath.Join(s.dir, vaultID+".json")
}

// Create makes a new vault with an empty key list and persists it.
func (s *Store) Create(label string) (*Vault, error) {
	v := &Vault{
		VaultID:       "vault-" + uuid.New().String(),
		Label:         label,
		SanitizedName: utils.SanitizeLabel(label),
		CreatedAt:     time.Now().UTC(),
		KeyIDs:        []string{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Get loads the manifest for vaultID.
func (s *Store) Get(vaultID string) (*Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(vaultID)
}

func (s *Store) getLocked(vaultID string) (*Vault, error) {
	data, err := os.ReadFile(s.manifestPath(vaultID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", verrors.ErrVaultNotFound, vaultID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vault manifest: %w", err)
	}

	var v Vault
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vault manifest %s: %w", vaultID, err)
	}
	return &v, nil
}

// List returns all vault manifests sorted by creation time.
func (s *Store) List() ([]*Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vaults directory: %w", err)
	}

	var vaults []*Vault
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		v, err := s.getLocked(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, v)
	}

	sort.Slice(vaults, func(i, j int) bool {
		return vaults[i].CreatedAt.Before(vaults[j].CreatedAt)
	})
	return vaults, nil
}

// Save persists a modified manifest.
func (s *Store) Save(v *Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(v)
}

func (s *Store) saveLocked(v *Vault) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vault manifest: %w", err)
	}
	if err := utils.AtomicWrite(s.manifestPath(v.VaultID), data, 0600); err != nil {
		return fmt.Errorf("failed to write vault manifest: %w", err)
	}
	return nil
}

// Delete removes a vault manifest. Keys referenced by the vault stay in the
// registry; only the binding disappears.
func (s *Store) Delete(vaultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.manifestPath(vaultID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", verrors.ErrVaultNotFound, vaultID)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete vault manifest: %w", err)
	}

	if current, _ := s.currentLocked(); current == vaultID {
		os.Remove(filepath.Join(s.dir, currentPointerFile))
	}
	return nil
}

// AddKey appends keyID to the vault's ordered key list.
func (s *Store) AddKey(vaultID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.getLocked(vaultID)
	if err != nil {
		return err
	}
	if v.HasKey(keyID) {
		return fmt.Errorf("%w: %s", verrors.ErrKeyAlreadyAttached, keyID)
	}
	v.KeyIDs = append(v.KeyIDs, keyID)
	return s.saveLocked(v)
}

// RemoveKey detaches keyID from the vault's key list.
func (s *Store) RemoveKey(vaultID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.getLocked(vaultID)
	if err != nil {
		return err
	}
	if !v.HasKey(keyID) {
		return fmt.Errorf("%w: %s", verrors.ErrKeyNotFound, keyID)
	}

	kept := v.KeyIDs[:0]
	for _, id := range v.KeyIDs {
		if id != keyID {
			kept = append(kept, id)
		}
	}
	v.KeyIDs = kept
	return s.saveLocked(v)
}

// VaultsReferencing returns the ids of vaults whose key list contains keyID.
// Implements the registry's ReferenceChecker.
func (s *Store) VaultsReferencing(keyID string) ([]string, error) {
	vaults, err := s.List()
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, v := range vaults {
		if v.HasKey(keyID) {
			ids = append(ids, v.VaultID)
		}
	}
	return ids, nil
}

// SetCurrent records vaultID as the selected vault.
func (s *Store) SetCurrent(vaultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getLocked(vaultID); err != nil {
		return err
	}
	return utils.AtomicWrite(filepath.Join(s.dir, currentPointerFile), []byte(vaultID+"\n"), 0600)
}

// Current returns the selected vault id.
func (s *Store) Current() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Store) currentLocked() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentPointerFile))
	if os.IsNotExist(err) {
		return "", verrors.ErrNoCurrentVault
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current vault pointer: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
