package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	verrors "github.com/vaultik/vaultik/internal/errors"
)

func testRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	return Open(path), path
}

func passphraseEntry(keyID string) KeyEntry {
	return KeyEntry{
		KeyID:       keyID,
		Kind:        KindPassphrase,
		Label:       "test key",
		Recipient:   "age1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
		CreatedAt:   time.Now().UTC(),
		KeyFilename: keyID + ".age",
	}
}

func yubikeyEntry(keyID, serial string, slot uint8) KeyEntry {
	return KeyEntry{
		KeyID:       keyID,
		Kind:        KindYubiKey,
		Label:       "test device",
		Recipient:   "age1yubikey1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
		CreatedAt:   time.Now().UTC(),
		KeyFilename: keyID + ".identity",
		Serial:      serial,
		Slot:        slot,
		IdentityTag: "test-tag",
	}
}

func TestAddAndGet(t *testing.T) {
	reg, _ := testRegistry(t)

	require.NoError(t, reg.Add(passphraseEntry("key-a")))

	got, ok := reg.Get("key-a")
	require.True(t, ok)
	require.Equal(t, "key-a", got.KeyID)
	require.Equal(t, KindPassphrase, got.Kind)

	_, ok = reg.Get("key-missing")
	require.False(t, ok)
}

func TestAddDuplicateKeyID(t *testing.T) {
	reg, _ := testRegistry(t)

	require.NoError(t, reg.Add(passphraseEntry("key-a")))

	err := reg.Add(passphraseEntry("key-a"))
	require.ErrorIs(t, err, verrors.ErrDuplicateKeyID)
}

func TestAddDuplicateSlot(t *testing.T) {
	reg, _ := testRegistry(t)

	require.NoError(t, reg.Add(yubikeyEntry("key-a", "11122233", 1)))

	err := reg.Add(yubikeyEntry("key-b", "11122233", 1))
	var dup *DuplicateSlotError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "key-a", dup.ExistingKeyID)
	require.Equal(t, uint8(1), dup.Slot)

	// A different slot on the same device is a distinct key.
	require.NoError(t, reg.Add(yubikeyEntry("key-c", "11122233", 2)))
}

func TestListSortedByCreation(t *testing.T) {
	reg, _ := testRegistry(t)

	older := passphraseEntry("key-old")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := passphraseEntry("key-new")

	require.NoError(t, reg.Add(newer))
	require.NoError(t, reg.Add(older))

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "key-old", entries[0].KeyID)
	require.Equal(t, "key-new", entries[1].KeyID)
}

func TestFindBySlot(t *testing.T) {
	reg, _ := testRegistry(t)

	require.NoError(t, reg.Add(yubikeyEntry("key-a", "11122233", 1)))
	require.NoError(t, reg.Add(passphraseEntry("key-b")))

	entry, ok := reg.FindBySlot("11122233", 1)
	require.True(t, ok)
	require.Equal(t, "key-a", entry.KeyID)

	_, ok = reg.FindBySlot("11122233", 2)
	require.False(t, ok)
	_, ok = reg.FindBySlot("99900011", 1)
	require.False(t, ok)
}

func TestTouchLastUsed(t *testing.T) {
	reg, _ := testRegistry(t)

	require.NoError(t, reg.Add(passphraseEntry("key-a")))

	before, _ := reg.Get("key-a")
	require.Nil(t, before.LastUsed)

	require.NoError(t, reg.TouchLastUsed("key-a"))

	after, ok := reg.Get("key-a")
	require.True(t, ok)
	require.NotNil(t, after.LastUsed)

	err := reg.TouchLastUsed("key-missing")
	require.ErrorIs(t, err, verrors.ErrKeyNotFound)
}

type fakeRefs struct {
	refs map[string][]string
}

func (f *fakeRefs) VaultsReferencing(keyID string) ([]string, error) {
	return f.refs[keyID], nil
}

func TestRemove(t *testing.T) {
	reg, _ := testRegistry(t)

	require.NoError(t, reg.Add(passphraseEntry("key-a")))
	require.NoError(t, reg.Add(passphraseEntry("key-b")))

	refs := &fakeRefs{refs: map[string][]string{
		"key-a": {"vault-1", "vault-2"},
	}}

	// A referenced key cannot be removed.
	err := reg.Remove("key-a", refs)
	var inUse *InUseError
	require.ErrorAs(t, err, &inUse)
	require.Equal(t, []string{"vault-1", "vault-2"}, inUse.VaultIDs)

	_, ok := reg.Get("key-a")
	require.True(t, ok, "failed remove must not delete the entry")

	// An unreferenced key can.
	require.NoError(t, reg.Remove("key-b", refs))
	_, ok = reg.Get("key-b")
	require.False(t, ok)

	err = reg.Remove("key-missing", refs)
	require.ErrorIs(t, err, verrors.ErrKeyNotFound)
}

func TestConcurrentAdds(t *testing.T) {
	reg, path := testRegistry(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := passphraseEntry("key-" + string(rune('a'+i)))
			errs[i] = reg.Add(entry)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "add %d failed", i)
	}

	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, n)

	// The final file must be a complete, parseable document.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Keys, n)
}

func TestExternalEditReloads(t *testing.T) {
	reg, path := testRegistry(t)

	require.NoError(t, reg.Add(passphraseEntry("key-a")))
	genBefore := reg.Generation()

	// Simulate a backup restore replacing the file behind our back.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	extra := passphraseEntry("key-external")
	doc.Keys[extra.KeyID] = extra
	edited, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, edited, 0600))
	// Make sure the mtime moves even on coarse-granularity filesystems.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	got, ok := reg.Get("key-external")
	require.True(t, ok, "external edit must be visible after reload")
	require.Equal(t, "key-external", got.KeyID)
	require.Greater(t, reg.Generation(), genBefore)
}

func TestUnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "keys": {}}`), 0600))

	reg := Open(path)
	_, err := reg.List()
	require.ErrorIs(t, err, verrors.ErrUnsupportedRegistryVersion)

	err = reg.Add(passphraseEntry("key-a"))
	require.ErrorIs(t, err, verrors.ErrUnsupportedRegistryVersion)
}

func TestStrayTempFileLeavesRegistryIntact(t *testing.T) {
	reg, path := testRegistry(t)

	require.NoError(t, reg.Add(passphraseEntry("key-a")))

	// A crash between temp-write and rename leaves a stray temp file next to
	// the registry. The registry itself must stay fully readable.
	stray := filepath.Join(filepath.Dir(path), "registry.json.tmp-crash")
	require.NoError(t, os.WriteFile(stray, []byte("partial garbage"), 0600))

	fresh := Open(path)
	entries, err := fresh.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "key-a", entries[0].KeyID)
}

func TestValidateRejectsIncompleteEntries(t *testing.T) {
	reg, _ := testRegistry(t)

	missingRecipient := passphraseEntry("key-a")
	missingRecipient.Recipient = ""
	require.Error(t, reg.Add(missingRecipient))

	missingSerial := yubikeyEntry("key-b", "11122233", 1)
	missingSerial.Serial = ""
	require.Error(t, reg.Add(missingSerial))

	unknownKind := passphraseEntry("key-c")
	unknownKind.Kind = Kind("tpm")
	require.Error(t, reg.Add(unknownKind))
}

func TestRecoveryCodeRoundTrip(t *testing.T) {
	hash, err := HashRecoveryCode("ABCD-EFGH-JKMN")
	require.NoError(t, err)

	entry := passphraseEntry("key-a")
	entry.RecoveryCodeHash = hash
	require.True(t, entry.VerifyRecoveryCode("ABCD-EFGH-JKMN"))
	require.False(t, entry.VerifyRecoveryCode("WRONG-CODE"))

	var blank KeyEntry
	require.False(t, blank.VerifyRecoveryCode("anything"))
}
