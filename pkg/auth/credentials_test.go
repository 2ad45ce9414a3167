package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"notionx/pkg/config"
)

const testToken = "ntn_1234567890abcdefghij"

func TestCredentialManager(t *testing.T) {
	mockStore := NewMockStore()
	manager := NewManagerWithStores(mockStore)

	cred := &Credential{Token: testToken, DatabaseID: "db-1"}
	if err := manager.Store(cred); err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}
	if cred.Profile != DefaultProfile {
		t.Errorf("Expected default profile, got %q", cred.Profile)
	}
	if cred.LastModified.IsZero() {
		t.Error("Expected LastModified to be set")
	}

	retrieved, err := manager.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve credential: %v", err)
	}
	if retrieved.Token != testToken || retrieved.DatabaseID != "db-1" {
		t.Errorf("Credential mismatch: %+v", retrieved)
	}

	creds, err := manager.List()
	if err != nil || len(creds) != 1 {
		t.Errorf("Expected one credential, got %d (%v)", len(creds), err)
	}

	if err := manager.Delete(DefaultProfile); err != nil {
		t.Errorf("Failed to delete credential: %v", err)
	}
	if _, err := manager.Retrieve(DefaultProfile); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 credentials after deletion, got %d", mockStore.Count())
	}
}

func TestManagerRejectsInvalidToken(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore())

	for _, token := range []string{"", "abc", "ntn_ has space"} {
		if err := manager.Store(&Credential{Token: token}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials for %q, got %v", token, err)
		}
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	backup := NewMockStore()
	manager := NewManagerWithStores(broken, backup)

	if err := manager.Store(&Credential{Profile: "work", Token: "secret_abcdefghijkl"}); err != nil {
		t.Fatalf("Expected fallback store to accept credential: %v", err)
	}
	if !backup.Exists("work") {
		t.Error("Expected credential in fallback store")
	}
}

func TestValidateToken(t *testing.T) {
	valid := []string{"ntn_abc123", "secret_abc123", "  ntn_padded  "}
	for _, token := range valid {
		if err := ValidateToken(token); err != nil {
			t.Errorf("Expected %q to be valid: %v", token, err)
		}
	}
	invalid := []string{"", "token", "Bearer ntn_abc"}
	for _, token := range invalid {
		if err := ValidateToken(token); err == nil {
			t.Errorf("Expected %q to be invalid", token)
		}
	}
}

func TestSanitizeCredential(t *testing.T) {
	cred := &Credential{Profile: "default", Token: testToken}
	s := SanitizeCredential(cred)
	if s.Token != "ntn_...ghij" {
		t.Errorf("Unexpected masked token %q", s.Token)
	}
	if cred.Token != testToken {
		t.Error("Original credential must not be modified")
	}
	if SanitizeCredential(&Credential{Token: "short"}).Token != "********" {
		t.Error("Short tokens should be fully masked")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPassphrase, "test_passphrase_123")

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	if err := store.Store(&Credential{Profile: "default", Token: testToken, DatabaseID: "db-secret"}); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}
	if err := store.Store(&Credential{Profile: "work", Token: "secret_other"}); err != nil {
		t.Fatalf("Failed to store second profile: %v", err)
	}

	retrieved, err := store.Retrieve("default")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Token != testToken {
		t.Errorf("Token mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte(testToken)) || bytes.Contains(content, []byte("db-secret")) {
		t.Error("File contains plaintext credentials")
	}

	creds, _ := store.List()
	if len(creds) != 2 {
		t.Errorf("Expected 2 profiles, got %d", len(creds))
	}

	// a store with another passphrase cannot read the file
	t.Setenv(EnvPassphrase, "wrong")
	other, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("default"); err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected decryption failure, got %v", err)
	}

	t.Setenv(EnvPassphrase, "test_passphrase_123")
	if err := store.Delete("work"); err != nil {
		t.Errorf("Failed to delete profile: %v", err)
	}
	if err := store.Delete("default"); err != nil {
		t.Errorf("Failed to delete last profile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "credentials.enc")); !os.IsNotExist(err) {
		t.Error("Expected file removal after deleting the last profile")
	}
}

func TestGeneratedPassphrasePersists(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPassphrase, "")

	first, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Store(&Credential{Profile: "default", Token: testToken}); err != nil {
		t.Fatal(err)
	}

	second, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if !second.Exists("default") {
		t.Error("Expected a new store to reuse the generated passphrase")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvToken, "ntn_from_env")
	t.Setenv(EnvDatabaseID, "env-db")

	store := NewEnvironmentStore()
	cred, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if cred.Token != "ntn_from_env" || cred.DatabaseID != "env-db" || cred.Profile != DefaultProfile {
		t.Errorf("Unexpected environment credential: %+v", cred)
	}
	if err := store.Store(&Credential{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestManagerApply(t *testing.T) {
	store := NewMockStore()
	manager := NewManagerWithStores(store)
	if err := manager.Store(&Credential{Token: testToken, DatabaseID: "stored-db"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Notion.DatabaseID = "flag-db"
	if err := manager.Apply(cfg, ""); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if cfg.Notion.Token != testToken {
		t.Errorf("Expected stored token, got %q", cfg.Notion.Token)
	}
	if cfg.Notion.DatabaseID != "flag-db" {
		t.Errorf("Configured database must win, got %q", cfg.Notion.DatabaseID)
	}
}

func TestShowTokenGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowTokenGuide(&buf)
	if !bytes.Contains(buf.Bytes(), []byte(IntegrationsURL)) {
		t.Error("Guide should link the integrations page")
	}
}
