package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"notionx/pkg/config"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

// Credential is a Notion integration token and the database it writes to
type Credential struct {
	Profile      string    `json:"profile"`
	Token        string    `json:"token"`
	DatabaseID   string    `json:"database_id,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore stores credentials by profile name
type CredentialStore interface {
	Store(cred *Credential) error
	Retrieve(profile string) (*Credential, error)
	List() ([]*Credential, error)
	Delete(profile string) error
	Exists(profile string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager backed by the system keychain when available,
// an encrypted file in dir, and the environment as a read-only fallback.
// An empty dir uses the notionx data directory.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = config.DataDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	var stores []CredentialStore
	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store validates cred and saves it in the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil {
		return ErrInvalidCredentials
	}
	if cred.Profile == "" {
		cred.Profile = DefaultProfile
	}
	if err := ValidateToken(cred.Token); err != nil {
		return err
	}
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the credential for profile from the first store that has it
func (m *Manager) Retrieve(profile string) (*Credential, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if cred, err := store.Retrieve(profile); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for profile %s", ErrCredentialsNotFound, profile)
}

// List returns the credentials of every store, newest version per profile
func (m *Manager) List() ([]*Credential, error) {
	byProfile := make(map[string]*Credential)
	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, c := range creds {
			if existing, ok := byProfile[c.Profile]; !ok || c.LastModified.After(existing.LastModified) {
				byProfile[c.Profile] = c
			}
		}
	}

	result := make([]*Credential, 0, len(byProfile))
	for _, c := range byProfile {
		result = append(result, c)
	}
	return result, nil
}

// Delete removes profile from every store
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for profile %s", ErrCredentialsNotFound, profile)
	}
	return nil
}

// Apply fills the Notion token and database of cfg from the stored
// credential when the configuration does not set them.
func (m *Manager) Apply(cfg *config.Config, profile string) error {
	if cfg.Notion.Token != "" && cfg.Notion.DatabaseID != "" {
		return nil
	}
	cred, err := m.Retrieve(profile)
	if err != nil {
		return err
	}
	if cfg.Notion.Token == "" {
		cfg.Notion.Token = cred.Token
	}
	if cfg.Notion.DatabaseID == "" {
		cfg.Notion.DatabaseID = cred.DatabaseID
	}
	return nil
}

// ValidateToken checks the shape of a Notion integration token
func ValidateToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidCredentials)
	}
	if !strings.HasPrefix(token, "ntn_") && !strings.HasPrefix(token, "secret_") {
		return fmt.Errorf("%w: token must start with ntn_ or secret_", ErrInvalidCredentials)
	}
	if strings.ContainsAny(token, " \t\n") {
		return fmt.Errorf("%w: token contains whitespace", ErrInvalidCredentials)
	}
	return nil
}

// SanitizeCredential returns a copy with the token masked
func SanitizeCredential(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}
	c := *cred
	c.Token = maskString(cred.Token)
	return &c
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
