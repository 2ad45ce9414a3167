package auth

import (
	"os"
	"time"

	"notionx/pkg/config"
)

// Environment variables read by EnvironmentStore
const (
	EnvToken      = config.EnvPrefix + "NOTION_TOKEN"
	EnvDatabaseID = config.EnvPrefix + "NOTION_DATABASE_ID"
)

// EnvironmentStore reads a credential from the environment. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential under whatever profile is asked for
func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	token := os.Getenv(EnvToken)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &Credential{
		Profile:    profile,
		Token:      token,
		DatabaseID: os.Getenv(EnvDatabaseID),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	// environment values lose to any stored credential
	cred.LastModified = time.Time{}
	return []*Credential{cred}, nil
}

func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(EnvToken) != ""
}
