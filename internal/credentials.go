package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"
)

// CredentialStore persists the auth token between runs
type CredentialStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// credentialsFile is the on-disk layout; auth_token is the single storage key
type credentialsFile struct {
	AuthToken string    `yaml:"auth_token"`
	SavedAt   time.Time `yaml:"saved_at"`
}

// FileCredentialStore keeps the token in a YAML file readable only by the user
type FileCredentialStore struct {
	path string
}

// NewFileCredentialStore creates a store backed by path
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

// Path returns the backing file path
func (s *FileCredentialStore) Path() string {
	return s.path
}

// Load returns the stored token, or "" when none is stored
func (s *FileCredentialStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Path: s.path, Op: "read", Err: err}
	}

	var creds credentialsFile
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return "", &StorageError{Path: s.path, Op: "parse", Err: err}
	}
	return creds.AuthToken, nil
}

// Save writes the token
func (s *FileCredentialStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return &StorageError{Path: s.path, Op: "mkdir", Err: err}
	}
	data, err := yaml.Marshal(credentialsFile{AuthToken: token, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return &StorageError{Path: s.path, Op: "write", Err: err}
	}
	return nil
}

// Clear removes the stored token
func (s *FileCredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Path: s.path, Op: "remove", Err: err}
	}
	return nil
}

// MemoryCredentialStore keeps the token in memory only
type MemoryCredentialStore struct {
	mu    sync.Mutex
	token string
}

func (s *MemoryCredentialStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryCredentialStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryCredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The client cannot verify it; the value is informational only.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return exp.Time, nil
}
