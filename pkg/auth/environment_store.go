package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements SessionStore using environment variables.
// It covers headless hosts and CI where neither keychain nor config
// directory is usable.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based session store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(session *Session) error {
	return ErrStoreUnavailable
}

// Retrieve gets the session from environment variables
func (e *EnvironmentStore) Retrieve(label string) (*Session, error) {
	cookie := os.Getenv("NESTSYNC_SESSION_COOKIE")
	accountID := os.Getenv("NESTSYNC_ACCOUNT_ID")
	userAgent := os.Getenv("NESTSYNC_USER_AGENT")

	if cookie == "" || accountID == "" {
		return nil, ErrSessionNotFound
	}

	// Environment variables carry no label, so callers get "default"
	if label == "" {
		label = "default"
	}

	return &Session{
		Label:        label,
		Cookie:       cookie,
		AccountID:    accountID,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}, nil
}

// List returns a single session if environment variables are set
func (e *EnvironmentStore) List() ([]*Session, error) {
	session, err := e.Retrieve("")
	if err != nil {
		return []*Session{}, nil
	}
	return []*Session{session}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(label string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment session variables are set
func (e *EnvironmentStore) Exists(label string) bool {
	cookie := os.Getenv("NESTSYNC_SESSION_COOKIE")
	accountID := os.Getenv("NESTSYNC_ACCOUNT_ID")
	return cookie != "" && accountID != ""
}
