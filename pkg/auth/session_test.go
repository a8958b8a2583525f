package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSessionManager(t *testing.T) {
	// Use mock manager for reliable testing
	manager, mockStore := NewMockManager()

	session := &Session{
		Label:        "family",
		Cookie:       "_sprout_session=abc123def456; remember_token=xyz",
		AccountID:    "482913",
		UserAgent:    "TestAgent/1.0",
		LastModified: time.Now(),
	}

	err := manager.Store(session)
	if err != nil {
		t.Errorf("Failed to store session: %v", err)
	}

	retrieved, err := manager.Retrieve("family")
	if err != nil {
		t.Errorf("Failed to retrieve session: %v", err)
	}

	if retrieved.Label != session.Label {
		t.Errorf("Label mismatch: got %s, want %s", retrieved.Label, session.Label)
	}
	if retrieved.Cookie != session.Cookie {
		t.Errorf("Cookie mismatch: got %s, want %s", retrieved.Cookie, session.Cookie)
	}
	if retrieved.AccountID != session.AccountID {
		t.Errorf("AccountID mismatch: got %s, want %s", retrieved.AccountID, session.AccountID)
	}

	sessions, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list sessions: %v", err)
	}
	if len(sessions) == 0 {
		t.Error("Expected at least one session in list")
	}

	// Sanitization masks the cookie but keeps the identifiers readable
	sanitized := SanitizeSession(session)
	if sanitized.Cookie == session.Cookie {
		t.Error("Cookie should be masked")
	}
	if sanitized.Label != session.Label {
		t.Error("Label should not be masked")
	}
	if sanitized.AccountID != session.AccountID {
		t.Error("AccountID should not be masked")
	}

	err = manager.Delete("family")
	if err != nil {
		t.Errorf("Failed to delete session: %v", err)
	}

	_, err = manager.Retrieve("family")
	if err == nil {
		t.Error("Expected error retrieving deleted session")
	}

	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 sessions after deletion, got %d", mockStore.Count())
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name    string
		session *Session
	}{
		{"missing label", &Session{Cookie: "c", AccountID: "1"}},
		{"missing cookie", &Session{Label: "l", AccountID: "1"}},
		{"missing account id", &Session{Label: "l", Cookie: "c"}},
	}

	for _, tt := range tests {
		if err := manager.Store(tt.session); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "test_sessions.enc")

	os.Setenv("NESTSYNC_PASSPHRASE", "test_passphrase_123")
	defer os.Unsetenv("NESTSYNC_PASSPHRASE")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	session := &Session{
		Label:     "encrypted",
		Cookie:    "encrypted_cookie_value",
		AccountID: "991100",
	}

	err = store.Store(session)
	if err != nil {
		t.Errorf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted")
	if err != nil {
		t.Errorf("Failed to retrieve from encrypted file: %v", err)
	}

	if retrieved.Cookie != session.Cookie {
		t.Errorf("Cookie mismatch after encryption/decryption")
	}

	// The file on disk must not leak the secrets
	fileContent, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}

	if contains(fileContent, []byte("encrypted_cookie_value")) {
		t.Error("File contains plaintext cookie")
	}
	if contains(fileContent, []byte("991100")) {
		t.Error("File contains plaintext account id")
	}
}

func TestEncryptedFileStoreDeleteLast(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "sessions.enc")

	os.Setenv("NESTSYNC_PASSPHRASE", "test_passphrase_delete")
	defer os.Unsetenv("NESTSYNC_PASSPHRASE")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Store(&Session{Label: "only", Cookie: "c", AccountID: "1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("only"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	// Deleting the last session removes the file entirely
	if _, err := os.Stat(tempFile); !os.IsNotExist(err) {
		t.Error("Expected store file to be removed with its last session")
	}
}

func TestEnvironmentStore(t *testing.T) {
	os.Setenv("NESTSYNC_SESSION_COOKIE", "env_cookie")
	os.Setenv("NESTSYNC_ACCOUNT_ID", "env_account")
	defer os.Unsetenv("NESTSYNC_SESSION_COOKIE")
	defer os.Unsetenv("NESTSYNC_ACCOUNT_ID")

	store := NewEnvironmentStore()

	session, err := store.Retrieve("")
	if err != nil {
		t.Errorf("Failed to retrieve from environment: %v", err)
	}

	if session.Cookie != "env_cookie" {
		t.Errorf("Cookie mismatch: got %s, want env_cookie", session.Cookie)
	}
	if session.AccountID != "env_account" {
		t.Errorf("AccountID mismatch: got %s, want env_account", session.AccountID)
	}
	if session.Label != "default" {
		t.Errorf("Label should default to 'default', got %s", session.Label)
	}

	err = store.Store(&Session{})
	if err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestRealManagerWithEncryptedStore(t *testing.T) {
	tempDir := t.TempDir()

	os.Setenv("NESTSYNC_PASSPHRASE", "test_passphrase_real_manager")
	defer os.Unsetenv("NESTSYNC_PASSPHRASE")

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(tempDir, "sessions.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	manager := NewMockManagerWithStores(encryptedStore)

	session := &Session{
		Label:        "portal",
		Cookie:       "real_cookie_value",
		AccountID:    "135791",
		UserAgent:    "RealAgent/1.0",
		LastModified: time.Now(),
	}

	err = manager.Store(session)
	if err != nil {
		t.Fatalf("Failed to store session: %v", err)
	}

	sessions, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session in list, got %d", len(sessions))
	}

	retrieved, err := manager.Retrieve("portal")
	if err != nil {
		t.Fatalf("Failed to retrieve session: %v", err)
	}

	if retrieved.Label != session.Label {
		t.Errorf("Label mismatch: got %s, want %s", retrieved.Label, session.Label)
	}
	if retrieved.Cookie != session.Cookie {
		t.Errorf("Cookie mismatch: got %s, want %s", retrieved.Cookie, session.Cookie)
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	sessions, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Expected 0 sessions, got %d", len(sessions))
	}

	session := &Session{
		Label:     "mock",
		Cookie:    "mock_cookie",
		AccountID: "mock_account",
	}

	err = store.Store(session)
	if err != nil {
		t.Errorf("Failed to store session: %v", err)
	}

	if store.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", store.Count())
	}

	if !store.Exists("mock") {
		t.Error("Session should exist")
	}

	// Test error injection
	store.ListError = fmt.Errorf("injected error")
	_, err = store.List()
	if err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func contains(data []byte, substr []byte) bool {
	for i := 0; i <= len(data)-len(substr); i++ {
		if string(data[i:i+len(substr)]) == string(substr) {
			return true
		}
	}
	return false
}
