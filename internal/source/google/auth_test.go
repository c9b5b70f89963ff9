package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestFileTokenStore_SaveLoad(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))

	expiry := time.Now().Add(1 * time.Hour)
	token := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		Expiry:       expiry,
		TokenType:    "Bearer",
	}

	if err := store.SaveToken(token); err != nil {
		t.Fatalf("SaveToken() returned an error: %v", err)
	}

	loaded, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() returned an error: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadToken() returned nil token")
	}
	if loaded.AccessToken != token.AccessToken || loaded.RefreshToken != token.RefreshToken {
		t.Errorf("Expected %+v, got %+v", token, loaded)
	}
	if !loaded.Expiry.Equal(token.Expiry) {
		t.Errorf("Expected Expiry to be %v, got %v", token.Expiry, loaded.Expiry)
	}
}

func TestFileTokenStore_LoadMissing(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "nonexistent.json"))
	token, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() should not return an error for non-existent file, got: %v", err)
	}
	if token != nil {
		t.Errorf("LoadToken() should return nil for non-existent file, got: %v", token)
	}
}

func TestLoadClientCredentials(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		json    string
		wantID  string
		wantErr bool
	}{
		{"installed", `{"installed": {"client_id": "inst-id", "client_secret": "s"}}`, "inst-id", false},
		{"web", `{"web": {"client_id": "web-id", "client_secret": "s"}}`, "web-id", false},
		{"empty", `{}`, "", true},
		{"invalid", `not json`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.json), 0o600); err != nil {
				t.Fatalf("Failed to write credentials: %v", err)
			}
			id, _, err := loadClientCredentials(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadClientCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
			if id != tt.wantID {
				t.Errorf("Expected client id %q, got %q", tt.wantID, id)
			}
		})
	}
}

type mockTokenStore struct {
	token       *oauth2.Token
	savedTokens []*oauth2.Token
}

func (m *mockTokenStore) SaveToken(token *oauth2.Token) error {
	m.savedTokens = append(m.savedTokens, token)
	m.token = token
	return nil
}

func (m *mockTokenStore) LoadToken() (*oauth2.Token, error) {
	return m.token, nil
}

func writeCredentials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(`{"installed": {"client_id": "id", "client_secret": "secret"}}`), 0o600); err != nil {
		t.Fatalf("Failed to write credentials: %v", err)
	}
	return path
}

func TestTokenSource_ValidTokenNotResaved(t *testing.T) {
	store := &mockTokenStore{token: &oauth2.Token{
		AccessToken: "valid",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}}

	ts, err := tokenSource(context.Background(), writeCredentials(t), store)
	if err != nil {
		t.Fatalf("tokenSource() returned an error: %v", err)
	}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if tok.AccessToken != "valid" {
		t.Errorf("Expected the stored token, got %q", tok.AccessToken)
	}
	if len(store.savedTokens) != 0 {
		t.Errorf("Expected no save for an unchanged token, got %d", len(store.savedTokens))
	}
}

func TestTokenSource_MissingToken(t *testing.T) {
	if _, err := tokenSource(context.Background(), writeCredentials(t), &mockTokenStore{}); err == nil {
		t.Error("Expected an error when no token has been provisioned")
	}
	if _, err := tokenSource(context.Background(), "", &mockTokenStore{}); err == nil {
		t.Error("Expected an error without credentials path")
	}
}
