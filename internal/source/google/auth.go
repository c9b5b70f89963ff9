package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"

	appLog "inkuinfo/internal/log"
)

// readonlyScope is the only scope a display needs.
const readonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// clientCredentials is the credentials JSON downloaded from Google Cloud Console.
type clientCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// loadClientCredentials reads client id and secret, trying the "installed"
// section first and then "web".
func loadClientCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds clientCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}
	return "", "", errors.New("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// TokenStore saves and loads an OAuth token.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// FileTokenStore keeps the token as JSON in a single file.
type FileTokenStore struct {
	Path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

func (store *FileTokenStore) SaveToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(store.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// LoadToken returns nil, nil if the file does not exist.
func (store *FileTokenStore) LoadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(store.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// autoSaveTokenSource writes refreshed tokens back to the store. Refreshes
// can happen from overlapping polls, hence the mutex.
type autoSaveTokenSource struct {
	mu         sync.Mutex
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			// The token is still usable for this process.
			appLog.Error("failed to save refreshed token", err)
		}
		a.lastToken = token
	}
	return token, nil
}

// tokenSource builds a refreshing token source from an already authorized
// token. There is no interactive flow: a missing token is an error.
func tokenSource(ctx context.Context, credentialsPath string, store TokenStore) (oauth2.TokenSource, error) {
	if credentialsPath == "" {
		return nil, errors.New("google: credentials_path is required with token_path")
	}
	clientID, clientSecret, err := loadClientCredentials(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	token, err := store.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	if token == nil {
		return nil, errors.New("google: token file not found; provision an authorized token first")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{readonlyScope},
		Endpoint:     googleEndpoint,
	}

	return &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, conf.TokenSource(ctx, token)),
		tokenStore: store,
		lastToken:  token,
	}, nil
}
