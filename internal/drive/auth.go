// Package drive imports documents from Google Drive into the knowledge
// base.
//
// Authentication follows the installed-app OAuth flow: credentials come
// from a downloaded client secret file, and the granted token is cached
// as JSON next to it. Import lists files with the read-only scope and
// routes each one to the matching ingest loader by MIME type.
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
)

// ErrNotAuthorized indicates no cached token exists yet; the caller must
// run the authorization flow first.
var ErrNotAuthorized = errors.New("drive: not authorized, run the auth flow first")

// TokenStore caches an OAuth token as a JSON file.
type TokenStore struct {
	path string
}

// NewTokenStore creates a token store at the given path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads the cached token. Reports ErrNotAuthorized when the cache
// file does not exist.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("reading token cache: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token cache: %w", err)
	}
	return &token, nil
}

// Save writes the token to the cache file with owner-only permissions.
func (s *TokenStore) Save(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

// Authenticator runs the installed-app OAuth flow for the Drive
// read-only scope.
type Authenticator struct {
	cfg    *oauth2.Config
	tokens *TokenStore
}

// NewAuthenticator builds an Authenticator from a client secret file.
func NewAuthenticator(credentialsFile, tokenFile string) (*Authenticator, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gdrive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	return &Authenticator{cfg: cfg, tokens: NewTokenStore(tokenFile)}, nil
}

// AuthURL returns the consent URL the user must visit to grant access.
func (a *Authenticator) AuthURL(state string) string {
	return a.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and caches it.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	token, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	return a.tokens.Save(token)
}

// Client returns an HTTP client backed by the cached token. The token
// source refreshes expired tokens transparently.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	token, err := a.tokens.Load()
	if err != nil {
		return nil, err
	}
	return a.cfg.Client(ctx, token), nil
}
