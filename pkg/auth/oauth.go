// Package auth turns stored OAuth tokens into authenticated HTTP clients.
// Tokens are minted elsewhere; this package only loads, refreshes and
// re-saves them.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrisonrobin/friday/pkg/logging"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	// GoogleTokenFile is the token file name inside a Google account folder.
	GoogleTokenFile = "token.json"

	TickTickAuthURL  = "https://ticktick.com/oauth/authorize"
	TickTickTokenURL = "https://ticktick.com/oauth/token"
	TickTickScope    = "tasks:read"
)

// ErrNoToken means the token file is missing or holds no usable token.
var ErrNoToken = errors.New("no stored token")

// tokenFile accepts the oauth2 token layout as well as the older
// {token, expires_at} layouts written by other tools.
type tokenFile struct {
	AccessToken  string    `json:"access_token,omitempty"`
	Token        string    `json:"token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	ExpiresAt    int64     `json:"expires_at,omitempty"`
}

// LoadToken reads an oauth2.Token from a JSON file.
func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, path)
		}
		return nil, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}

	tok := &oauth2.Token{
		AccessToken:  tf.AccessToken,
		TokenType:    tf.TokenType,
		RefreshToken: tf.RefreshToken,
		Expiry:       tf.Expiry,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = tf.Token
	}
	if tok.Expiry.IsZero() && tf.ExpiresAt > 0 {
		tok.Expiry = time.Unix(tf.ExpiresAt, 0)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, path)
	}
	return tok, nil
}

// SaveToken writes tok to path with owner-only permissions, replacing the
// file atomically.
func SaveToken(path string, tok *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	b, err := json.Marshal(tokenFile{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return fmt.Errorf("failed to write token %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// persistingSource saves every refreshed token back to disk.
type persistingSource struct {
	base oauth2.TokenSource
	path string
	log  *zap.Logger

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := SaveToken(s.path, tok); err != nil {
			s.log.Warn("could not save refreshed token", zap.String("path", s.path), zap.Error(err))
		} else {
			s.log.Debug("saved refreshed token", zap.String("path", s.path))
		}
		s.last = tok
	}
	return tok, nil
}

// Client returns an HTTP client that refreshes the token in tokenPath as
// needed and writes refreshed tokens back.
func Client(ctx context.Context, cfg *oauth2.Config, tokenPath string, log *zap.Logger) (*http.Client, error) {
	tok, err := LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}
	src := &persistingSource{
		base: cfg.TokenSource(ctx, tok),
		path: tokenPath,
		log:  logging.OrNop(log),
		last: tok,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// GoogleConfig parses a client secrets file for read-only calendar access.
func GoogleConfig(clientSecretFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", clientSecretFile, err)
	}
	cfg, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return cfg, nil
}

// TickTickConfig builds the OAuth config for the TickTick Open API.
func TickTickConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   TickTickAuthURL,
			TokenURL:  TickTickTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{TickTickScope},
	}
}
