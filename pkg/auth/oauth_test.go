package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadTokenLayouts(t *testing.T) {
	tok, err := LoadToken(write(t, `{"access_token":"a1","refresh_token":"r1","expiry":"2026-10-16T12:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "a1", tok.AccessToken)
	assert.Equal(t, "r1", tok.RefreshToken)
	assert.True(t, tok.Expiry.Equal(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)))

	tok, err = LoadToken(write(t, `{"access_token":"a2","refresh_token":"r2","expires_at":1791000000}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1791000000), tok.Expiry.Unix())

	tok, err = LoadToken(write(t, `{"token":"a3","refresh_token":"r3","client_id":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "a3", tok.AccessToken)
}

func TestLoadTokenMissing(t *testing.T) {
	_, err := LoadToken(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = LoadToken(write(t, `{}`))
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = LoadToken(write(t, `not json`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestSaveTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	exp := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: exp}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.True(t, exp.Equal(tok.Expiry))
}

type staticSource struct{ tok *oauth2.Token }

func (s staticSource) Token() (*oauth2.Token, error) { return s.tok, nil }

func TestPersistingSourceSavesChangedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	old := &oauth2.Token{AccessToken: "old", RefreshToken: "r"}
	fresh := &oauth2.Token{AccessToken: "new", RefreshToken: "r"}

	src := &persistingSource{base: staticSource{old}, path: path, log: zap.NewNop(), last: old}
	_, err := src.Token()
	require.NoError(t, err)
	assert.NoFileExists(t, path)

	src.base = staticSource{fresh}
	_, err = src.Token()
	require.NoError(t, err)
	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
}

func TestClientSendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	path := write(t, `{"access_token":"live","token_type":"Bearer","expiry":"2999-01-01T00:00:00Z"}`)
	c, err := Client(context.Background(), TickTickConfig("id", "secret"), path, nil)
	require.NoError(t, err)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer live", got)
}

func TestGoogleConfig(t *testing.T) {
	path := write(t, `{"installed":{"client_id":"cid","client_secret":"cs","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`)
	cfg, err := GoogleConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cid", cfg.ClientID)
	assert.Contains(t, cfg.Scopes, "https://www.googleapis.com/auth/calendar.readonly")

	_, err = GoogleConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
