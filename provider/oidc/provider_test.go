package oidc_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	session "github.com/clubsphere/go-session"
	"github.com/clubsphere/go-session/provider/oidc"
)

const (
	testClientID = "test-client"
	testKeyID    = "test-key"
)

// fakeIssuer is a minimal OpenID Connect issuer: discovery, authorization,
// token, and JWKS endpoints, signing ID tokens with a throwaway RSA key.
type fakeIssuer struct {
	server *httptest.Server
	key    *rsa.PrivateKey
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := &fakeIssuer{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer.server.URL,
			"authorization_endpoint": issuer.server.URL + "/authorize",
			"token_endpoint":         issuer.server.URL + "/token",
			"jwks_uri":               issuer.server.URL + "/keys",
		})
	})
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		redirect := fmt.Sprintf("%s?code=fake-code&state=%s", q.Get("redirect_uri"), q.Get("state"))
		http.Redirect(w, r, redirect, http.StatusFound)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.NotEmpty(t, r.Form.Get("code_verifier"), "token exchange must carry the PKCE verifier")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fake-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     issuer.mintIDToken(t),
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		pub := &issuer.key.PublicKey
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   "AQAB",
			}},
		})
	})

	issuer.server = httptest.NewServer(mux)
	t.Cleanup(issuer.server.Close)
	return issuer
}

func (f *fakeIssuer) mintIDToken(t *testing.T) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":     f.server.URL,
		"aud":     testClientID,
		"sub":     "subject-1",
		"email":   "alice@example.com",
		"name":    "Alice Doe",
		"picture": "https://cdn.example.com/a.png",
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

// browserLauncher plays the user's browser: follow the authorization URL and
// the redirect back to the loopback callback.
func browserLauncher(t *testing.T) func(string) error {
	return func(url string) error {
		go func() {
			resp, err := http.Get(url)
			if err != nil {
				t.Errorf("browser request failed: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := oidc.New(ctx, oidc.Config{ClientID: testClientID})
	assert.Error(t, err)

	_, err = oidc.New(ctx, oidc.Config{IssuerURL: "https://issuer.example.com"})
	assert.Error(t, err)
}

func TestAuthenticateFederated(t *testing.T) {
	ctx := context.Background()
	issuer := newFakeIssuer(t)

	provider, err := oidc.New(ctx, oidc.Config{
		IssuerURL: issuer.server.URL,
		ClientID:  testClientID,
		Launcher:  browserLauncher(t),
	})
	require.NoError(t, err)

	var notified []session.Identity
	unsub := provider.Subscribe(func(id session.Identity) { notified = append(notified, id) })
	defer unsub()

	identity, err := provider.AuthenticateFederated(ctx)
	require.NoError(t, err)

	assert.Equal(t, "subject-1", identity.SubjectID())
	assert.Equal(t, "alice@example.com", identity.Email())
	assert.Equal(t, "Alice Doe", identity.DisplayName())
	assert.Equal(t, "https://cdn.example.com/a.png", identity.AvatarURL())

	// Initial nil notification plus the sign-in.
	require.Len(t, notified, 2)
	assert.Nil(t, notified[0])
	assert.Equal(t, identity, notified[1])

	t.Run("token returns the verified ID token", func(t *testing.T) {
		token, err := provider.Token(ctx, identity)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("sign out clears the session", func(t *testing.T) {
		require.NoError(t, provider.SignOut(ctx))
		assert.Nil(t, notified[len(notified)-1])

		_, err := provider.Token(ctx, identity)
		assert.Error(t, err)
	})
}

func TestAuthenticateFederatedCancelled(t *testing.T) {
	issuer := newFakeIssuer(t)

	provider, err := oidc.New(context.Background(), oidc.Config{
		IssuerURL: issuer.server.URL,
		ClientID:  testClientID,
		Launcher:  func(string) error { return nil },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = provider.AuthenticateFederated(ctx)
	require.Error(t, err)
}

func TestPasswordOperationsUnsupported(t *testing.T) {
	issuer := newFakeIssuer(t)

	provider, err := oidc.New(context.Background(), oidc.Config{
		IssuerURL: issuer.server.URL,
		ClientID:  testClientID,
	})
	require.NoError(t, err)

	_, err = provider.CreateIdentity(context.Background(), "a@example.com", "password")
	assert.Error(t, err)

	_, err = provider.Authenticate(context.Background(), "a@example.com", "password")
	assert.Error(t, err)
}
