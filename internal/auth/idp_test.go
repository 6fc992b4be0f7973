package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velia-hr/portal/internal/auth"
	"github.com/velia-hr/portal/internal/role"
)

const (
	testIssuer   = "https://login.example.com/tenant/v2.0"
	testAudience = "portal-client"
)

type testIdP struct {
	key     *rsa.PrivateKey
	kid     atomic.Value
	server  *httptest.Server
	fetches atomic.Int32
}

func newTestIdP(t *testing.T) *testIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &testIdP{key: key}
	idp.kid.Store("k1")
	idp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		idp.fetches.Add(1)
		pub := idp.key.PublicKey
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kid": idp.kid.Load().(string),
				"kty": "RSA",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(idp.server.Close)
	return idp
}

func (p *testIdP) verifier() *auth.JWKSVerifier {
	return auth.NewJWKSVerifier(p.server.URL, testAudience, testIssuer, time.Hour)
}

func (p *testIdP) sign(t *testing.T, claims auth.IDClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = p.kid.Load().(string)
	s, err := tok.SignedString(p.key)
	require.NoError(t, err)
	return s
}

func validClaims() auth.IDClaims {
	now := time.Now()
	return auth.IDClaims{
		PreferredUsername: "Dee@X.com",
		Name:              "Dee Moss",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			Subject:   "abc",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestJWKSVerifier_Valid(t *testing.T) {
	idp := newTestIdP(t)
	v := idp.verifier()

	claims, err := v.Verify(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "dee@x.com", claims.Username())
	assert.Equal(t, "Dee Moss", claims.Name)

	_, err = v.Verify(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), idp.fetches.Load(), "keys are cached")
}

func TestJWKSVerifier_Rejects(t *testing.T) {
	idp := newTestIdP(t)

	tests := []struct {
		name   string
		mutate func(*auth.IDClaims)
	}{
		{"expired", func(c *auth.IDClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }},
		{"wrong audience", func(c *auth.IDClaims) { c.Audience = jwt.ClaimStrings{"someone-else"} }},
		{"wrong issuer", func(c *auth.IDClaims) { c.Issuer = "https://evil.example.com" }},
		{"no account name", func(c *auth.IDClaims) { c.PreferredUsername = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClaims()
			tt.mutate(&c)
			_, err := idp.verifier().Verify(context.Background(), idp.sign(t, c))
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWKSVerifier_RejectsForeignSignature(t *testing.T) {
	idp := newTestIdP(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	tok.Header["kid"] = idp.kid.Load().(string)
	raw, err := tok.SignedString(other)
	require.NoError(t, err)

	_, err = idp.verifier().Verify(context.Background(), raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWKSVerifier_RefetchesOnKeyRotation(t *testing.T) {
	idp := newTestIdP(t)
	v := idp.verifier()

	_, err := v.Verify(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)

	idp.kid.Store("k2")
	_, err = v.Verify(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(2), idp.fetches.Load())
}

func TestIdPLogin_CreatesUnknownUserAsSimple(t *testing.T) {
	idp := newTestIdP(t)
	repo := newMemRepo()
	svc := auth.NewService(repo, idp.verifier(), "dev", testBcryptCost)

	u, err := svc.IdPLogin(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "dee@x.com", u.Email)
	assert.Equal(t, "Dee Moss", u.DisplayName)
	assert.Equal(t, role.Simple, u.Role)
	assert.True(t, u.Status.IsStable())
	assert.Equal(t, auth.ProviderIdP, u.AuthProvider)

	again, err := svc.IdPLogin(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, u.RoleID, again.RoleID, "second login returns the same user")
}

func TestIdPLogin_KeepsExistingRole(t *testing.T) {
	idp := newTestIdP(t)
	repo := newMemRepo(auth.User{Email: "dee@x.com", Role: role.Manager})
	svc := auth.NewService(repo, idp.verifier(), "dev", testBcryptCost)

	u, err := svc.IdPLogin(context.Background(), idp.sign(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, role.Manager, u.Role)
}

func TestIdPLogin_Disabled(t *testing.T) {
	svc := auth.NewService(newMemRepo(), nil, "dev", testBcryptCost)
	_, err := svc.IdPLogin(context.Background(), "anything")
	assert.ErrorIs(t, err, auth.ErrIdPDisabled)
}
