package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the bearer credential or ID token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// IDClaims are the ID-token claims the portal reads.
type IDClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	UPN               string `json:"upn"`
	Name              string `json:"name"`
	jwt.RegisteredClaims
}

// Username returns the first non-empty account name claim, lower-cased.
func (c *IDClaims) Username() string {
	for _, v := range []string{c.PreferredUsername, c.Email, c.UPN} {
		if v = strings.TrimSpace(v); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

// IDTokenVerifier validates identity-provider ID tokens.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*IDClaims, error)
}

// JWKSVerifier verifies RS256 ID tokens against a remote JSON Web Key Set.
// Keys are cached for TTL and refetched once on an unknown key id.
type JWKSVerifier struct {
	http     *resty.Client
	url      string
	audience string
	issuer   string
	ttl      time.Duration

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// NewJWKSVerifier creates a verifier for tokens issued by issuer for audience.
// An empty issuer or audience skips that check.
func NewJWKSVerifier(jwksURL, audience, issuer string, ttl time.Duration) *JWKSVerifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWKSVerifier{
		http:     resty.New().SetTimeout(10*time.Second).SetHeader("Accept", "application/json"),
		url:      jwksURL,
		audience: audience,
		issuer:   issuer,
		ttl:      ttl,
	}
}

// Verify checks the token signature, expiry, issuer and audience.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*IDClaims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &IDClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Username() == "" {
		return nil, fmt.Errorf("%w: no account name claim", ErrInvalidToken)
	}
	return claims, nil
}

func (v *JWKSVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if k, ok := v.keys[kid]; ok && time.Since(v.fetched) < v.ttl {
		return k, nil
	}
	if err := v.refreshLocked(ctx); err != nil {
		return nil, err
	}
	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *JWKSVerifier) refreshLocked(ctx context.Context) error {
	var set jwkSet
	resp, err := v.http.R().SetContext(ctx).SetResult(&set).Get(v.url)
	if err != nil {
		return fmt.Errorf("fetching jwks: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetching jwks: status %d", resp.StatusCode())
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKey(k.N, k.E)
		if err != nil {
			return fmt.Errorf("decoding jwk %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	v.keys = keys
	v.fetched = time.Now()
	return nil
}

func rsaKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eb)
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp.Int64())}, nil
}
