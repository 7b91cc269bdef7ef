package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testAudience = "api://bingo.example.com/00000000-1111-2222-3333-444444444444"

// keyServer はテスト用の鍵セット配信サーバー。
type keyServer struct {
	t      *testing.T
	server *httptest.Server
	hits   atomic.Int32

	mu   sync.Mutex
	keys map[string]*rsa.PrivateKey
}

func newKeyServer(t *testing.T) *keyServer {
	t.Helper()
	ks := &keyServer{t: t, keys: map[string]*rsa.PrivateKey{}}
	ks.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ks.hits.Add(1)
		ks.mu.Lock()
		defer ks.mu.Unlock()

		set := jsonWebKeySet{}
		for kid, k := range ks.keys {
			set.Keys = append(set.Keys, jsonWebKey{
				Kid: kid,
				Kty: "RSA",
				Use: "sig",
				N:   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(ks.server.Close)
	return ks
}

// rotate はkidの鍵を新しく生成して公開する。
func (ks *keyServer) rotate(kid string) *rsa.PrivateKey {
	ks.t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		ks.t.Fatalf("failed to generate key: %v", err)
	}
	ks.mu.Lock()
	ks.keys[kid] = key
	ks.mu.Unlock()
	return key
}

func (ks *keyServer) keySet(ttl time.Duration) *KeySet {
	return NewKeySet(KeySetConfig{URL: ks.server.URL, TTL: ttl, HTTPClient: ks.server.Client()})
}

func validClaims() *Claims {
	now := time.Now()
	return &Claims{
		ObjectID:          "user-oid-1",
		TenantID:          "tenant-1",
		Name:              "Ada Lovelace",
		PreferredUsername: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{testAudience},
			Issuer:    "https://login.microsoftonline.com/tenant-1/v2.0",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}
