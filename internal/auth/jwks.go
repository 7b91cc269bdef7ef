package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/meetingbingo/internal/metrics"
)

// ErrKeyNotFound は鍵セットに指定kidの鍵が存在しないことを表す。
var ErrKeyNotFound = errors.New("signing key not found")

// maxKeySetBytes は鍵セットレスポンスの読み取り上限。
const maxKeySetBytes = 1 << 20

type jsonWebKey struct {
	Kid string   `json:"kid"`
	Kty string   `json:"kty"`
	Use string   `json:"use"`
	N   string   `json:"n"`
	E   string   `json:"e"`
	X5c []string `json:"x5c"`
}

type jsonWebKeySet struct {
	Keys []jsonWebKey `json:"keys"`
}

// KeySetConfig はKeySetの設定。
// MinRefreshIntervalが0の場合は再取得の間隔を制限しない。
type KeySetConfig struct {
	URL                string
	TTL                time.Duration
	MinRefreshInterval time.Duration
	HTTPClient         *http.Client
	Metrics            metrics.MetricsCollector
}

// KeySet はIDプロバイダーが公開する署名鍵セットをkid単位でキャッシュする。
// TTL経過後または未知のkidを要求された時点で再取得し、
// 同時に発生した再取得はsingleflightで1回にまとめる。
// 前回の取得からMinRefreshInterval以内は取得せず、手元の鍵セットで探す。
type KeySet struct {
	url        string
	ttl        time.Duration
	minRefresh time.Duration
	client     *http.Client
	metrics    metrics.MetricsCollector
	now        func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time
	stale       bool

	group singleflight.Group
}

// NewKeySet は新しいKeySetを生成する。
func NewKeySet(cfg KeySetConfig) *KeySet {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{
		url:        cfg.URL,
		ttl:        cfg.TTL,
		minRefresh: cfg.MinRefreshInterval,
		client:     client,
		metrics:    metrics.OrNop(cfg.Metrics),
		now:        time.Now,
	}
}

// Key はkidに対応する公開鍵を返す。
// キャッシュに無い場合は鍵セットを取得し直してから探す。
func (ks *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := ks.cached(kid); ok {
		return key, nil
	}

	if err := ks.refresh(ctx); err != nil {
		return nil, err
	}

	if key, ok := ks.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid=%s", ErrKeyNotFound, kid)
}

// Invalidate はキャッシュを失効させ、次回のKeyで再取得させる。
// 再取得が間隔制限にかかる間は直近の鍵セットを使い続ける。
func (ks *KeySet) Invalidate() {
	ks.mu.Lock()
	ks.stale = true
	ks.mu.Unlock()
}

// cached はTTL内のキャッシュからkidの鍵を探す。
func (ks *KeySet) cached(kid string) (*rsa.PublicKey, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.keys == nil || ks.stale || ks.now().Sub(ks.fetchedAt) >= ks.ttl {
		return nil, false
	}
	key, ok := ks.keys[kid]
	return key, ok
}

// lookup はTTLと失効に関係なく直近に取得した鍵セットからkidの鍵を探す。
func (ks *KeySet) lookup(kid string) (*rsa.PublicKey, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	key, ok := ks.keys[kid]
	return key, ok
}

func (ks *KeySet) refresh(ctx context.Context) error {
	_, err, _ := ks.group.Do("keyset", func() (any, error) {
		if !ks.beginAttempt() {
			slog.Debug("signing key set refresh throttled", "url", ks.url)
			return nil, nil
		}

		keys, err := ks.fetch(ctx)
		ks.metrics.RecordJWKSRefresh(metrics.Result(err))
		if err != nil {
			slog.Warn("failed to fetch signing key set", "url", ks.url, "error", err)
			return nil, err
		}

		ks.mu.Lock()
		ks.keys = keys
		ks.fetchedAt = ks.now()
		ks.stale = false
		ks.mu.Unlock()

		slog.Debug("signing key set refreshed", "url", ks.url, "keys", len(keys))
		return nil, nil
	})
	return err
}

// beginAttempt は取得を始めてよいかを判定し、よければ試行時刻を記録する。
func (ks *KeySet) beginAttempt() bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := ks.now()
	if ks.minRefresh > 0 && !ks.lastAttempt.IsZero() && now.Sub(ks.lastAttempt) < ks.minRefresh {
		return false
	}
	ks.lastAttempt = now
	return true
}

func (ks *KeySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ks.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch key set: unexpected status %d", resp.StatusCode)
	}

	var set jsonWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kid == "" {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			slog.Debug("skipping unusable signing key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

// rsaPublicKey はn/eから公開鍵を組み立てる。n/eが無い場合はx5cの先頭証明書を使う。
func (k jsonWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "" && k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}

	if k.N != "" && k.E != "" {
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, fmt.Errorf("decode modulus: %w", err)
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, fmt.Errorf("decode exponent: %w", err)
		}
		exp := new(big.Int).SetBytes(e)
		if !exp.IsInt64() || exp.Int64() > 1<<31-1 || exp.Int64() < 3 {
			return nil, errors.New("invalid exponent")
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
	}

	if len(k.X5c) > 0 {
		der, err := base64.StdEncoding.DecodeString(k.X5c[0])
		if err != nil {
			return nil, fmt.Errorf("decode certificate: %w", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("certificate does not carry an RSA key")
		}
		return pub, nil
	}

	return nil, errors.New("key has neither modulus nor certificate")
}
