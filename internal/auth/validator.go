// Package auth はTeams SSOトークンの検証とOn-Behalf-Ofトークン交換を提供する。
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/meetingbingo/internal/metrics"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// KeyProvider はkidから署名検証用の公開鍵を引く。
type KeyProvider interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
	Invalidate()
}

var _ KeyProvider = (*KeySet)(nil)

// Claims はTeams SSOトークンから参照するクレーム。
type Claims struct {
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// ValidatedToken は検証済みトークン。RawはOBO交換のアサーションとして使う。
type ValidatedToken struct {
	Raw    string
	Claims *Claims
}

// UserID はトークン利用者のオブジェクトIDを返す。
func (t *ValidatedToken) UserID() string {
	if t == nil || t.Claims == nil {
		return ""
	}
	return t.Claims.ObjectID
}

// ValidatorConfig はValidatorの設定。
type ValidatorConfig struct {
	// Audience は期待するaud（api://<hostname>/<app-id>）。
	Audience string
	// Issuer が空でない場合はissも検証する。
	Issuer string
}

// Validator はBearerトークンを検証する。
type Validator struct {
	keys     KeyProvider
	audience string
	issuer   string
	metrics  metrics.MetricsCollector
}

// NewValidator は新しいValidatorを生成する。
func NewValidator(keys KeyProvider, cfg ValidatorConfig, m metrics.MetricsCollector) *Validator {
	return &Validator{
		keys:     keys,
		audience: cfg.Audience,
		issuer:   cfg.Issuer,
		metrics:  metrics.OrNop(m),
	}
}

// BearerToken はAuthorizationヘッダー値からトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", model.NewUnauthorizedError("missing Authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", model.NewUnauthorizedError("Authorization header must use the Bearer scheme")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", model.NewUnauthorizedError("empty bearer token")
	}
	return token, nil
}

// ValidateHeader はAuthorizationヘッダー値を検証し、検証済みトークンを返す。
// ヘッダーの欠落・形式不正はUnauthorized、署名・audience不一致はForbiddenになる。
func (v *Validator) ValidateHeader(ctx context.Context, header string) (*ValidatedToken, error) {
	raw, err := BearerToken(header)
	if err != nil {
		v.metrics.RecordTokenValidation(metrics.ResultFailure)
		return nil, err
	}
	return v.Validate(ctx, raw)
}

// Validate はトークン文字列の署名とaudienceを検証する。
// キャッシュ済みの鍵で署名検証に失敗した場合は鍵セットを取り直して1回だけ再検証する。
func (v *Validator) Validate(ctx context.Context, raw string) (*ValidatedToken, error) {
	claims, err := v.parse(ctx, raw)
	if err != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		v.keys.Invalidate()
		claims, err = v.parse(ctx, raw)
	}
	if err != nil {
		v.metrics.RecordTokenValidation(metrics.ResultFailure)
		slog.Debug("token validation failed", "error", err)
		return nil, fmt.Errorf("validate token: %v: %w", err, model.NewForbiddenError(reason(err)))
	}

	v.metrics.RecordTokenValidation(metrics.ResultSuccess)
	return &ValidatedToken{Raw: raw, Claims: claims}, nil
}

func (v *Validator) parse(ctx context.Context, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return v.keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// reason はクライアントに返す失敗理由を分類する。
func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return "token is expired or not yet valid"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "unexpected audience"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "unexpected issuer"
	default:
		return "signature verification failed"
	}
}
