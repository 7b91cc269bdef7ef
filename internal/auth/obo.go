package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/hitoshi/meetingbingo/internal/metrics"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// graphResource はGraph権限名を修飾するリソースURI。
const graphResource = "https://graph.microsoft.com/"

// 用途別の委任スコープ
var (
	MeetingDetailsScopes = []string{"OnlineMeetings.Read", "Chat.Read"}
	ChatMessageScopes    = []string{"Chat.ReadWrite"}
)

// CredentialFactory はユーザーアサーションに束縛されたトークン資格情報を生成する。
type CredentialFactory func(userAssertion string) (azcore.TokenCredential, error)

// OBOConfig はOn-Behalf-Of交換の設定。
type OBOConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Transport はトークンエンドポイントへのHTTP送信に使う。nilの場合はSDK既定。
	Transport policy.Transporter
}

// OBOExchanger はユーザーのSSOトークンをGraph用アクセストークンに交換する。
type OBOExchanger struct {
	newCredential CredentialFactory
	metrics       metrics.MetricsCollector
}

// NewOBOExchanger はazidentityのOBO資格情報を使うOBOExchangerを生成する。
func NewOBOExchanger(cfg OBOConfig, m metrics.MetricsCollector) *OBOExchanger {
	factory := func(userAssertion string) (azcore.TokenCredential, error) {
		return azidentity.NewOnBehalfOfCredentialWithSecret(
			cfg.TenantID,
			cfg.ClientID,
			userAssertion,
			cfg.ClientSecret,
			&azidentity.OnBehalfOfCredentialOptions{
				ClientOptions: azcore.ClientOptions{
					Transport: cfg.Transport,
					// 失敗はそのまま呼び出し元に返す
					Retry: policy.RetryOptions{MaxRetries: -1},
				},
			},
		)
	}
	return NewOBOExchangerWithFactory(factory, m)
}

// NewOBOExchangerWithFactory は任意の資格情報生成関数を使うOBOExchangerを生成する。
func NewOBOExchangerWithFactory(factory CredentialFactory, m metrics.MetricsCollector) *OBOExchanger {
	return &OBOExchanger{newCredential: factory, metrics: metrics.OrNop(m)}
}

// Exchange はuserTokenをscopesのアクセストークンに交換する。
// 失敗の原因は区別せずServerErrorとして返す。
func (e *OBOExchanger) Exchange(ctx context.Context, userToken string, scopes []string) (string, error) {
	token, err := e.exchange(ctx, userToken, scopes)
	e.metrics.RecordOBOExchange(metrics.Result(err))
	if err != nil {
		slog.Warn("on-behalf-of exchange failed", "scopes", scopes, "error", err)
		return "", fmt.Errorf("%w: on-behalf-of exchange: %v", model.NewServerError(), err)
	}
	return token, nil
}

func (e *OBOExchanger) exchange(ctx context.Context, userToken string, scopes []string) (string, error) {
	if userToken == "" {
		return "", errors.New("empty user token")
	}

	cred, err := e.newCredential(userToken)
	if err != nil {
		return "", fmt.Errorf("create credential: %w", err)
	}

	tok, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: QualifyScopes(scopes)})
	if err != nil {
		return "", fmt.Errorf("acquire token: %w", err)
	}
	if tok.Token == "" {
		return "", errors.New("token endpoint returned an empty access token")
	}
	return tok.Token, nil
}

// QualifyScopes はGraph権限名をリソースURI付きのスコープに変換する。
// 既にURI形式のスコープや予約スコープはそのまま返す。
func QualifyScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		switch {
		case strings.Contains(s, "://"), isReservedScope(s):
			out = append(out, s)
		default:
			out = append(out, graphResource+s)
		}
	}
	return out
}

func isReservedScope(s string) bool {
	switch s {
	case "openid", "profile", "offline_access", "email":
		return true
	}
	return false
}
