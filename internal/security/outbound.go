package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// DefaultOutboundHosts は外部呼び出しを許可する既定のホスト。
var DefaultOutboundHosts = []string{
	"graph.microsoft.com",
	"login.microsoftonline.com",
}

// NewOutboundClient はMicrosoftのエンドポイント以外へ接続しないHTTPクライアントを生成する。
// safeurlによりHTTPS/443以外、プライベートIP・ループバック・リンクローカル宛ての接続と
// allowedHosts以外のホストへのリクエストがブロックされる。
// DNS解決後のIPアドレスも検証されるためDNS再バインディングにも対応する。
func NewOutboundClient(timeout time.Duration, allowedHosts ...string) *http.Client {
	hosts := allowedHosts
	if len(hosts) == 0 {
		hosts = DefaultOutboundHosts
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		SetAllowedHosts(hosts...).
		Build()

	return safeurl.Client(config).Client
}

// HostsOf はURL群のホスト名を重複なく返す。解析できないURLは無視する。
func HostsOf(rawURLs ...string) []string {
	seen := map[string]bool{}
	var hosts []string
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		h := strings.ToLower(u.Hostname())
		if !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// ValidateEndpoint は設定された外部エンドポイントURLを起動時に検証する。
// httpsスキームであり、ホストがループバック・プライベートアドレスでないことを要求する。
func ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("disallowed scheme: %q (https required)", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
	}
	return nil
}
