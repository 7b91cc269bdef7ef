// Package tabpage はTeamsタブのページ（index/config/remove）を配信する。
package tabpage

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/meetingbingo/internal/bingo"
)

//go:embed assets/*.html assets/*.js
var assets embed.FS

// PathPrefix はタブページのURLプレフィックス。
const PathPrefix = "/meetingBingoTab/"

// Pages はTeamsクライアントに埋め込まれるページ名。
var Pages = []string{"index.html", "config.html", "remove.html"}

// Config はページに埋め込む値。
type Config struct {
	PublicHostname string
	TabAppID       string
}

// Resource はSSOトークン取得時に要求するリソース（トークンのaudience）。
func (c Config) Resource() string {
	return fmt.Sprintf("api://%s/%s", c.PublicHostname, c.TabAppID)
}

// DefaultTopicsJSON は既定トピックのJSON配列を返す。
func (c Config) DefaultTopicsJSON() string {
	b, err := json.Marshal(bingo.DefaultTopics)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// BaseURL はAPIを呼び出す際のオリジン。
func (c Config) BaseURL() string {
	return "https://" + c.PublicHostname
}

// GuardedPaths はTeamsからのフレーム埋め込みを許可するパスを返す。
func GuardedPaths() []string {
	paths := make([]string, 0, len(Pages))
	for _, p := range Pages {
		paths = append(paths, PathPrefix+p)
	}
	return paths
}

// Handler はタブページを配信する。HTMLは起動時に一度だけ描画する。
type Handler struct {
	pages  map[string][]byte
	static http.Handler
}

// NewHandler はページを描画してHandlerを生成する。
func NewHandler(cfg Config) (*Handler, error) {
	tmpl, err := template.ParseFS(assets, "assets/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse tab pages: %w", err)
	}

	pages := make(map[string][]byte, len(Pages))
	for _, name := range Pages {
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, name, cfg); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", name, err)
		}
		pages[name] = buf.Bytes()
	}

	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		return nil, fmt.Errorf("failed to open tab assets: %w", err)
	}

	return &Handler{
		pages:  pages,
		static: http.StripPrefix(strings.TrimSuffix(PathPrefix, "/"), http.FileServerFS(sub)),
	}, nil
}

// ServeHTTP はPathPrefix配下のリクエストを処理する。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Base(r.URL.Path)
	if page, ok := h.pages[name]; ok && r.URL.Path == PathPrefix+name {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(page)
		}
		return
	}

	if strings.HasSuffix(name, ".js") {
		h.static.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}
