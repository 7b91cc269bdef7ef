package middleware

import (
	"net/http"

	"github.com/hitoshi/meetingbingo/internal/auth"
)

// withUserID はリクエストに検証済みトークン（oid=userID）を付与する。
func withUserID(r *http.Request, userID string) *http.Request {
	tok := &auth.ValidatedToken{Raw: "raw-token", Claims: &auth.Claims{ObjectID: userID}}
	return r.WithContext(ContextWithToken(r.Context(), tok))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
