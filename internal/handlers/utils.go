package handlers

import (
	"net/http"
	"strings"
)

// requestToken finds an identity token on the upgrade request. The "token"
// query parameter wins over a bearer Authorization header, which wins over the
// auth cookie. Browsers cannot set headers on a websocket upgrade, hence the
// query and cookie forms.
func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}
