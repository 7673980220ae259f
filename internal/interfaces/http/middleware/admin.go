package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/aptrec/pkg/errors"
)

// HeaderAPIKey carries a static key as an alternative to a bearer token.
const HeaderAPIKey = "X-API-Key"

// AdminAuth guards operator routes with a shared token presented either as
// "Authorization: Bearer <token>" or in the X-API-Key header. An empty token
// disables the routes entirely.
func AdminAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if len(want) == 0 {
			abortJSON(c, http.StatusForbidden, errors.ErrCodeForbidden, "admin API disabled")
			return
		}
		got := credential(c.Request)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			abortJSON(c, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "missing or invalid credentials")
			return
		}
		c.Next()
	}
}

func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.Header.Get(HeaderAPIKey)
}

//Personal.AI order the ending
