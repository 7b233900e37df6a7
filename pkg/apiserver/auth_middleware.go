package apiserver

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// adminAuthMiddleware guards the admin listing routes with a bearer token
// compared against a bcrypt hash from configuration.
func adminAuthMiddleware(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authorization, "Bearer ")

			if token == "" || token == authorization {
				writeError(w, http.StatusForbidden, "forbidden", nil)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
				logrus.Debugf("admin token rejected for %s", r.URL.Path)
				writeError(w, http.StatusForbidden, "forbidden", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
