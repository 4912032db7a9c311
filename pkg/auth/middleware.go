package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kinotekahq/kinoteka/pkg/config"
	"github.com/kinotekahq/kinoteka/pkg/errcodes"
	"github.com/labstack/echo/v4"
)

// Middleware authenticates API requests by token. Scan automation tools
// send the token either in the X-Emby-Token header or inside an
// `Authorization: MediaBrowser Token="..."` header; both are accepted.
type Middleware struct {
	token string
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{token: cfg.APIToken}
}

func (m *Middleware) RequireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// No token configured means the instance is deliberately open, e.g.
		// a development setup behind a reverse proxy that authenticates.
		if m.token == "" {
			return next(c)
		}

		token := extractToken(c.Request())
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			return errcodes.Unauthorized("Invalid or missing API token.")
		}

		return next(c)
	}
}

func extractToken(req *http.Request) string {
	if token := req.Header.Get("X-Emby-Token"); token != "" {
		return token
	}

	authorization := req.Header.Get(echo.HeaderAuthorization)
	scheme := "MediaBrowser "
	if !strings.HasPrefix(authorization, scheme) {
		return ""
	}

	for _, part := range strings.Split(authorization[len(scheme):], ",") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "Token="); ok {
			return strings.Trim(value, `"`)
		}
	}

	return ""
}
