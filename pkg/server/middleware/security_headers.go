package middleware

import (
	"net/http"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

const (
	defaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	permissionsPolicy            = "geolocation=(), microphone=(), camera=(), payment=()"
	// one year
	stsSeconds = 31536000
)

// SecurityHeaders adds common security headers to every response. HSTS is
// sent over TLS, including TLS terminated by a proxy that sets
// X-Forwarded-Proto. Requests whose Host is not in allowedHosts are rejected
// when the list is non-empty.
func SecurityHeaders(csp string, allowedHosts ...string) gin.HandlerFunc {
	if csp == "" {
		csp = defaultContentSecurityPolicy
	}
	headers := secure.New(secure.Config{
		AllowedHosts:          allowedHosts,
		STSSeconds:            stsSeconds,
		STSIncludeSubdomains:  true,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: csp,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		IENoOpen:              true,
		BadHostHandler: func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "host not allowed"})
		},
	})
	return func(c *gin.Context) {
		c.Header("Permissions-Policy", permissionsPolicy)
		headers(c)
	}
}
