package server

import "net/http"

const (
	defaultFrameAncestors     = "'none'"
	defaultFrameOptions       = "DENY"
	defaultReferrerPolicy     = "no-referrer"
	defaultPermissionsPolicy  = "camera=(), microphone=(), geolocation=()"
	defaultContentTypeOptions = "nosniff"
)

// SecurityConfig controls the hardening headers on every response. The
// defaults suit a JSON API with a websocket for progress: no framing, no
// referrer leakage, and a CSP that permits websocket connections back to the
// origin plus data/blob images for thumbnail previews. Zero-valued fields
// fall back to those defaults.
type SecurityConfig struct {
	ContentSecurityPolicy string
	FrameAncestors        string
	FrameOptions          string
	ReferrerPolicy        string
	PermissionsPolicy     string
	ContentTypeOptions    string
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (cfg SecurityConfig) withDefaults() SecurityConfig {
	cfg.FrameAncestors = orDefault(cfg.FrameAncestors, defaultFrameAncestors)
	cfg.FrameOptions = orDefault(cfg.FrameOptions, defaultFrameOptions)
	cfg.ReferrerPolicy = orDefault(cfg.ReferrerPolicy, defaultReferrerPolicy)
	cfg.PermissionsPolicy = orDefault(cfg.PermissionsPolicy, defaultPermissionsPolicy)
	cfg.ContentTypeOptions = orDefault(cfg.ContentTypeOptions, defaultContentTypeOptions)
	cfg.ContentSecurityPolicy = orDefault(cfg.ContentSecurityPolicy, defaultContentSecurityPolicy(cfg.FrameAncestors))
	return cfg
}

func defaultContentSecurityPolicy(frameAncestors string) string {
	ancestors := orDefault(frameAncestors, defaultFrameAncestors)

	return "default-src 'self'; " +
		"connect-src 'self' ws: wss:; " +
		"img-src 'self' data: blob:; " +
		"media-src 'self' blob:; " +
		"script-src 'self'; " +
		"style-src 'self'; " +
		"object-src 'none'; " +
		"base-uri 'self'; " +
		"frame-ancestors " + ancestors + "; " +
		"form-action 'self'"
}

func securityHeadersMiddleware(cfg SecurityConfig, next http.Handler) http.Handler {
	effective := cfg.withDefaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Content-Security-Policy", effective.ContentSecurityPolicy)
		headers.Set("X-Frame-Options", effective.FrameOptions)
		headers.Set("X-Content-Type-Options", effective.ContentTypeOptions)
		headers.Set("Referrer-Policy", effective.ReferrerPolicy)
		headers.Set("Permissions-Policy", effective.PermissionsPolicy)

		next.ServeHTTP(w, r)
	})
}
