package middleware

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/service"
	"github.com/quocanhngo/reelsync/pkg/certauth"
	"github.com/rs/zerolog"
)

const identityKey = "reelsync.identity"

// SessionHeader carries the session token for bearer tokens issued without one
const SessionHeader = "X-Session-Token"

var staticExtensions = map[string]bool{
	".css": true, ".js": true, ".map": true, ".ico": true,
	".png": true, ".svg": true, ".html": true, ".woff2": true,
}

// IdentityResolver resolves presented credentials into a caller identity
type IdentityResolver interface {
	ResolveBearer(ctx context.Context, token, sessionHeader string) (*model.Identity, error)
	ResolveCertificate(ctx context.Context, cert *x509.Certificate) (*model.Identity, error)
}

// GatewayConfig controls which paths bypass the gateway and where client
// certificates are read from
type GatewayConfig struct {
	CertEnabled   bool
	ForwardHeader string
	SkipPaths     []string
}

// Identity resolves the caller of every non allow-listed request and stores
// the result for CurrentIdentity. A client certificate takes precedence over a
// bearer token when certificate auth is enabled.
func Identity(resolver IdentityResolver, cfg GatewayConfig, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "gateway").Logger()

	return func(c *gin.Context) {
		if skipped(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		var (
			identity *model.Identity
			err      error
		)

		cert, certErr := clientCertificate(c, cfg)
		switch {
		case certErr != nil:
			log.Info().Err(certErr).Str("path", c.Request.URL.Path).Msg("unreadable forwarded certificate")
			err = service.ErrIdentityInvalid
		case cert != nil:
			identity, err = resolver.ResolveCertificate(ctx, cert)
		default:
			identity, err = resolver.ResolveBearer(ctx, bearerToken(c), c.GetHeader(SessionHeader))
		}

		if err != nil {
			switch {
			case errors.Is(err, service.ErrIdentityUnresolved):
				c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "authentication required"})
			case errors.Is(err, service.ErrIdentityInvalid):
				c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "authentication failed"})
			default:
				log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("identity resolution")
				c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal error"})
			}
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// SetIdentity stores the resolved caller on the request context
func SetIdentity(c *gin.Context, identity *model.Identity) {
	c.Set(identityKey, identity)
}

// CurrentIdentity returns the caller resolved by Identity, or nil on
// allow-listed routes
func CurrentIdentity(c *gin.Context) *model.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*model.Identity)
	return identity
}

func skipped(p string, skipPaths []string) bool {
	for _, prefix := range skipPaths {
		if p == prefix || strings.HasPrefix(p, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return staticExtensions[strings.ToLower(path.Ext(p))]
}

// clientCertificate returns the TLS peer certificate, or the one a proxy
// forwarded in the configured header. No certificate is not an error.
func clientCertificate(c *gin.Context, cfg GatewayConfig) (*x509.Certificate, error) {
	if !cfg.CertEnabled {
		return nil, nil
	}
	if tls := c.Request.TLS; tls != nil && len(tls.PeerCertificates) > 0 {
		return tls.PeerCertificates[0], nil
	}
	if cfg.ForwardHeader == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(c.GetHeader(cfg.ForwardHeader))
	if raw == "" {
		return nil, nil
	}
	return certauth.ParsePEM(raw)
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
