package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/apiresponses"
	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/policy"
	"github.com/telekom/leadform/pkg/session"
)

const (
	AuthHeaderKey = "Authorization"

	// gin context keys set by Middleware
	authenticatedKey = "authenticated"
	subjectKey       = "subject"
	tokenKey         = "token"
)

// ErrNotConfigured is returned for tokens presented while no verifier is set up.
var ErrNotConfigured = errors.New("token authentication is not configured")

type AuthHandler struct {
	keyfunc  jwt.Keyfunc
	methods  []string
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
	log      *zap.SugaredLogger
}

// NewAuth builds a handler from cfg. With neither a secret nor a JWKS URL every
// presented token is rejected and requests without one stay anonymous.
func NewAuth(cfg config.Auth, log *zap.SugaredLogger) (*AuthHandler, error) {
	a := &AuthHandler{issuer: cfg.Issuer, audience: cfg.Audience, log: log.Named("auth")}
	switch {
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshTimeout:  time.Second * 10,
			RefreshErrorHandler: func(err error) {
				a.log.Errorf("failed to refresh JWKS configuration: %v", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("could not get JWKS: %w", err)
		}
		a.jwks = jwks
		a.keyfunc = jwks.Keyfunc
		a.methods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256"}
	case cfg.JWTSecret != "":
		secret := []byte(cfg.JWTSecret)
		a.keyfunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
		a.methods = []string{"HS256", "HS384", "HS512"}
	default:
		a.log.Infow("No token verifier configured, lead listing is limited to the caller's session")
	}
	return a, nil
}

// Close stops the background JWKS refresh.
func (a *AuthHandler) Close() {
	if a != nil && a.jwks != nil {
		a.jwks.EndBackground()
	}
}

// Verify parses and validates a bearer token and returns its subject.
func (a *AuthHandler) Verify(bearer string) (*jwt.Token, string, error) {
	if a.keyfunc == nil {
		return nil, "", ErrNotConfigured
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(bearer, &claims, a.keyfunc, jwt.WithValidMethods(a.methods))
	if err != nil {
		return nil, "", err
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return nil, "", fmt.Errorf("unexpected token issuer")
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, true) {
		return nil, "", fmt.Errorf("unexpected token audience")
	}
	sub, _ := claims["sub"].(string)
	return token, sub, nil
}

// Middleware verifies an optional bearer token. A missing token leaves the request
// anonymous; an invalid one is answered with 401.
func (a *AuthHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		authHeader := c.GetHeader(AuthHeaderKey)
		// delete the header to avoid logging it by accident
		c.Request.Header.Del(AuthHeaderKey)
		if authHeader == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			apiresponses.RespondUnauthorizedWithMessage(c, "No Bearer token provided in Authorization header")
			c.Abort()
			return
		}
		bearer := authHeader[7:]

		_, sub, err := a.Verify(bearer)
		if err != nil {
			a.log.Debugw("Rejected bearer token", "error", err)
			apiresponses.RespondUnauthorizedWithMessage(c, "invalid token")
			c.Abort()
			return
		}

		c.Set(authenticatedKey, true)
		c.Set(subjectKey, sub)
		c.Set(tokenKey, bearer)
		c.Next()
	}
}

// ViewerFromContext combines the verified token and the session id of the request.
func ViewerFromContext(c *gin.Context) policy.Viewer {
	return policy.Viewer{
		Authenticated: c.GetBool(authenticatedKey),
		Subject:       c.GetString(subjectKey),
		Token:         c.GetString(tokenKey),
		SessionID:     session.FromContext(c),
	}
}
