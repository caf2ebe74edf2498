package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/policy"
	"github.com/telekom/leadform/pkg/session"
)

const secret = "test-secret-do-not-use"

func hmacToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func viewerRouter(t *testing.T, a *AuthHandler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(session.Middleware("leadform_session", time.Minute), a.Middleware())
	r.GET("/viewer", func(c *gin.Context) {
		_, hasAuthHeader := c.Request.Header[AuthHeaderKey]
		c.JSON(http.StatusOK, gin.H{"viewer": ViewerFromContext(c), "authHeaderLeft": hasAuthHeader})
	})
	return r
}

type viewerResponse struct {
	Viewer         policy.Viewer `json:"viewer"`
	AuthHeaderLeft bool          `json:"authHeaderLeft"`
}

func get(r http.Handler, header string) (*httptest.ResponseRecorder, viewerResponse) {
	req := httptest.NewRequest(http.MethodGet, "/viewer", nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out viewerResponse
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestMiddlewareHMAC(t *testing.T) {
	a, err := NewAuth(config.Auth{JWTSecret: secret, Issuer: "https://idp.example.com", Audience: "leadform"}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	r := viewerRouter(t, a)

	valid := jwt.MapClaims{"sub": "analyst-1", "iss": "https://idp.example.com", "aud": "leadform", "exp": time.Now().Add(time.Minute).Unix()}

	tests := []struct {
		name          string
		header        string
		status        int
		authenticated bool
	}{
		{name: "no token is anonymous", status: http.StatusOK},
		{name: "valid token", header: "Bearer " + hmacToken(t, secret, valid), status: http.StatusOK, authenticated: true},
		{name: "not bearer", header: "Basic Zm9vOmJhcg==", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not.a.jwt", status: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + hmacToken(t, "other", valid), status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + hmacToken(t, secret, jwt.MapClaims{"sub": "a", "iss": "https://idp.example.com", "aud": "leadform", "exp": time.Now().Add(-time.Minute).Unix()}), status: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + hmacToken(t, secret, jwt.MapClaims{"sub": "a", "iss": "https://evil", "aud": "leadform"}), status: http.StatusUnauthorized},
		{name: "wrong audience", header: "Bearer " + hmacToken(t, secret, jwt.MapClaims{"sub": "a", "iss": "https://idp.example.com", "aud": "other"}), status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := get(r, tt.header)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			assert.Equal(t, tt.authenticated, out.Viewer.Authenticated)
			assert.NotEmpty(t, out.Viewer.SessionID)
			assert.False(t, out.AuthHeaderLeft, "authorization header is stripped")
			if tt.authenticated {
				assert.Equal(t, "analyst-1", out.Viewer.Subject)
				assert.NotEmpty(t, out.Viewer.Token)
			}
		})
	}
}

func TestMiddlewareRejectsAlgorithmConfusion(t *testing.T) {
	a, err := NewAuth(config.Auth{JWTSecret: secret}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, _, err = a.Verify(s)
	assert.Error(t, err)
}

func TestMiddlewareWithoutVerifier(t *testing.T) {
	a, err := NewAuth(config.Auth{}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	r := viewerRouter(t, a)

	w, out := get(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, out.Viewer.Authenticated)

	w, _ = get(r, "Bearer "+hmacToken(t, secret, jwt.MapClaims{"sub": "a"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	_, _, err = a.Verify("x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMiddlewareJWKS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	kid := "leadform-kid"
	nB64 := base64.RawURLEncoding.EncodeToString(priv.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.E)).Bytes())
	jwksObj := map[string]interface{}{"keys": []interface{}{map[string]interface{}{"kty": "RSA", "kid": kid, "use": "sig", "alg": "RS256", "n": nB64, "e": eB64}}}
	jwksBytes, err := json.Marshal(jwksObj)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksBytes)
	}))
	defer srv.Close()

	a, err := NewAuth(config.Auth{JWKSURL: srv.URL}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer a.Close()
	r := viewerRouter(t, a)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "uid-1", "exp": time.Now().Add(time.Minute).Unix()})
	tok.Header["kid"] = kid
	tokStr, err := tok.SignedString(priv)
	require.NoError(t, err)

	w, out := get(r, "Bearer "+tokStr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, out.Viewer.Authenticated)
	assert.Equal(t, "uid-1", out.Viewer.Subject)

	// HMAC token signed with the public modulus must not pass an RSA verifier
	w, _ = get(r, "Bearer "+hmacToken(t, nB64, jwt.MapClaims{"sub": "uid-1"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareSkipsPreflight(t *testing.T) {
	a, err := NewAuth(config.Auth{JWTSecret: secret}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(a.Middleware())
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set(AuthHeaderKey, "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
