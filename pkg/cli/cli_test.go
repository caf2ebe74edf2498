package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v2"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/intake"
	"github.com/telekom/leadform/pkg/version"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit, origDate := version.Version, version.GitCommit, version.BuildDate
	defer func() {
		version.Version, version.GitCommit, version.BuildDate = origVersion, origCommit, origDate
	}()
	version.Version = "v1.2.3"
	version.GitCommit = "abc123"
	version.BuildDate = "2026-01-17T15:00:00Z"

	tests := []struct {
		name         string
		args         []string
		wantContains []string
		check        func(t *testing.T, out string)
	}{
		{
			name:         "default output format",
			args:         []string{"version"},
			wantContains: []string{"leadform v1.2.3", "commit: abc123", "built: 2026-01-17T15:00:00Z"},
		},
		{
			name: "json output format",
			args: []string{"version", "-o", "json"},
			check: func(t *testing.T, out string) {
				var info version.BuildInfo
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.Equal(t, "v1.2.3", info.Version)
			},
		},
		{
			name:         "yaml output format",
			args:         []string{"version", "--output", "yaml"},
			wantContains: []string{"version: v1.2.3", "gitcommit: abc123"},
			check: func(t *testing.T, out string) {
				var m map[string]any
				require.NoError(t, yaml.Unmarshal([]byte(out), &m))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			for _, want := range tt.wantContains {
				assert.Contains(t, out, want)
			}
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}

func TestVersionCommandUnknownFormat(t *testing.T) {
	_, err := run(t, "version", "-o", "xml")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	t.Run("print postgres", func(t *testing.T) {
		out, err := run(t, "migrate", "--dialect", "postgres", "--print")
		require.NoError(t, err)
		assert.Contains(t, out, "-- 001_create_leads")
		assert.Contains(t, out, "ENABLE ROW LEVEL SECURITY")
	})
	t.Run("apply postgres is refused", func(t *testing.T) {
		_, err := run(t, "migrate", "--dialect", "postgres")
		assert.ErrorContains(t, err, "--print")
	})
	t.Run("unknown dialect", func(t *testing.T) {
		_, err := run(t, "migrate", "--dialect", "oracle", "--print")
		assert.ErrorContains(t, err, "unknown dialect")
	})
	t.Run("apply sqlite twice", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "leads.db")
		for i := 0; i < 2; i++ {
			out, err := run(t, "migrate", "--dsn", dsn)
			require.NoError(t, err)
			assert.Contains(t, out, "up to date")
		}
	})
}

func baseConfig() config.Config {
	var cfg config.Config
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Defaults()
	return cfg
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestBuildServesTheForm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), baseConfig(), BuildOptions{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.Intake)

	h := app.Server.Handler()
	w := post(h, "/api/leads", `{"name":"  Ann  ","email":"ANN@X.COM ","industry":"tech"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp intake.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ann@x.com", resp.Lead.Email)
	assert.True(t, resp.ConfirmationSent)

	assert.Equal(t, http.StatusConflict, post(h, "/api/leads", `{"name":"Ann","email":"ann@x.com","industry":"tech"}`).Code)
	assert.Equal(t, http.StatusOK, post(h, "/api/notify", `{"name":"Bo","email":"bo@y.org","industry":"retail"}`).Code)

	ready := httptest.NewRecorder()
	h.ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, ready.Code)
}

func TestBuildWithNotificationsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := baseConfig()
	cfg.Notify.Mode = "disabled"
	app, err := Build(context.Background(), cfg, BuildOptions{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer app.Close()

	h := app.Server.Handler()
	w := post(h, "/api/leads", `{"name":"Ann","email":"ann@x.com","industry":"tech"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"confirmationSent":false`)
	assert.Equal(t, http.StatusNotFound, post(h, "/api/notify", `{"name":"Bo","email":"bo@y.org","industry":"retail"}`).Code)
}

func TestBuildNotifyOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), baseConfig(), BuildOptions{NotifyOnly: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer app.Close()
	assert.Nil(t, app.Intake)

	h := app.Server.Handler()
	assert.Equal(t, http.StatusOK, post(h, "/api/notify", `{"name":"Bo","email":"bo@y.org","industry":"retail"}`).Code)
	assert.Equal(t, http.StatusNotFound, post(h, "/api/leads", `{"name":"Ann","email":"ann@x.com","industry":"tech"}`).Code)
}

func TestBuildRejectsBrokenMailConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Mail.Provider = "pigeon"
	_, err := Build(context.Background(), cfg, BuildOptions{}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "mail sender")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("LEADFORM_TEST_BOOL", "yes")
	t.Setenv("LEADFORM_TEST_STRING", "value")
	assert.True(t, getEnvBool("LEADFORM_TEST_BOOL", false))
	assert.True(t, getEnvBool("LEADFORM_TEST_UNSET", true))
	assert.Equal(t, "value", getEnvString("LEADFORM_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnvString("LEADFORM_TEST_UNSET", "default"))
}

func TestSetupLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger := SetupLogger(debug)
		require.NotNil(t, logger)
		_ = logger.Sync()
	}
}
