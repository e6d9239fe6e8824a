package devkit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

func newAPIBackend(t *testing.T, h http.HandlerFunc) *devkit.APIBackend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return devkit.NewAPIBackend(devkit.NewHTTPTransport(srv.URL, "k", time.Second, srv.Client()))
}

func TestAPIBackend_Paths(t *testing.T) {
	t.Parallel()
	var paths []string
	b := newAPIBackend(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		switch {
		case r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(devkit.FeatureFlagEvaluation{Enabled: true})
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})
	ctx := context.Background()

	_, err := b.FetchConfig(ctx, "env 1", "a/b")
	require.NoError(t, err)
	_, err = b.FetchConfigMap(ctx, "env1")
	require.NoError(t, err)
	_, err = b.FetchSecretMap(ctx, "app", "env1")
	require.NoError(t, err)
	_, err = b.EvaluateFlag(ctx, devkit.EvaluationRequest{FlagKey: "f", UserID: "u"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/v1/configurations/environment/env%201/key/a%2Fb",
		"/api/v1/configurations/environment/env1/map",
		"/api/v1/secrets/application/app/environment/env1/map",
		"/api/v1/feature-flags/evaluate",
	}, paths)
}

func TestAPIBackend_EvaluateSendsEmptyAttributes(t *testing.T) {
	t.Parallel()
	var body map[string]any
	b := newAPIBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"enabled":true,"variantKey":"blue","reason":"TARGETED"}`))
	})

	ev, err := b.EvaluateFlag(context.Background(), devkit.EvaluationRequest{FlagKey: "f", UserID: "u"})
	require.NoError(t, err)
	assert.Equal(t, "blue", ev.Variant())
	assert.Equal(t, map[string]any{}, body["attributes"])
	assert.Equal(t, "f", body["flagKey"])
	assert.Equal(t, "u", body["userId"])
}

func TestAPIBackend_PollQuery(t *testing.T) {
	t.Parallel()
	var q map[string]string
	b := newAPIBackend(t, func(w http.ResponseWriter, r *http.Request) {
		q = map[string]string{
			"lastUpdate": r.URL.Query().Get("lastUpdate"),
			"timeout":    r.URL.Query().Get("timeout"),
		}
		_, _ = w.Write([]byte(`{"hasUpdates":true,"configurations":{"a":"1"},"lastUpdate":1700000000123}`))
	})

	pr, err := b.PollConfigs(context.Background(), "env1", 42, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"lastUpdate": "42", "timeout": "60"}, q)
	assert.True(t, pr.HasUpdates)
	assert.Equal(t, int64(1700000000123), pr.LastUpdate)
	assert.Equal(t, map[string]string{"a": "1"}, pr.Configurations)

	_, err = b.PollConfigs(context.Background(), "env1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "1", q["timeout"])
}
