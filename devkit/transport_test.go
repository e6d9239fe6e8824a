package devkit_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

func TestTransport_SendsHeadersAndDecodes(t *testing.T) {
	t.Parallel()
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewEncoder(w).Encode(map[string]string{"a": "1"})
	}))
	t.Cleanup(srv.Close)

	tr := devkit.NewHTTPTransport(srv.URL+"/", "k-123", time.Second, srv.Client())
	var out map[string]string
	require.NoError(t, tr.Get(context.Background(), "/api/v1/x", &out))

	assert.Equal(t, map[string]string{"a": "1"}, out)
	require.NotNil(t, got)
	assert.Equal(t, "/api/v1/x", got.URL.Path)
	assert.Equal(t, "Bearer k-123", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
}

func TestTransport_PostBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req devkit.EvaluationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(devkit.FeatureFlagEvaluation{Enabled: req.UserID == "u1", Reason: "RULE"})
	}))
	t.Cleanup(srv.Close)

	tr := devkit.NewHTTPTransport(srv.URL, "k", time.Second, nil)
	var ev devkit.FeatureFlagEvaluation
	require.NoError(t, tr.Post(context.Background(), "/eval", devkit.EvaluationRequest{FlagKey: "f", UserID: "u1"}, &ev))
	assert.True(t, ev.Enabled)
	assert.Equal(t, "RULE", ev.Reason)
}

func TestTransport_Unauthorized(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tr := devkit.NewHTTPTransport(srv.URL, "bad", time.Second, nil)
	err := tr.Get(context.Background(), "/x", &struct{}{})
	assert.ErrorIs(t, err, devkit.ErrAuthentication)
	assert.NotErrorIs(t, err, devkit.ErrRemote)
}

func TestTransport_RemoteError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	tr := devkit.NewHTTPTransport(srv.URL, "k", time.Second, nil)
	err := tr.Get(context.Background(), "/x", &struct{}{})

	var re *devkit.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Contains(t, err.Error(), "boom")
	assert.ErrorIs(t, err, devkit.ErrRemote)
	assert.NotErrorIs(t, err, devkit.ErrNotFound)
}

func TestTransport_NotFoundIsRemote(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	tr := devkit.NewHTTPTransport(srv.URL, "k", time.Second, nil)
	err := tr.Get(context.Background(), "/x", &struct{}{})
	assert.ErrorIs(t, err, devkit.ErrRemote)
	assert.ErrorIs(t, err, devkit.ErrNotFound)
}

func TestTransport_BadJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	t.Cleanup(srv.Close)

	tr := devkit.NewHTTPTransport(srv.URL, "k", time.Second, nil)
	var out map[string]string
	err := tr.Get(context.Background(), "/x", &out)
	var re *devkit.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusOK, re.StatusCode)
}

func TestTransport_Timeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	tr := devkit.NewHTTPTransport(srv.URL, "k", 50*time.Millisecond, nil)
	err := tr.Get(context.Background(), "/slow", &struct{}{})
	assert.ErrorIs(t, err, devkit.ErrTimeout)
	assert.NotErrorIs(t, err, devkit.ErrRemote)
}

func TestTransport_CallerCancelIsNotTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	tr := devkit.NewHTTPTransport(srv.URL, "k", 5*time.Second, nil)
	err := tr.Get(ctx, "/slow", &struct{}{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, devkit.ErrTimeout))
}

func TestTransport_Delete(t *testing.T) {
	t.Parallel()
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	tr := devkit.NewHTTPTransport(srv.URL, "k", time.Second, nil)
	require.NoError(t, tr.Delete(context.Background(), "/x/1"))
	assert.Equal(t, http.MethodDelete, method)
}
