package devkit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Backend is where a Resolver fetches raw (possibly encrypted) values from.
// Implementations must not cache; caching belongs to the Resolver.
type Backend interface {
	FetchConfig(ctx context.Context, environmentID, key string) (*Configuration, error)
	FetchConfigMap(ctx context.Context, environmentID string) (map[string]string, error)
	FetchSecretMap(ctx context.Context, applicationID, environmentID string) (map[string]string, error)
	EvaluateFlag(ctx context.Context, req EvaluationRequest) (*FeatureFlagEvaluation, error)
	PollConfigs(ctx context.Context, environmentID string, lastUpdate int64, wait time.Duration) (*PollResponse, error)
}

// APIBackend maps Backend calls onto the DevKit REST API.
type APIBackend struct {
	t *HTTPTransport
}

// NewAPIBackend wraps a transport.
func NewAPIBackend(t *HTTPTransport) *APIBackend {
	return &APIBackend{t: t}
}

// Transport exposes the underlying transport.
func (b *APIBackend) Transport() *HTTPTransport { return b.t }

func (b *APIBackend) FetchConfig(ctx context.Context, environmentID, key string) (*Configuration, error) {
	var cfg Configuration
	path := fmt.Sprintf("/api/v1/configurations/environment/%s/key/%s",
		url.PathEscape(environmentID), url.PathEscape(key))
	if err := b.t.Get(ctx, path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (b *APIBackend) FetchConfigMap(ctx context.Context, environmentID string) (map[string]string, error) {
	m := map[string]string{}
	path := fmt.Sprintf("/api/v1/configurations/environment/%s/map", url.PathEscape(environmentID))
	if err := b.t.Get(ctx, path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *APIBackend) FetchSecretMap(ctx context.Context, applicationID, environmentID string) (map[string]string, error) {
	m := map[string]string{}
	path := fmt.Sprintf("/api/v1/secrets/application/%s/environment/%s/map",
		url.PathEscape(applicationID), url.PathEscape(environmentID))
	if err := b.t.Get(ctx, path, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *APIBackend) EvaluateFlag(ctx context.Context, req EvaluationRequest) (*FeatureFlagEvaluation, error) {
	if req.Attributes == nil {
		req.Attributes = map[string]any{}
	}
	var ev FeatureFlagEvaluation
	if err := b.t.Post(ctx, "/api/v1/feature-flags/evaluate", req, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// PollConfigs long-polls for changes newer than lastUpdate (Unix ms). The
// service waits at most wait (whole seconds, 1..60) before answering with
// HasUpdates=false.
func (b *APIBackend) PollConfigs(ctx context.Context, environmentID string, lastUpdate int64, wait time.Duration) (*PollResponse, error) {
	secs := int(wait / time.Second)
	if secs < 1 {
		secs = 1
	}
	if secs > 60 {
		secs = 60
	}
	q := url.Values{}
	q.Set("lastUpdate", strconv.FormatInt(lastUpdate, 10))
	q.Set("timeout", strconv.Itoa(secs))
	path := fmt.Sprintf("/api/v1/configurations/environment/%s/poll?%s", url.PathEscape(environmentID), q.Encode())
	var pr PollResponse
	if err := b.t.Get(ctx, path, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}
