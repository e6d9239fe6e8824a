package fakes

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

// Backend is an in-memory devkit.Backend that counts every call.
// Configs is keyed by environment then key; Secrets by application then
// environment then key. Flags maps flagKey to the evaluation returned for
// any user. Err, when set, fails every call.
type Backend struct {
	mu sync.Mutex

	Configs map[string]map[string]devkit.Configuration
	Secrets map[string]map[string]map[string]string
	Flags   map[string]devkit.FeatureFlagEvaluation
	Polls   []devkit.PollResponse // handed out in order, then "no updates"
	Err     error
	// MapDelay slows every FetchConfigMap down.
	MapDelay time.Duration

	ConfigCalls    int
	ConfigMapCalls int
	SecretMapCalls int
	FlagCalls      int
	PollCalls      int
	LastEval       devkit.EvaluationRequest
	LastPollSince  int64
}

// SetConfig stores a configuration value of type STRING.
func (f *Backend) SetConfig(env, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Configs == nil {
		f.Configs = map[string]map[string]devkit.Configuration{}
	}
	if f.Configs[env] == nil {
		f.Configs[env] = map[string]devkit.Configuration{}
	}
	f.Configs[env][key] = devkit.Configuration{Key: key, Value: value, Type: devkit.TypeString, EnvironmentID: env}
}

// SetSecret stores an already-encrypted secret value.
func (f *Backend) SetSecret(app, env, key, encrypted string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Secrets == nil {
		f.Secrets = map[string]map[string]map[string]string{}
	}
	if f.Secrets[app] == nil {
		f.Secrets[app] = map[string]map[string]string{}
	}
	if f.Secrets[app][env] == nil {
		f.Secrets[app][env] = map[string]string{}
	}
	f.Secrets[app][env][key] = encrypted
}

// SetErr makes every following call fail with err (nil to recover).
func (f *Backend) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// PollCount is PollCalls read under the lock.
func (f *Backend) PollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PollCalls
}

// ConfigMapCount is ConfigMapCalls read under the lock.
func (f *Backend) ConfigMapCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConfigMapCalls
}

// TotalCalls sums every counter.
func (f *Backend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConfigCalls + f.ConfigMapCalls + f.SecretMapCalls + f.FlagCalls + f.PollCalls
}

func (f *Backend) FetchConfig(_ context.Context, env, key string) (*devkit.Configuration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConfigCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	c, ok := f.Configs[env][key]
	if !ok {
		return nil, &devkit.RemoteError{Method: "GET", Path: env + "/" + key, StatusCode: 404}
	}
	return &c, nil
}

func (f *Backend) FetchConfigMap(_ context.Context, env string) (map[string]string, error) {
	if f.MapDelay > 0 {
		time.Sleep(f.MapDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConfigMapCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	m := make(map[string]string, len(f.Configs[env]))
	for k, c := range f.Configs[env] {
		m[k] = c.Value
	}
	return m, nil
}

func (f *Backend) FetchSecretMap(_ context.Context, app, env string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SecretMapCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	m := maps.Clone(f.Secrets[app][env])
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func (f *Backend) EvaluateFlag(_ context.Context, req devkit.EvaluationRequest) (*devkit.FeatureFlagEvaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FlagCalls++
	f.LastEval = req
	if f.Err != nil {
		return nil, f.Err
	}
	ev, ok := f.Flags[req.FlagKey]
	if !ok {
		return &devkit.FeatureFlagEvaluation{Enabled: false, Reason: "FLAG_NOT_FOUND"}, nil
	}
	return &ev, nil
}

func (f *Backend) PollConfigs(_ context.Context, _ string, since int64, _ time.Duration) (*devkit.PollResponse, error) {
	f.mu.Lock()
	f.PollCalls++
	f.LastPollSince = since
	if f.Err != nil {
		err := f.Err
		f.mu.Unlock()
		return nil, err
	}
	if len(f.Polls) > 0 {
		p := f.Polls[0]
		f.Polls = f.Polls[1:]
		f.mu.Unlock()
		return &p, nil
	}
	f.mu.Unlock()
	return &devkit.PollResponse{HasUpdates: false, LastUpdate: since}, nil
}
