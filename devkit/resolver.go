package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// cachedValue is the closed set of shapes a Resolver keeps in its cache.
type cachedValue interface{ isCachedValue() }

type stringValue string

type mapValue map[string]string

func (stringValue) isCachedValue()            {}
func (mapValue) isCachedValue()               {}
func (*FeatureFlagEvaluation) isCachedValue() {}

// sealer is the part of CipherBox the Resolver depends on.
type sealer interface {
	Decrypt(encoded string) (string, error)
	Encrypt(plaintext string) (string, error)
	KeyFingerprint() string
}

// Resolver fetches configuration values, secrets and feature-flag
// evaluations, decrypting client-side and caching the results.
//
// Every read follows the same path: check the cache; on a miss fetch from
// the Backend, decrypt where needed, store the decrypted value and finally
// convert it to the requested type. Fetch and decryption errors are never
// retried. Concurrent misses on the same key may both fetch; the last
// write wins.
//
// A Resolver is safe for concurrent use.
type Resolver struct {
	backend Backend
	cache   *TTLCache[cachedValue] // nil when caching is disabled
	box     sealer                 // nil without an encryption key
	log     *slog.Logger
	metrics *instruments
}

// New builds a Resolver. The encryption key is resolved once, here, from
// Options.EncryptionKey, then Options.KeySource, then DEVKIT_ENCRYPTION_KEY.
// No key is not an error; secret operations will fail instead.
func New(ctx context.Context, opts Options) (*Resolver, error) {
	opts.applyDefaults()

	backend := opts.Backend
	if backend == nil {
		if strings.TrimSpace(opts.APIKey) == "" {
			return nil, configErrorf("API key is required; set DEVKIT_API_KEY or provide Options.APIKey")
		}
		backend = NewAPIBackend(NewHTTPTransport(opts.BaseURL, opts.APIKey, opts.Timeout, opts.HTTPClient))
	}

	r := &Resolver{
		backend: backend,
		log:     opts.Logger,
		metrics: newInstruments(opts.MeterProvider),
	}
	if opts.cacheEnabled() {
		r.cache = NewTTLCache[cachedValue](opts.CacheMaxEntries, opts.CacheExpireAfter, WithClock(opts.now))
	}

	key, err := resolveEncryptionKey(ctx, opts.EncryptionKey, opts.KeySource)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) != "" {
		box, err := NewCipherBox(key)
		if err != nil {
			return nil, err
		}
		r.box = box
	}

	r.log.Debug("devkit resolver ready",
		"cache", r.cache != nil,
		"cache_ttl", opts.CacheExpireAfter,
		"crypto", r.box != nil,
	)
	return r, nil
}

// GetConfig returns the configuration value for key in environmentID.
// Values that look encrypted are decrypted when a key is configured and
// returned as fetched otherwise.
func (r *Resolver) GetConfig(ctx context.Context, environmentID, key string) (string, error) {
	ck := ConfigCacheKey(environmentID, key)
	if v, ok := r.lookup(ctx, NamespaceConfig, ck); ok {
		if s, ok := v.(stringValue); ok {
			return string(s), nil
		}
	}

	start := time.Now()
	cfg, err := r.backend.FetchConfig(ctx, environmentID, key)
	r.metrics.fetchDone(ctx, "config", start, err)
	if err != nil {
		return "", err
	}
	val, err := r.decryptIfNeeded(ctx, cfg.Value)
	if err != nil {
		return "", fmt.Errorf("configuration %q: %w", key, err)
	}
	r.store(ck, stringValue(val))
	return val, nil
}

// GetConfigAs returns the configuration value converted to t:
// TypeString yields string, TypeNumber float64, TypeBoolean bool and
// TypeJSON whatever encoding/json produces for an any.
func (r *Resolver) GetConfigAs(ctx context.Context, environmentID, key string, t ValueType) (any, error) {
	v, err := r.GetConfig(ctx, environmentID, key)
	if err != nil {
		return nil, err
	}
	return convert(v, t)
}

func (r *Resolver) GetConfigNumber(ctx context.Context, environmentID, key string) (float64, error) {
	v, err := r.GetConfig(ctx, environmentID, key)
	if err != nil {
		return 0, err
	}
	return parseNumber(v)
}

// GetConfigInt is GetConfigNumber for values that must be whole numbers.
func (r *Resolver) GetConfigInt(ctx context.Context, environmentID, key string) (int64, error) {
	v, err := r.GetConfig(ctx, environmentID, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, &ConversionError{Value: v, Target: TypeNumber, Err: err}
	}
	return n, nil
}

// GetConfigBool is true only for a case-insensitive "true"; any other value
// is false, never an error.
func (r *Resolver) GetConfigBool(ctx context.Context, environmentID, key string) (bool, error) {
	v, err := r.GetConfig(ctx, environmentID, key)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(v, "true"), nil
}

// GetConfigJSON unmarshals the configuration value into out.
func (r *Resolver) GetConfigJSON(ctx context.Context, environmentID, key string, out any) error {
	v, err := r.GetConfig(ctx, environmentID, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(v), out); err != nil {
		return &ConversionError{Value: v, Target: TypeJSON, Err: err}
	}
	return nil
}

// GetConfigMap returns every configuration of environmentID, each value
// conditionally decrypted. The returned map is the caller's to modify.
func (r *Resolver) GetConfigMap(ctx context.Context, environmentID string) (map[string]string, error) {
	ck := ConfigMapCacheKey(environmentID)
	if v, ok := r.lookup(ctx, NamespaceConfigMap, ck); ok {
		if m, ok := v.(mapValue); ok {
			return maps.Clone(map[string]string(m)), nil
		}
	}

	start := time.Now()
	raw, err := r.backend.FetchConfigMap(ctx, environmentID)
	r.metrics.fetchDone(ctx, "config_map", start, err)
	if err != nil {
		return nil, err
	}
	out, err := r.decryptConfigs(ctx, raw)
	if err != nil {
		return nil, err
	}
	r.store(ck, mapValue(out))
	return maps.Clone(out), nil
}

// GetSecret returns one decrypted secret. It fails with ErrConfiguration,
// before any fetch, when no encryption key is configured, and with
// ErrSecretNotFound when the application has no such key.
func (r *Resolver) GetSecret(ctx context.Context, applicationID, environmentID, key string) (string, error) {
	if err := r.ensureCrypto(); err != nil {
		return "", err
	}
	ck := SecretCacheKey(applicationID, environmentID, key)
	if v, ok := r.lookup(ctx, NamespaceSecret, ck); ok {
		if s, ok := v.(stringValue); ok {
			return string(s), nil
		}
	}

	start := time.Now()
	raw, err := r.backend.FetchSecretMap(ctx, applicationID, environmentID)
	r.metrics.fetchDone(ctx, "secret_map", start, err)
	if err != nil {
		return "", err
	}
	enc, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("%w: %q for application %q in environment %q", ErrSecretNotFound, key, applicationID, environmentID)
	}
	pt, err := r.decrypt(ctx, enc)
	if err != nil {
		r.log.Warn("secret decryption failed",
			"application_id", applicationID,
			"environment_id", environmentID,
			"key", key,
		)
		return "", fmt.Errorf("secret %q: %w", key, err)
	}
	r.store(ck, stringValue(pt))
	return pt, nil
}

// GetSecretMap returns every secret of the application in environmentID,
// decrypted. Each entry is attempted; if any fail the result is a
// *SecretMapError naming all of them and nothing is cached.
func (r *Resolver) GetSecretMap(ctx context.Context, applicationID, environmentID string) (map[string]string, error) {
	if err := r.ensureCrypto(); err != nil {
		return nil, err
	}
	ck := SecretMapCacheKey(applicationID, environmentID)
	if v, ok := r.lookup(ctx, NamespaceSecretMap, ck); ok {
		if m, ok := v.(mapValue); ok {
			return maps.Clone(map[string]string(m)), nil
		}
	}

	start := time.Now()
	raw, err := r.backend.FetchSecretMap(ctx, applicationID, environmentID)
	r.metrics.fetchDone(ctx, "secret_map", start, err)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(raw))
	var (
		failed []string
		errs   []error
	)
	for _, k := range slices.Sorted(maps.Keys(raw)) {
		pt, err := r.decrypt(ctx, raw[k])
		if err != nil {
			failed = append(failed, k)
			errs = append(errs, err)
			continue
		}
		out[k] = pt
	}
	if len(failed) > 0 {
		r.log.Warn("secret map decryption failed",
			"application_id", applicationID,
			"environment_id", environmentID,
			"failed_keys", failed,
			"total", len(raw),
		)
		return nil, &SecretMapError{FailedKeys: failed, Total: len(raw), Errs: errs}
	}
	r.store(ck, mapValue(out))
	return maps.Clone(out), nil
}

// EvaluateFeatureFlag evaluates flagKey for userID. Results are cached per
// (flagKey, userID): a cached evaluation is returned even when attributes
// differ from the call that produced it.
func (r *Resolver) EvaluateFeatureFlag(ctx context.Context, flagKey, userID string, attributes map[string]any) (*FeatureFlagEvaluation, error) {
	ck := FlagCacheKey(flagKey, userID)
	if v, ok := r.lookup(ctx, NamespaceFlag, ck); ok {
		if ev, ok := v.(*FeatureFlagEvaluation); ok {
			return ev.clone(), nil
		}
	}

	start := time.Now()
	ev, err := r.backend.EvaluateFlag(ctx, EvaluationRequest{FlagKey: flagKey, UserID: userID, Attributes: attributes})
	r.metrics.fetchDone(ctx, "flag", start, err)
	if err != nil {
		return nil, err
	}
	r.store(ck, ev.clone())
	return ev.clone(), nil
}

func (r *Resolver) IsFeatureEnabled(ctx context.Context, flagKey, userID string) (bool, error) {
	return r.IsFeatureEnabledWithAttributes(ctx, flagKey, userID, map[string]any{})
}

func (r *Resolver) IsFeatureEnabledWithAttributes(ctx context.Context, flagKey, userID string, attributes map[string]any) (bool, error) {
	ev, err := r.EvaluateFeatureFlag(ctx, flagKey, userID, attributes)
	if err != nil {
		return false, err
	}
	return ev.Enabled, nil
}

// InvalidateCache drops one cache entry. Build key with the *CacheKey
// helpers.
func (r *Resolver) InvalidateCache(key string) {
	if r.cache != nil {
		r.cache.Invalidate(key)
	}
}

func (r *Resolver) ClearCache() {
	if r.cache != nil {
		r.cache.InvalidateAll()
	}
}

// CacheSize counts resident entries, including expired ones not yet read.
func (r *Resolver) CacheSize() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

func (r *Resolver) IsCryptoEnabled() bool { return r.box != nil }

// EncryptionKeyHash returns the key fingerprint, or false when no key is
// configured.
func (r *Resolver) EncryptionKeyHash() (string, bool) {
	if r.box == nil {
		return "", false
	}
	return r.box.KeyFingerprint(), true
}

// Encrypt produces a payload the service and other Resolvers holding the
// same key can decrypt.
func (r *Resolver) Encrypt(plaintext string) (string, error) {
	if err := r.ensureCrypto(); err != nil {
		return "", err
	}
	return r.box.Encrypt(plaintext)
}

func (r *Resolver) lookup(ctx context.Context, namespace, key string) (cachedValue, bool) {
	if r.cache == nil {
		return nil, false
	}
	v, ok := r.cache.Get(key)
	r.metrics.cacheLookup(ctx, namespace, ok)
	return v, ok
}

func (r *Resolver) store(key string, v cachedValue) {
	if r.cache != nil {
		r.cache.Set(key, v)
	}
}

func (r *Resolver) ensureCrypto() error {
	if r.box == nil {
		return configErrorf("secrets require an encryption key; %s", keyHint)
	}
	return nil
}

// decryptIfNeeded leaves value untouched unless it looks encrypted and a
// key is configured.
func (r *Resolver) decryptIfNeeded(ctx context.Context, value string) (string, error) {
	if value == "" || r.box == nil || !LooksEncrypted(value) {
		return value, nil
	}
	return r.decrypt(ctx, value)
}

func (r *Resolver) decrypt(ctx context.Context, value string) (string, error) {
	pt, err := r.box.Decrypt(value)
	r.metrics.decryptDone(ctx, err)
	return pt, err
}

// decryptConfigs conditionally decrypts every value of raw, stopping at the
// first failure in key order.
func (r *Resolver) decryptConfigs(ctx context.Context, raw map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, k := range slices.Sorted(maps.Keys(raw)) {
		v, err := r.decryptIfNeeded(ctx, raw[k])
		if err != nil {
			return nil, fmt.Errorf("configuration %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func convert(v string, t ValueType) (any, error) {
	switch t {
	case TypeString, "":
		return v, nil
	case TypeNumber:
		return parseNumber(v)
	case TypeBoolean:
		return strings.EqualFold(v, "true"), nil
	case TypeJSON:
		var out any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, &ConversionError{Value: v, Target: TypeJSON, Err: err}
		}
		return out, nil
	default:
		return nil, configErrorf("unknown value type %q", t)
	}
}

func parseNumber(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, &ConversionError{Value: v, Target: TypeNumber, Err: err}
	}
	if math.IsNaN(f) {
		return 0, &ConversionError{Value: v, Target: TypeNumber}
	}
	return f, nil
}
