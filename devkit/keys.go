package devkit

import (
	"net/url"
	"strings"
)

// Cache key namespaces. Every key a Resolver writes starts with one of
// these followed by ':'.
const (
	NamespaceConfig    = "config"
	NamespaceConfigMap = "config_map"
	NamespaceSecret    = "secret"
	NamespaceSecretMap = "secret_map"
	NamespaceFlag      = "flag"
)

// makeKey joins namespace and segments with ':'. Segments are query-escaped
// so a ':' inside an identifier cannot shift the boundaries between
// segments; identifiers made only of [A-Za-z0-9._~-] come out unchanged.
func makeKey(namespace string, segments ...string) string {
	var sb strings.Builder
	sb.WriteString(namespace)
	for _, s := range segments {
		sb.WriteByte(':')
		sb.WriteString(url.QueryEscape(s))
	}
	return sb.String()
}

// ConfigCacheKey: config:<environmentID>:<key>
func ConfigCacheKey(environmentID, key string) string {
	return makeKey(NamespaceConfig, environmentID, key)
}

// ConfigMapCacheKey: config_map:<environmentID>
func ConfigMapCacheKey(environmentID string) string {
	return makeKey(NamespaceConfigMap, environmentID)
}

// SecretCacheKey: secret:<applicationID>:<environmentID>:<key>
func SecretCacheKey(applicationID, environmentID, key string) string {
	return makeKey(NamespaceSecret, applicationID, environmentID, key)
}

// SecretMapCacheKey: secret_map:<applicationID>:<environmentID>
func SecretMapCacheKey(applicationID, environmentID string) string {
	return makeKey(NamespaceSecretMap, applicationID, environmentID)
}

// FlagCacheKey: flag:<flagKey>:<userID>. Targeting attributes are not part
// of the key.
func FlagCacheKey(flagKey, userID string) string {
	return makeKey(NamespaceFlag, flagKey, userID)
}
