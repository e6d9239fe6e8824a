// Package devkit is a client for the DevKit configuration service. It
// resolves configuration values, secrets and feature-flag evaluations,
// decrypts AES-256-GCM payloads client-side and keeps the results in a
// TTL cache.
//
//	r, err := devkit.New(ctx, devkit.OptionsFromEnv())
//	if err != nil { ... }
//	pw, err := r.GetSecret(ctx, "billing", "production", "DB_PASSWORD")
package devkit
