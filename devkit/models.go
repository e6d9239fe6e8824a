package devkit

import "time"

// ValueType is the upstream type tag of a configuration value, and the
// target of GetConfigAs conversions.
type ValueType string

const (
	TypeString  ValueType = "STRING"
	TypeNumber  ValueType = "NUMBER"
	TypeBoolean ValueType = "BOOLEAN"
	TypeJSON    ValueType = "JSON"
)

func (t ValueType) String() string { return string(t) }

// Configuration is the record returned by
// GET /api/v1/configurations/environment/{env}/key/{key}.
// Value may be ciphertext when the configuration is stored encrypted.
type Configuration struct {
	ID             string    `json:"id"`
	Key            string    `json:"key"`
	Value          string    `json:"value"`
	EncryptedValue string    `json:"encryptedValue,omitempty"`
	Type           ValueType `json:"type"`
	Description    *string   `json:"description"`
	EnvironmentID  string    `json:"environmentId"`
	VersionNumber  int       `json:"versionNumber"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// FeatureFlagEvaluation is the service's verdict for one flag and user.
// It is cached as-is and must be treated as immutable.
type FeatureFlagEvaluation struct {
	Enabled    bool    `json:"enabled"`
	VariantKey *string `json:"variantKey"`
	Reason     string  `json:"reason"`
}

func (e *FeatureFlagEvaluation) clone() *FeatureFlagEvaluation {
	cp := *e
	if e.VariantKey != nil {
		v := *e.VariantKey
		cp.VariantKey = &v
	}
	return &cp
}

// Variant returns the variant key, or "" when the service sent none.
func (e *FeatureFlagEvaluation) Variant() string {
	if e == nil || e.VariantKey == nil {
		return ""
	}
	return *e.VariantKey
}

// EvaluationRequest is the body of POST /api/v1/feature-flags/evaluate.
type EvaluationRequest struct {
	FlagKey    string         `json:"flagKey"`
	UserID     string         `json:"userId"`
	Attributes map[string]any `json:"attributes"`
}

// PollResponse is returned by the configuration long-poll endpoint.
// LastUpdate is in Unix milliseconds.
type PollResponse struct {
	HasUpdates     bool              `json:"hasUpdates"`
	Configurations map[string]string `json:"configurations"`
	LastUpdate     int64             `json:"lastUpdate"`
}
