package devkit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var validTable = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// ConfigurationRecord is a row of the DevKit configurations table.
type ConfigurationRecord struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Key            string    `gorm:"column:key"`
	Value          string    `gorm:"column:value"`
	EncryptedValue *string   `gorm:"column:encrypted_value"`
	Type           ValueType `gorm:"column:type"`
	Description    *string   `gorm:"column:description"`
	IsSecret       bool      `gorm:"column:is_secret"`
	EnvironmentID  string    `gorm:"column:environment_id"`
	TenantID       *int64    `gorm:"column:tenant_id"`
	VersionNumber  int       `gorm:"column:config_version"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

// SecretRecord is a row of the DevKit secrets table. EncryptedValue is the
// client-decryptable payload.
type SecretRecord struct {
	ID               string     `gorm:"column:id;primaryKey"`
	Key              string     `gorm:"column:key"`
	EncryptedValue   string     `gorm:"column:encrypted_value"`
	Description      *string    `gorm:"column:description"`
	ApplicationID    string     `gorm:"column:application_id"`
	EnvironmentID    *string    `gorm:"column:environment_id"`
	RotationPolicy   string     `gorm:"column:rotation_policy"`
	LastRotationDate *time.Time `gorm:"column:last_rotation_date"`
	NextRotationDate *time.Time `gorm:"column:next_rotation_date"`
	IsActive         bool       `gorm:"column:is_active"`
	VersionNumber    int        `gorm:"column:secret_version"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

// StoreTables names the tables a GormStore reads.
type StoreTables struct {
	Configurations string
	Secrets        string
}

// DefaultStoreTables matches the DevKit server schema.
var DefaultStoreTables = StoreTables{Configurations: "configurations", Secrets: "secrets"}

// GormStore is a read-only Backend over a replica of the DevKit database.
// It returns the same raw values the REST API would, so decryption still
// happens client-side in the Resolver. Flag evaluation and long polling
// need the service and return ErrUnsupported.
type GormStore struct {
	db     *gorm.DB
	tables StoreTables
}

// NewPostgresStore opens a GormStore on a PostgreSQL DSN with the default
// table names.
func NewPostgresStore(dsn string) (*GormStore, error) {
	return NewGormStore(postgres.Open(dsn), DefaultStoreTables)
}

// NewGormStore opens a GormStore with any gorm dialector.
func NewGormStore(dialector gorm.Dialector, tables StoreTables) (*GormStore, error) {
	for _, name := range []string{tables.Configurations, tables.Secrets} {
		if !validTable.MatchString(name) {
			return nil, fmt.Errorf("invalid table name: %q", name)
		}
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, tables: tables}, nil
}

// SetDB swaps the underlying handle, e.g. to share a pool.
func (s *GormStore) SetDB(db *gorm.DB) { s.db = db }

func (s *GormStore) FetchConfig(ctx context.Context, environmentID, key string) (*Configuration, error) {
	var rec ConfigurationRecord
	err := s.db.WithContext(ctx).
		Table(s.tables.Configurations).
		Where("environment_id = ? AND key = ?", environmentID, key).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q in environment %q", ErrConfigNotFound, key, environmentID)
		}
		return nil, fmt.Errorf("query configuration: %w", err)
	}
	return rec.toConfiguration(), nil
}

func (s *GormStore) FetchConfigMap(ctx context.Context, environmentID string) (map[string]string, error) {
	var recs []ConfigurationRecord
	err := s.db.WithContext(ctx).
		Table(s.tables.Configurations).
		Where("environment_id = ?", environmentID).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query configurations: %w", err)
	}
	m := make(map[string]string, len(recs))
	for _, r := range recs {
		m[r.Key] = r.Value
	}
	return m, nil
}

func (s *GormStore) FetchSecretMap(ctx context.Context, applicationID, environmentID string) (map[string]string, error) {
	var recs []SecretRecord
	err := s.db.WithContext(ctx).
		Table(s.tables.Secrets).
		Where("application_id = ? AND environment_id = ? AND is_active = ?", applicationID, environmentID, true).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query secrets: %w", err)
	}
	m := make(map[string]string, len(recs))
	for _, r := range recs {
		m[r.Key] = r.EncryptedValue
	}
	return m, nil
}

func (s *GormStore) EvaluateFlag(context.Context, EvaluationRequest) (*FeatureFlagEvaluation, error) {
	return nil, fmt.Errorf("%w: feature flag evaluation requires the DevKit service", ErrUnsupported)
}

func (s *GormStore) PollConfigs(context.Context, string, int64, time.Duration) (*PollResponse, error) {
	return nil, fmt.Errorf("%w: configuration polling requires the DevKit service", ErrUnsupported)
}

func (r *ConfigurationRecord) toConfiguration() *Configuration {
	c := &Configuration{
		ID:            r.ID,
		Key:           r.Key,
		Value:         r.Value,
		Type:          r.Type,
		Description:   r.Description,
		EnvironmentID: r.EnvironmentID,
		VersionNumber: r.VersionNumber,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.EncryptedValue != nil {
		c.EncryptedValue = *r.EncryptedValue
	}
	return c
}
