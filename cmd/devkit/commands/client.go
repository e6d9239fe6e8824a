package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.opentelemetry.io/otel/metric"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

// ClientSettings are the global flags that shape the Resolver.
type ClientSettings struct {
	Profile       string
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	NoCache       bool
	EncryptionKey string

	KMSWrappedKey   string
	KMSKeyID        string
	SSMKeyParameter string
	DatabaseDSN     string
}

// BuildOptions layers settings over the environment over the saved profile.
// AWS clients are only created when a KMS or SSM key source is requested.
func BuildOptions(ctx context.Context, s ClientSettings, store *ProfileStore, logger *slog.Logger, mp metric.MeterProvider) (devkit.Options, error) {
	opts := devkit.OptionsFromEnv()
	opts.Logger = logger
	opts.MeterProvider = mp

	if store != nil {
		name := s.Profile
		if name == "" {
			name = DefaultProfile
		}
		p, ok, err := store.Get(name)
		if err != nil {
			return opts, err
		}
		if !ok && s.Profile != "" {
			return opts, fmt.Errorf("profile %q not found; run 'devkit login --profile %s'", name, name)
		}
		if ok {
			if opts.APIKey == "" {
				opts.APIKey = p.APIKey
			}
			if os.Getenv("DEVKIT_BASE_URL") == "" && p.BaseURL != "" {
				opts.BaseURL = p.BaseURL
			}
		}
	}

	if s.APIKey != "" {
		opts.APIKey = s.APIKey
	}
	if s.BaseURL != "" {
		opts.BaseURL = s.BaseURL
	}
	if s.Timeout > 0 {
		opts.Timeout = s.Timeout
	}
	if s.NoCache {
		opts.EnableCache = devkit.Bool(false)
	}
	opts.EncryptionKey = s.EncryptionKey

	if s.DatabaseDSN != "" {
		replica, err := devkit.NewPostgresStore(s.DatabaseDSN)
		if err != nil {
			return opts, fmt.Errorf("failed to open replica database: %w", err)
		}
		opts.Backend = replica
	}

	switch {
	case s.KMSWrappedKey != "" && s.SSMKeyParameter != "":
		return opts, fmt.Errorf("--kms-wrapped-key and --ssm-key-parameter are mutually exclusive")
	case s.KMSWrappedKey != "":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return opts, fmt.Errorf("failed to load AWS config: %w", err)
		}
		opts.KeySource = &devkit.KMSKeySource{
			KMS:        kms.NewFromConfig(awsCfg),
			WrappedKey: s.KMSWrappedKey,
			KeyID:      s.KMSKeyID,
		}
	case s.SSMKeyParameter != "":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return opts, fmt.Errorf("failed to load AWS config: %w", err)
		}
		opts.KeySource = &devkit.SSMKeySource{
			SSM:  ssm.NewFromConfig(awsCfg),
			Name: s.SSMKeyParameter,
		}
	}
	return opts, nil
}
