package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

func main() {
	ctx := context.Background()

	opts := devkit.OptionsFromEnv()
	opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

	// The data key is stored wrapped by KMS; DEVKIT_ENCRYPTION_KEY is only
	// consulted when no wrapped key is provided.
	if wrapped := os.Getenv("DEVKIT_KMS_WRAPPED_KEY"); wrapped != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			panic(err)
		}
		opts.KeySource = &devkit.KMSKeySource{
			KMS:        kms.NewFromConfig(awsCfg),
			WrappedKey: wrapped,
			KeyID:      os.Getenv("DEVKIT_KMS_KEY_ID"),
		}
	}

	client, err := devkit.New(ctx, opts)
	if err != nil {
		panic(err)
	}

	timeout, err := client.GetConfigNumber(ctx, "production", "http.timeout_seconds")
	if err != nil {
		panic(err)
	}
	fmt.Println("timeout:", timeout)

	if client.IsCryptoEnabled() {
		pw, err := client.GetSecret(ctx, "billing", "production", "DB_PASSWORD")
		if err != nil {
			panic(err)
		}
		fmt.Println("db password length:", len(pw))
	}

	on, err := client.IsFeatureEnabled(ctx, "new-checkout", "user-42")
	if err != nil {
		panic(err)
	}
	fmt.Println("new-checkout:", on)
}
