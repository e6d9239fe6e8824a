package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/grasp-labs/ds-devkit-go-sdk/cmd/devkit/commands"
	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "Saved profile to use (see 'devkit login')"},
		&cli.StringFlag{Name: "api-key", Usage: "API key (overrides DEVKIT_API_KEY and the profile)"},
		&cli.StringFlag{Name: "base-url", Usage: "DevKit service URL (overrides DEVKIT_BASE_URL and the profile)"},
		&cli.DurationFlag{Name: "timeout", Usage: "Per-request timeout"},
		&cli.BoolFlag{Name: "no-cache", Usage: "Disable the in-memory cache"},
		&cli.StringFlag{Name: "encryption-key", Usage: "Base64 256-bit key (default DEVKIT_ENCRYPTION_KEY)"},
		&cli.StringFlag{Name: "kms-wrapped-key", Usage: "Base64 KMS-wrapped data key to unwrap at startup"},
		&cli.StringFlag{Name: "kms-key-id", Usage: "KMS key ID or ARN for --kms-wrapped-key"},
		&cli.StringFlag{Name: "ssm-key-parameter", Usage: "SSM SecureString parameter holding the key"},
		&cli.StringFlag{Name: "database-dsn", Usage: "Read from a PostgreSQL replica instead of the API", Sources: cli.EnvVars("DEVKIT_DATABASE_DSN")},
		&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: commands.FormatText, Usage: "Output format: 'text' or 'json'"},
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func settings(cmd *cli.Command) commands.ClientSettings {
	root := cmd.Root()
	return commands.ClientSettings{
		Profile:         root.String("profile"),
		APIKey:          root.String("api-key"),
		BaseURL:         root.String("base-url"),
		Timeout:         root.Duration("timeout"),
		NoCache:         root.Bool("no-cache"),
		EncryptionKey:   root.String("encryption-key"),
		KMSWrappedKey:   root.String("kms-wrapped-key"),
		KMSKeyID:        root.String("kms-key-id"),
		SSMKeyParameter: root.String("ssm-key-parameter"),
		DatabaseDSN:     root.String("database-dsn"),
	}
}

func format(cmd *cli.Command) string { return cmd.Root().String("format") }

func logger(cmd *cli.Command) *slog.Logger { return newLogger(cmd.Root().String("log-level")) }

func resolver(ctx context.Context, cmd *cli.Command, mp metric.MeterProvider) (*devkit.Resolver, error) {
	store, err := commands.DefaultProfileStore()
	if err != nil {
		return nil, err
	}
	opts, err := commands.BuildOptions(ctx, settings(cmd), store, logger(cmd), mp)
	if err != nil {
		return nil, err
	}
	return devkit.New(ctx, opts)
}

// withResolver adapts a command body that only needs a Resolver.
func withResolver(fn func(ctx context.Context, cmd *cli.Command, r *devkit.Resolver) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		r, err := resolver(ctx, cmd, nil)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, r)
	}
}

func arg(cmd *cli.Command, i int, name string) (string, error) {
	v := cmd.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("missing argument <%s>", name)
	}
	return v, nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Save an API key as a profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Required: true, Usage: "API key"},
			&cli.StringFlag{Name: "url", Usage: "DevKit service URL"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := commands.DefaultProfileStore()
			if err != nil {
				return err
			}
			return commands.RunLogin(store, os.Stdout, cmd.Root().String("profile"), cmd.String("key"), cmd.String("url"))
		},
	}
}

func profilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "profiles",
		Usage: "List saved profiles",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := commands.DefaultProfileStore()
			if err != nil {
				return err
			}
			return commands.RunProfiles(store, os.Stdout)
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Read configuration values",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print one configuration value",
				ArgsUsage: "<environment> <key>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(devkit.TypeString), Usage: "STRING, NUMBER, BOOLEAN or JSON"},
				},
				Action: withResolver(func(ctx context.Context, cmd *cli.Command, r *devkit.Resolver) error {
					env, err := arg(cmd, 0, "environment")
					if err != nil {
						return err
					}
					key, err := arg(cmd, 1, "key")
					if err != nil {
						return err
					}
					return commands.RunConfigGet(ctx, r, os.Stdout, env, key, strings.ToUpper(cmd.String("type")), format(cmd))
				}),
			},
			{
				Name:      "list",
				Usage:     "Print every configuration of an environment",
				ArgsUsage: "<environment>",
				Action: withResolver(func(ctx context.Context, cmd *cli.Command, r *devkit.Resolver) error {
					env, err := arg(cmd, 0, "environment")
					if err != nil {
						return err
					}
					return commands.RunConfigList(ctx, r, os.Stdout, env, format(cmd))
				}),
			},
		},
	}
}

func secretsCommand() *cli.Command {
	reveal := &cli.BoolFlag{Name: "reveal", Usage: "Print secret values instead of a mask"}
	return &cli.Command{
		Name:  "secrets",
		Usage: "Read and decrypt secrets",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print one secret",
				ArgsUsage: "<application> <environment> <key>",
				Flags:     []cli.Flag{reveal},
				Action: withResolver(func(ctx context.Context, cmd *cli.Command, r *devkit.Resolver) error {
					app, err := arg(cmd, 0, "application")
					if err != nil {
						return err
					}
					env, err := arg(cmd, 1, "environment")
					if err != nil {
						return err
					}
					key, err := arg(cmd, 2, "key")
					if err != nil {
						return err
					}
					return commands.RunSecretGet(ctx, r, os.Stdout, app, env, key, cmd.Bool("reveal"), format(cmd))
				}),
			},
			{
				Name:      "list",
				Usage:     "Print every secret of an application",
				ArgsUsage: "<application> <environment>",
				Flags:     []cli.Flag{reveal},
				Action: withResolver(func(ctx context.Context, cmd *cli.Command, r *devkit.Resolver) error {
					app, err := arg(cmd, 0, "application")
					if err != nil {
						return err
					}
					env, err := arg(cmd, 1, "environment")
					if err != nil {
						return err
					}
					return commands.RunSecretList(ctx, r, os.Stdout, app, env, cmd.Bool("reveal"), format(cmd))
				}),
			},
		},
	}
}

func flagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "flags",
		Usage: "Evaluate feature flags",
		Commands: []*cli.Command{
			{
				Name:      "eval",
				Usage:     "Evaluate a flag for a user",
				ArgsUsage: "<flag> <user>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "attributes", Aliases: []string{"a"}, Usage: "JSON object of targeting attributes"},
				},
				Action: withResolver(func(ctx context.Context, cmd *cli.Command, r *devkit.Resolver) error {
					flag, err := arg(cmd, 0, "flag")
					if err != nil {
						return err
					}
					user, err := arg(cmd, 1, "user")
					if err != nil {
						return err
					}
					return commands.RunFlagEval(ctx, r, os.Stdout, flag, user, cmd.String("attributes"), format(cmd))
				}),
			},
		},
	}
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a new Base64 256-bit encryption key",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return commands.RunKeygen(os.Stdout)
		},
	}
}

func keyHashCommand() *cli.Command {
	return &cli.Command{
		Name:  "key-hash",
		Usage: "Print the SHA-256 fingerprint of the configured encryption key",
		Action: withResolver(func(ctx context.Context, cmd *cli.Command, r *devkit.Resolver) error {
			return commands.RunKeyHash(r, os.Stdout)
		}),
	}
}

func encryptCommand() *cli.Command {
	return &cli.Command{
		Name:      "encrypt",
		Usage:     "Encrypt a value with the configured key",
		ArgsUsage: "<plaintext>",
		Action: withResolver(func(ctx context.Context, cmd *cli.Command, r *devkit.Resolver) error {
			pt, err := arg(cmd, 0, "plaintext")
			if err != nil {
				return err
			}
			return commands.RunEncrypt(r, os.Stdout, pt)
		}),
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Print configuration changes as they happen",
		ArgsUsage: "<environment>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "interval", Value: devkit.DefaultWatchInterval, Usage: "Poll interval"},
			&cli.DurationFlag{Name: "poll-wait", Value: devkit.DefaultPollWait, Usage: "How long the service may hold a poll open"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address (e.g. :9090)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := arg(cmd, 0, "environment")
			if err != nil {
				return err
			}
			log := logger(cmd)

			var mp metric.MeterProvider
			var provider *commands.MetricsProvider
			if addr := cmd.String("metrics-addr"); addr != "" {
				provider, err = commands.NewMetricsProvider()
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = provider.Shutdown(shutdownCtx)
				}()
				mp = provider.MeterProvider()
			}

			r, err := resolver(ctx, cmd, mp)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			if provider != nil {
				g.Go(func() error {
					return commands.ServeMetrics(ctx, cmd.String("metrics-addr"), provider.Handler(), log)
				})
			}
			g.Go(func() error {
				return commands.RunWatch(ctx, r, os.Stdout, log, env, cmd.Duration("interval"), cmd.Duration("poll-wait"))
			})
			return g.Wait()
		},
	}
}
