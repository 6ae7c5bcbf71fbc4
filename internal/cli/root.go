// Package cli implements the ipintel command line.
package cli

import (
	"context"
	"fmt"

	"github.com/Sternrassler/ipintel-client/internal/config"
	"github.com/Sternrassler/ipintel-client/pkg/batch"
	"github.com/Sternrassler/ipintel-client/pkg/cache"
	"github.com/Sternrassler/ipintel-client/pkg/client"
	"github.com/Sternrassler/ipintel-client/pkg/credential"
	"github.com/Sternrassler/ipintel-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewRoot builds the ipintel command tree.
func NewRoot(version string) *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "ipintel",
		Short:         "ipintel: batch IP lookups against the Criminal IP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("ipintel {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "Criminal IP API key (overrides "+credential.EnvAPIKey+" and the key store)")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "API base URL")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error|disabled")
	cmd.PersistentFlags().StringVar(&opts.redisAddr, "redis", "", "Redis address for the report cache (empty disables caching)")

	cmd.AddCommand(newLookupCmd(opts))
	cmd.AddCommand(newKeyCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

type globalOptions struct {
	configPath string
	apiKey     string
	baseURL    string
	logLevel   string
	redisAddr  string
}

// load reads the config file and environment, applies flag overrides and
// configures logging.
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.baseURL != "" {
		cfg.API.BaseURL = o.baseURL
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.redisAddr != "" {
		cfg.Cache.RedisAddr = o.redisAddr
	}

	logging.Setup(cfg.LoggingConfig())
	return cfg, nil
}

// engine is the wired lookup stack shared by lookup and serve.
type engine struct {
	factory     batch.LookuperFactory
	coordinator *batch.Coordinator
	credentials credential.Provider
	close       func() error
}

// newEngine wires the API client, the optional Redis cache and the batch
// coordinator from cfg.
func newEngine(ctx context.Context, cfg *config.Config, apiKeyFlag string) (*engine, error) {
	logger := logging.NewLogger("cli")
	factory := batch.ClientFactory(cfg.ClientConfig(""))
	closer := func() error { return nil }

	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		manager := cache.NewManager(rdb)
		if err := manager.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Report cache unavailable, continuing without it")
			_ = rdb.Close()
		} else {
			direct := factory
			factory = func(apiKey string) (client.Lookuper, error) {
				l, err := direct(apiKey)
				if err != nil {
					return nil, err
				}
				return cache.NewLookuper(l, manager, cfg.Cache.TTL), nil
			}
			closer = rdb.Close
			logger.Info().Str("addr", cfg.Cache.RedisAddr).Dur("ttl", cfg.Cache.TTL).Msg("Report cache enabled")
		}
	}

	credentials := cfg.CredentialProvider(apiKeyFlag)
	executor := batch.NewExecutor(factory, cfg.ExecutorConfig())

	return &engine{
		factory:     factory,
		coordinator: batch.NewCoordinator(executor, credentials),
		credentials: credentials,
		close:       closer,
	}, nil
}

func (e *engine) Close() error {
	e.coordinator.Shutdown()
	if err := e.close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}
