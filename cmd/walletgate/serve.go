package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/walletgate/adapters/events"
	"github.com/layer-3/walletgate/adapters/identity"
	"github.com/layer-3/walletgate/adapters/store"
	"github.com/layer-3/walletgate/adapters/tokenizer"
	"github.com/layer-3/walletgate/adapters/verifier"
	"github.com/layer-3/walletgate/config"
	"github.com/layer-3/walletgate/internal/eth"
	"github.com/layer-3/walletgate/internal/logging"
	"github.com/layer-3/walletgate/internal/metrics"
	"github.com/layer-3/walletgate/ports"
	"github.com/layer-3/walletgate/service"
	transport "github.com/layer-3/walletgate/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServe() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.LogLevel, cfg.LogPretty); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	tk, err := tokenizer.NewJWTTokenizer([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}

	var (
		revocations ports.Store
		ledger      ports.NonceLedger
		publisher   message.Publisher
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			logging.NewWatermillLogger(log.Logger),
		)
		if err != nil {
			return fmt.Errorf("failed to create redis publisher: %w", err)
		}

		redisStore := store.NewRedisStore(redisClient)
		revocations, ledger = redisStore, redisStore
	} else {
		log.Warn().Msg("WALLETGATE_REDIS_URL not set, nonces and revocations are kept in memory")
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logging.NewWatermillLogger(log.Logger))

		memStore := store.NewMemoryStore()
		revocations, ledger = memStore, memStore
	}
	defer publisher.Close()

	var identities ports.IdentityStore
	if cfg.DBPath != "" {
		sqliteStore, err := identity.OpenSQLiteStore(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer sqliteStore.Close()
		identities = sqliteStore
	} else {
		log.Warn().Msg("WALLETGATE_DB_PATH not set, identities are kept in memory")
		identities = identity.NewMemoryStore()
	}

	verifierOpts := domainOptions(cfg.AllowedDomains)
	if cfg.EthRPCURL != "" {
		rpc, err := ethclient.DialContext(ctx, cfg.EthRPCURL)
		if err != nil {
			return fmt.Errorf("failed to dial ethereum rpc: %w", err)
		}
		defer rpc.Close()

		checker, err := eth.NewERC1271Checker(rpc)
		if err != nil {
			return err
		}
		verifierOpts = append(verifierOpts, verifier.WithContractWallets(checker))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authService := service.NewAuthService(
		tk,
		verifier.NewSiweVerifier(verifierOpts...),
		ledger,
		revocations,
		identities,
		events.NewWatermillPublisher(publisher),
		service.WithTTLs(cfg.NonceTTL, cfg.SessionTTL),
		service.WithMetrics(metrics.NewAuth(reg)),
	)

	router, err := transport.SetupRouter(authService, transport.RouterConfig{
		Cookies:        cfg.Cookie,
		SessionTTL:     cfg.SessionTTL,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		TrustedProxies: cfg.TrustedProxies,
		Gatherer:       reg,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func domainOptions(domains []string) []verifier.Option {
	if len(domains) == 0 {
		log.Warn().Msg("WALLETGATE_SIWE_DOMAINS not set, messages signed for any domain are accepted")
	}
	return []verifier.Option{verifier.WithAllowedDomains(domains...)}
}
