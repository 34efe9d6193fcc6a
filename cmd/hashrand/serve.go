package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/ghodss/yaml"
	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/arkaitz-dev/hashrand-sub000/internal/config"
	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/magiclink"
	"github.com/arkaitz-dev/hashrand-sub000/internal/ratelimit"
	"github.com/arkaitz-dev/hashrand-sub000/internal/sharedsecret"
	"github.com/arkaitz-dev/hashrand-sub000/pkg/log"
	"github.com/arkaitz-dev/hashrand-sub000/server"
	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

type serveOptions struct {
	config string

	webHTTPAddr   string
	webHTTPSAddr  string
	telemetryAddr string
}

func commandServe() *cobra.Command {
	options := serveOptions{}

	cmd := &cobra.Command{
		Use:     "serve [flags] [config file]",
		Short:   "Launch the hashrand authentication backend",
		Example: "hashrand serve config.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			options.config = args[0]
			return runServe(options)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.webHTTPAddr, "web-http-addr", "", "Web HTTP address")
	flags.StringVar(&options.webHTTPSAddr, "web-https-addr", "", "Web HTTPS address")
	flags.StringVar(&options.telemetryAddr, "telemetry-addr", "", "Telemetry address")

	return cmd
}

func applyConfigOverrides(options serveOptions, c *config.Config) {
	if options.webHTTPAddr != "" {
		c.Web.HTTP = options.webHTTPAddr
	}
	if options.webHTTPSAddr != "" {
		c.Web.HTTPS = options.webHTTPSAddr
	}
	if options.telemetryAddr != "" {
		c.Telemetry.Addr = options.telemetryAddr
	}
}

// serverRunner runs one http.Server to completion and shuts it down
// gracefully on cancellation, the same run.Group actor cmd/dex/serve.go
// builds per listener.
type serverRunner struct {
	name string
	srv  *http.Server

	tlsCrt string
	tlsKey string

	logger log.Logger
}

func newServerRunner(name string, srv *http.Server, logger log.Logger) *serverRunner {
	return &serverRunner{name: name, srv: srv, logger: logger}
}

func (s *serverRunner) WithTLS(crt, key string) *serverRunner {
	s.tlsCrt = crt
	s.tlsKey = key
	return s
}

func (s *serverRunner) run(listener net.Listener) error {
	if s.tlsCrt != "" && s.tlsKey != "" {
		return s.srv.ServeTLS(listener, s.tlsCrt, s.tlsKey)
	}
	return s.srv.Serve(listener)
}

func (s *serverRunner) RunAndShutdownGracefully(gr *run.Group) error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening (%s) on %s: %v", s.name, s.srv.Addr, err)
	}

	gr.Add(func() error {
		s.logger.Infof("listening (%s) on %s", s.name, s.srv.Addr)
		return s.run(listener)
	}, func(err error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		s.logger.Debugf("starting graceful shutdown (%s)", s.name)
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Errorf("graceful shutdown (%s): %v", s.name, err)
		}
	})
	return nil
}

func runServe(options serveOptions) error {
	configData, err := os.ReadFile(options.config)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %v", options.config, err)
	}

	var c config.Config
	if err := yaml.Unmarshal(configData, &c); err != nil {
		return fmt.Errorf("error parse config file %s: %v", options.config, err)
	}
	applyConfigOverrides(options, &c)

	if err := c.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(c.Logger)
	if err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}
	logger.Infof("config issuer: %s", c.Issuer)
	logger.Infof("config environment: %s", c.Environment)

	secrets, err := config.LoadSecrets(config.Getenv)
	if err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	store, err := openStorage(c.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %v", err)
	}
	defer store.Close()
	logger.Infof("config storage: %s", c.Storage.Type)

	m, err := openMailer(c.Mailer, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %v", err)
	}
	logger.Infof("config mailer: %s", c.Mailer.Type)

	idKeys := identity.Keys{
		UserIDDerivation:  secrets.UserIDDerivation,
		DBIndexDerivation: secrets.DBIndexDerivation,
		Ed25519Derivation: secrets.Ed25519Derivation,
		X25519Derivation:  secrets.X25519Derivation,
	}
	mlKeys := magiclink.Keys{
		Identity:     idKeys,
		ContentKey:   secrets.MLinkContentKey,
		TokenHashKey: secrets.MLinkTokenHashKey,
	}
	ssKeys := sharedsecret.Keys{
		ChecksumKey:  secrets.SharedChecksumKey,
		URLCipherKey: secrets.SharedURLCipherKey,
		ContentKey:   secrets.SharedContentKey,
		DBIndexKey:   secrets.SharedDBIndexKey,
	}

	expiry := c.ResolveExpiry()
	logger.Infof("config access tokens valid for: %v", expiry.AccessToken)
	logger.Infof("config refresh tokens valid for: %v", expiry.RefreshToken)

	limiter := ratelimit.New(c.RateLimit.RequestsPerMinute/60, c.RateLimit.Burst, time.Hour)

	now := func() time.Time { return time.Now().UTC() }

	srv := server.New(
		store,
		idKeys,
		mlKeys,
		ssKeys,
		secrets.UserPrivkeyContextKey,
		m,
		limiter,
		server.Expiry{
			AccessToken:  expiry.AccessToken,
			RefreshToken: expiry.RefreshToken,
			MagicLinkTTL: expiry.MagicLinkTTL,
		},
		logger,
		string(c.Environment),
		now,
	)

	var gr run.Group

	gcCtx, gcCancel := context.WithCancel(context.Background())
	gr.Add(func() error {
		runGarbageCollector(gcCtx, store, limiter, now, logger)
		return nil
	}, func(error) {
		gcCancel()
	})

	if c.Telemetry.Addr != "" {
		telemetrySrv := &http.Server{Addr: c.Telemetry.Addr, Handler: srv.TelemetryHandler()}
		defer telemetrySrv.Close()

		telemetryRunner := newServerRunner("http/telemetry", telemetrySrv, logger)
		if err := telemetryRunner.RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}

	if c.Web.HTTP != "" {
		httpSrv := &http.Server{Addr: c.Web.HTTP, Handler: srv.Handler()}
		defer httpSrv.Close()

		httpRunner := newServerRunner("http", httpSrv, logger)
		if err := httpRunner.RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}

	if c.Web.HTTPS != "" {
		httpsSrv := &http.Server{Addr: c.Web.HTTPS, Handler: srv.Handler()}
		defer httpsSrv.Close()

		httpsRunner := newServerRunner("https", httpsSrv, logger).WithTLS(c.Web.TLSCert, c.Web.TLSKey)
		if err := httpsRunner.RunAndShutdownGracefully(&gr); err != nil {
			return err
		}
	}

	gr.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
	if err := gr.Run(); err != nil {
		if _, ok := err.(run.SignalError); !ok {
			return fmt.Errorf("run groups: %w", err)
		}
		logger.Infof("%v, shutdown now", err)
	}
	return nil
}

const gcInterval = 5 * time.Minute

// runGarbageCollector periodically purges expired MagicLink/SharedSecret
// rows and evicts idle rate-limit buckets, the background-loop
// counterpart to storage/sql/gc.go's GarbageCollect and
// internal/ratelimit's EvictIdle. It runs until ctx is cancelled, the
// same run.Group actor shape the listeners above use.
func runGarbageCollector(ctx context.Context, store storage.Storage, limiter *ratelimit.Limiter, now func() time.Time, logger log.Logger) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := store.GarbageCollect(now())
			if err != nil {
				logger.Errorf("garbage collection: %v", err)
			} else if !result.IsEmpty() {
				logger.Infof("garbage collection: removed %d magic links, %d shared secrets, %d tracking rows",
					result.MagicLinks, result.SharedSecrets, result.TrackingRows)
			}

			if evicted := limiter.EvictIdle(now()); evicted > 0 {
				logger.Debugf("rate limiter: evicted %d idle buckets", evicted)
			}
		}
	}
}
