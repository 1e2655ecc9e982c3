package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/newthinker/lasr-archive/archive"
	_ "github.com/newthinker/lasr-archive/archive/backends"
	"github.com/newthinker/lasr-archive/internal/config"
	"github.com/newthinker/lasr-archive/internal/logger"
	"github.com/newthinker/lasr-archive/internal/metrics"
	"github.com/newthinker/lasr-archive/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	cfgFile   string
	debug     bool
	uri       string
	backend   string
	datastore string
	policy    string
	metrics   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "LASR archive - store and retrieve archival records",
		Long: `archive writes account and transaction batch records to a configured
backend (MongoDB, SQL, S3, local filesystem or memory) and reads them back.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug mode")
	cmd.PersistentFlags().StringVar(&opts.uri, "uri", "", "backend connection URI (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "backend kind: mongodb, sql, s3, localfs, memory")
	cmd.PersistentFlags().StringVar(&opts.datastore, "datastore", "", "logical database name")
	cmd.PersistentFlags().StringVar(&opts.policy, "policy", "", "connection policy: per_call or pooled")
	cmd.PersistentFlags().BoolVar(&opts.metrics, "metrics", false, "print archive metrics to stderr on exit")

	cmd.AddCommand(
		newCreateCmd(opts),
		newFindCmd(opts),
		newDescribeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// session is everything a command needs to talk to the archive.
type session struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *archive.Store
	registry *metrics.Registry
	shutdown func(context.Context) error
	stderr   io.Writer
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if o.cfgFile != "" {
		var err error
		cfg, err = config.Load(o.cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if o.uri != "" {
		cfg.Archive.URI = o.uri
	}
	if o.backend != "" {
		cfg.Archive.Backend = o.backend
	}
	if o.datastore != "" {
		cfg.Archive.Datastore = o.datastore
	}
	if o.policy != "" {
		cfg.Archive.Policy = o.policy
	}
	if o.debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
	if o.metrics {
		cfg.Metrics.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// open builds the store described by config and flags. On error everything it had
// already set up is released.
func (o *rootOptions) open(cmd *cobra.Command) (_ *session, err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{Development: cfg.Log.Development, Level: cfg.Log.Level})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	s := &session{cfg: cfg, log: log, stderr: cmd.ErrOrStderr()}
	defer func() {
		if err != nil {
			s.close(cmd.Context())
		}
	}()

	if cfg.Tracing.Enabled {
		s.shutdown, err = telemetry.Init(cmd.Context(), telemetry.Config{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: Version,
			UseStdout:      cfg.Tracing.Stdout,
			Writer:         cmd.ErrOrStderr(),
		})
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
	}

	b, err := cfg.StoreBuilder()
	if err != nil {
		return nil, err
	}
	b.Logger(log)
	if cfg.Metrics.Enabled {
		s.registry = metrics.NewRegistry()
		b.Recorder(s.registry)
	}

	s.store, err = b.Build()
	if err != nil {
		return nil, fmt.Errorf("building store: %w", err)
	}

	log.Debug("archive store ready", zap.Stringer("store", s.store))
	return s, nil
}

// close releases the store, dumps metrics and shuts down tracing. It also serves a
// half-built session whose store was never created.
func (s *session) close(ctx context.Context) {
	if s.store != nil {
		if err := s.store.Close(ctx); err != nil {
			s.log.Warn("closing store", zap.Error(err))
		}
		if s.registry != nil {
			if err := s.registry.WriteText(s.stderr, "archive_"); err != nil {
				s.log.Warn("writing metrics", zap.Error(err))
			}
		}
	}
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			s.log.Warn("shutting down tracing", zap.Error(err))
		}
	}
	_ = s.log.Sync()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
