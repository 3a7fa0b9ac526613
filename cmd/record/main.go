package record

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ephysio/kwikstore/acquisition"
	_ "github.com/ephysio/kwikstore/kwik"
	"github.com/ephysio/kwikstore/metrics"
	"github.com/ephysio/kwikstore/plugins/format"
	"github.com/ephysio/kwikstore/utils"
	"github.com/ephysio/kwikstore/utils/log"
)

const (
	usage                 = "record"
	short                 = "Record a simulated acquisition session"
	long                  = "This command runs the configured sources through the recording engine and writes one set of files per experiment"
	example               = "kwikstore record --config <path>"
	defaultConfigFilePath = "./kwikstore.yml"
	configDesc            = "set the path for the kwikstore YAML configuration file"

	shutdownTimeout = 5 * time.Second
)

var (
	// Cmd is the record command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"r", "start"},
		SuggestFor: []string{"run", "acquire"},
		Example:    example,
		RunE:       executeRecord,
	}
	// configFilePath set flag for a path to the config file.
	configFilePath string
)

// nolint:gochecknoinits // cobra's standard way to initialize flags
func init() {
	Cmd.Flags().StringVarP(&configFilePath, "config", "c", defaultConfigFilePath, configDesc)
}

// executeRecord implements the record command.
func executeRecord(cmd *cobra.Command, _ []string) error {
	config, err := utils.ParseConfig(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to parse configuration file error: %w", err)
	}
	// Don't output command usage if args(=only the filepath to kwikstore.yml at the moment) are correct
	cmd.SilenceUsage = true
	log.Info("using %v for configuration", configFilePath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := Record(ctx, config)
	log.Info("recorded %d recording(s): %d samples, %d events, %d spikes in %d cycles",
		stats.Recordings, stats.Samples, stats.Events, stats.Spikes, stats.Cycles)
	if stats.NotReady > 0 || stats.Dropped > 0 || stats.Resized > 0 {
		log.Warn("%d writes skipped, %d events dropped, %d buffer resizes",
			stats.NotReady, stats.Dropped, stats.Resized)
	}
	if errors.Is(err, context.Canceled) {
		log.Info("recording interrupted")
		return nil
	}
	return err
}

// Record runs every recording described by config until it completes or ctx
// is done, serving metrics and watching disk usage meanwhile.
func Record(ctx context.Context, config *utils.RecorderConfig) (acquisition.Stats, error) {
	factory, err := format.Resolve(config.Format, config.FormatModule, config.FormatConfig)
	if err != nil {
		return acquisition.Stats{}, fmt.Errorf("failed to load format %q: %w", config.Format, err)
	}
	if err = os.MkdirAll(config.RootDirectory, 0o700); err != nil {
		return acquisition.Stats{}, fmt.Errorf("failed to create root directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if config.MetricsListenURL != "" {
		srv := serveMetrics(config.MetricsListenURL)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			if err2 := srv.Shutdown(shutdownCtx); err2 != nil {
				log.Error("failed to shutdown metrics server: %v", err2)
			}
		}()
	}
	if config.DiskUsageInterval > 0 {
		go metrics.StartDiskUsageMonitor(ctx, metrics.TotalDiskUsageBytes, config.RootDirectory, config.DiskUsageInterval)
	}

	log.Info("initializing %s recorder with %d source(s)...", config.Format, len(config.Sources))
	session, err := acquisition.NewSession(config, factory)
	if err != nil {
		return acquisition.Stats{}, fmt.Errorf("failed to start acquisition: %w", err)
	}
	defer session.Close()
	log.Info("recording %d of %d channel(s) to %s", len(session.Recorded()), len(session.Channels()), config.RootDirectory)

	err = session.Run(ctx)
	return session.Stats(), err
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}
	log.Info("launching prometheus metrics server on %s...", addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error: %v", err)
		}
	}()
	return srv
}
