package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loadq/internal/banner"
	"loadq/internal/cli"
	"loadq/internal/config"
	"loadq/internal/logging"
	"loadq/internal/metrics"
	"loadq/internal/report"
	"loadq/internal/runner"
	"loadq/internal/tui"
)

func newRootCommand(v *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "loadq",
		Short: "loadq - bounded-concurrency HTTP load generator",
		Long: `
loadq fires a fixed number of GET requests at a URL, never keeping more than
--concurrency of them in flight, and summarizes status codes and latency.

  loadq --url http://localhost:8080/ok -n 1000 -c 50
  loadq --url http://localhost:8080 -n 500 -c 20 --random --tui`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Root().Flags()); err != nil {
				return fmt.Errorf("binding flags: %w", err)
			}
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(v)
			if err != nil {
				return err
			}
			return runLoadTest(cmd, settings)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.loadq.yaml)")

	flags := rootCmd.Flags()
	flags.StringP("url", "u", "", "Target URL")
	flags.IntP("requests", "n", 100, "Total number of requests")
	flags.IntP("concurrency", "c", 10, "Maximum requests in flight")
	flags.BoolP("random", "r", false, "Append a random path segment and ?q= value to every request")
	flags.DurationP("timeout", "t", runner.DefaultTimeout, "Per-request timeout")
	flags.StringP("out", "o", "", "Output filename prefix for the JSON summary and latency CSV")
	flags.Bool("tui", false, "Show the interactive dashboard")
	flags.String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9100)")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")

	config.SetDefaults(v)

	rootCmd.AddCommand(newServeCommand())
	return rootCmd
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigType("yaml")
			v.SetConfigName(".loadq")
		}
	}
	v.SetEnvPrefix("LOADQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("%w: reading config: %v", config.ErrInvalidInput, err)
	}
	return nil
}

func runLoadTest(cmd *cobra.Command, settings config.Settings) error {
	out := cmd.OutOrStdout()

	log, err := logging.New(settings.LogLevel, settings.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates := make(chan runner.Progress, 100)
	rate := cli.NewRateObserver()
	opts := []runner.Option{
		runner.WithLogger(log),
		runner.WithUpdates(updates, tui.TickInterval),
		runner.WithObserver(rate),
	}

	var collector *metrics.Collector
	if settings.MetricsAddr != "" {
		collector = metrics.NewCollector()
		opts = append(opts, runner.WithObserver(collector))
	}

	r, err := runner.NewRunner(settings.RunnerConfig(), opts...)
	if err != nil {
		return err
	}

	if collector != nil {
		collector.TrackInflight(r.Inflight)
		serveMetrics(ctx, collector, settings.MetricsAddr, log)
	}

	var res runner.Result
	if settings.TUI {
		res, err = tui.Run(ctx, r, updates)
		if summaryErr := writeSummary(out, res); summaryErr != nil && err == nil {
			err = summaryErr
		}
	} else {
		res, err = cli.Start(ctx, out, r, updates, rate)
	}

	if res.RunID != "" {
		if exportErr := cli.HandleExport(out, res, settings.Out); exportErr != nil {
			log.WithError(exportErr).Error("report export failed")
			if err == nil {
				err = exportErr
			}
		}
	}
	return err
}

// writeSummary prints the text summary of a run that got as far as starting.
func writeSummary(out io.Writer, res runner.Result) error {
	if res.RunID == "" {
		return nil
	}
	if err := report.WriteText(out, report.NewSummary(res)); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

func serveMetrics(ctx context.Context, c *metrics.Collector, addr string, log logrus.FieldLogger) {
	go func() {
		if err := c.Serve(ctx, addr, log); err != nil {
			log.WithError(err).Error("metrics endpoint failed")
		}
	}()
}

func Execute() {
	rootCmd := newRootCommand(viper.GetViper())

	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
