// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package run implements the run command.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/credence/internal/commands/shared"
	"github.com/tombee/credence/internal/config"
	"github.com/tombee/credence/internal/log"
	"github.com/tombee/credence/internal/suite"
	"github.com/tombee/credence/internal/tracing"
	"github.com/tombee/credence/pkg/engine"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/result"
)

type options struct {
	output      string
	outputFile  string
	concurrency int
	profile     string
	endpoint    string
	provider    string
	model       string
	color       string
	metrics     bool
	trace       bool
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run conversation suites against a chatbot",
		Long: `Run discovers suite files, plays every conversation against the configured
chatbot and reports the results.

Paths may be files, directories (searched for *.credence.yaml, *.credence.yml
and *.credence.json) or globs. With no paths the working directory is searched.

Each conversation runs with its own chatbot session. Up to --concurrency
conversations run at once.

Exit codes:
  0  every conversation passed
  1  at least one conversation failed or errored
  2  invalid configuration or suite files`,
		Example: `  # Run every suite below the working directory
  credence run

  # Run one suite against a local bot and write JUnit for CI
  credence run tests/booking.credence.yaml --endpoint http://localhost:8080/chat \
      --output junit --output-file report.xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Report format: text, markdown, json or junit")
	cmd.Flags().StringVar(&opts.outputFile, "output-file", "", "Write the report to a file instead of stdout")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "Conversations to run at once")
	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "Simulated user profile for generated turns")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Chatbot endpoint URL (env: CREDENCE_CHATBOT_ENDPOINT)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider: anthropic, openai or ollama")
	cmd.Flags().StringVar(&opts.model, "model", "", "LLM model for generated turns and AI checks")
	cmd.Flags().StringVar(&opts.color, "color", "", "Colour output: auto, always or never")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Serve Prometheus metrics while running")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Export OpenTelemetry spans")

	return cmd
}

func (o options) apply(cfg *config.Config) {
	if o.output != "" {
		cfg.Run.Output = o.output
	}
	if o.outputFile != "" {
		cfg.Run.OutputFile = o.outputFile
	}
	if o.concurrency != 0 {
		cfg.Run.Concurrency = o.concurrency
	}
	if o.endpoint != "" {
		cfg.Chatbot.Endpoint = o.endpoint
	}
	if o.provider != "" {
		cfg.LLM.Provider = o.provider
	}
	if o.model != "" {
		cfg.LLM.Model = o.model
	}
	if o.color != "" {
		cfg.Run.Color = o.color
	}
	if o.metrics {
		cfg.Metrics.Enabled = true
	}
	if o.trace {
		cfg.Tracing.Enabled = true
	}
}

func runSuites(cmd *cobra.Command, paths []string, opts options) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return shared.NewConfigError("invalid configuration", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return shared.NewConfigError("invalid configuration", err)
	}
	if cfg.Chatbot.Endpoint == "" {
		return shared.NewConfigError("no chatbot endpoint", &errors.ConfigError{
			Key:    "chatbot.endpoint",
			Reason: "set chatbot.endpoint in the config file, CREDENCE_CHATBOT_ENDPOINT or --endpoint",
		})
	}

	logger := log.WithComponent(shared.NewLogger(cfg), "cli")

	files, err := suite.Discover(paths)
	if err != nil {
		return shared.NewConfigError("cannot find suites", err)
	}
	if len(files) == 0 {
		return shared.NewConfigError("no suite files found", nil)
	}
	suites, err := suite.LoadAll(files)
	if err != nil {
		return shared.NewConfigError("invalid suite", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newTelemetry(ctx, cfg)
	if err != nil {
		return shared.NewConfigError("cannot set up tracing", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", log.Error(err))
		}
	}()

	if cfg.Metrics.Enabled {
		stopMetrics := serveMetrics(cfg.Metrics.Addr, provider.MetricsHandler(), logger)
		defer stopMetrics()
	}

	eng := engine.New().
		WithLogger(logger).
		WithTracerProvider(provider.TracerProvider()).
		WithRecorder(provider.Metrics())
	factory := shared.NewAdapterFactory(cfg, logger)

	var all []*result.Result
	for _, s := range suites {
		profile := cfg.Run.Profile
		if s.Profile != "" {
			profile = s.Profile
		}
		if opts.profile != "" {
			profile = opts.profile
		}

		logger.Info("running suite", slog.String("suite", s.Name), slog.String("path", s.Path))
		results := eng.RunSuite(ctx, s.Runnable(), factory, engine.SuiteOptions{
			Concurrency: cfg.Run.Concurrency,
			Run: engine.RunOptions{
				Profile:        profile,
				InitialContext: cfg.Run.InitialContext,
			},
		})
		all = append(all, results...)
	}

	if err := writeReport(cmd, cfg, reportName(suites), all); err != nil {
		return err
	}
	return exitFor(all)
}

func newTelemetry(ctx context.Context, cfg *config.Config) (*tracing.Provider, error) {
	v, _, _ := shared.GetVersion()
	tc := tracing.DefaultConfig()
	tc.Enabled = cfg.Tracing.Enabled
	tc.ServiceVersion = v
	tc.Exporter = cfg.Tracing.Exporter
	tc.Endpoint = cfg.Tracing.Endpoint
	tc.Insecure = cfg.Tracing.Insecure
	tc.Headers = cfg.Tracing.Headers
	tc.SampleRate = cfg.Tracing.SampleRate

	// Console spans go to stderr so they never mix with the report.
	return tracing.NewProvider(ctx, tc, tracing.Options{ConsoleWriter: os.Stderr})
}

func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", log.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// exitFor maps results to the command error: configuration problems in any
// run win over ordinary failures.
func exitFor(results []*result.Result) error {
	for _, r := range results {
		if h := r.HaltError(); h != nil && h.Class == errors.ClassConfig {
			return &shared.ExitError{Code: shared.ExitConfigError}
		}
	}
	if !result.AllPassed(results) {
		return &shared.ExitError{Code: shared.ExitFailed}
	}
	return nil
}

func reportName(suites []*suite.Suite) string {
	if len(suites) == 1 {
		return suites[0].Name
	}
	return fmt.Sprintf("credence (%d suites)", len(suites))
}
