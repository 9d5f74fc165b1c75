package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/softtagz-sys/medikits-flowchart/internal/app"
	"github.com/softtagz-sys/medikits-flowchart/internal/config"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart/cache"
	"github.com/softtagz-sys/medikits-flowchart/internal/logging"
	"github.com/softtagz-sys/medikits-flowchart/internal/metrics"
	"github.com/softtagz-sys/medikits-flowchart/internal/snapshot"
	"github.com/softtagz-sys/medikits-flowchart/internal/traversal"
)

// cli carries what every subcommand shares. It is filled by the root
// command's PersistentPreRunE once flags are parsed.
type cli struct {
	cfg      config.Runtime
	logger   *zap.Logger
	registry *prometheus.Registry
	async    *traversal.AsyncTransitionObserver
	cache    *cache.InMemory[*flowchart.Graph]

	logLevel  string
	logFormat string
	expert    bool
	from      string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "flowchart",
		Short:         "Validate, lay out, walk and convert first-aid flowcharts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format (json or text)")
	root.PersistentFlags().StringVar(&c.from, "from", "", "input format when it cannot be told from the file name")

	root.AddCommand(
		newValidateCmd(c),
		newLayoutCmd(c),
		newWalkCmd(c),
		newConvertCmd(c),
		newCatalogCmd(c),
		newBenchCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		cfg.LogFormat = c.logFormat
	}
	if cmd.Flags().Changed("expert") {
		cfg.ExpertMode = c.expert
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	c.registry = prometheus.NewRegistry()
	return nil
}

// run wraps a RunE so observers are flushed whether or not it fails.
func (c *cli) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		}()
		defer c.flush()
		return fn(cmd, args)
	}
}

// flush waits for queued transition events. Safe to call more than once.
func (c *cli) flush() {
	if c.async == nil {
		return
	}
	c.async.Close()
	if n := c.async.Dropped(); n > 0 {
		c.logger.Warn("transition events dropped", zap.Uint64("dropped", n))
	}
	c.async = nil
}

// service wires the engine with the logging and metrics observers.
func (c *cli) service() (*app.Service, error) {
	m, err := metrics.New(c.registry)
	if err != nil {
		return nil, err
	}
	c.async = traversal.NewAsyncTransitionObserver(
		traversal.Observers{m, traversal.NewTransitionLogger(c.logger)},
		c.cfg.ObsBuffer,
	)
	engine := traversal.NewEngine(
		traversal.WithTransitionObserver(c.async),
		traversal.WithExpertMode(c.cfg.ExpertMode),
	)
	c.cache = cache.NewInMemory[*flowchart.Graph](c.cfg.CacheMaxItems)
	return app.NewService(engine, c.cache,
		app.WithLayoutOptions(c.cfg.Layout),
		app.WithLogger(c.logger),
	), nil
}

// load reads a flowchart from path ("-" for stdin).
func (c *cli) load(cmd *cobra.Command, svc *app.Service, path string) (*flowchart.Graph, error) {
	data, f, err := c.read(cmd, path)
	if err != nil {
		return nil, err
	}
	g, err := svc.Load(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func (c *cli) read(cmd *cobra.Command, path string) ([]byte, snapshot.Format, error) {
	var (
		f   snapshot.Format
		err error
	)
	switch {
	case c.from != "":
		f, err = snapshot.ParseFormat(c.from)
	case path == "-":
		err = fmt.Errorf("reading stdin needs --from")
	default:
		f, err = snapshot.FormatFromPath(path)
	}
	if err != nil {
		return nil, "", err
	}

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, "", err
	}
	return data, f, nil
}
