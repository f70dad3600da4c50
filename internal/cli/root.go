// Package cli implements the truthlens command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zombar/truthlens/internal/config"
)

// Version is set at build time with -ldflags
var Version = "dev"

// options is the state shared by every subcommand
type options struct {
	cfgFile string
	envFile string
	v       *viper.Viper
	cfg     *config.Config
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &options{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "truthlens",
		Short: "TruthLens - fake news classification for Spanish news",
		Long: `TruthLens classifies Spanish news content as fake or real.

Content can be submitted as text, as a PDF, DOCX or TXT document, as an image
read through OCR, as the URL of a news article or as an RSS/Atom feed. Every
verdict carries calibrated probabilities, a confidence tier and a reading
recommendation.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: ./truthlens.yaml or $HOME/.truthlens/truthlens.yaml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = opts.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newClassifyCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads .env, the config file and the environment into opts.cfg
func (o *options) load() error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// newLogger builds the process logger from the log settings
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (supported: json, text)", cfg.Format)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No config needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "truthlens %s\n", Version)
		},
	}
}
