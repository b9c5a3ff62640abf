package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"neurod/internal/config"
)

// app carries the resolved configuration and logger into every command.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	modelsDir  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, log: zerolog.Nop()}
	root := &cobra.Command{
		Use:           "neurod",
		Short:         "EEG and MRI classifiers and the NeuroPath chat proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (.yaml/.yml/.json/.toml); defaults to NEUROD_CONFIG")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults NEUROD_LOG_LEVEL or info)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: console|json")
	pf.StringVar(&a.modelsDir, "models-dir", "", "Directory holding *.safetensors checkpoints")

	root.AddCommand(a.eegCmd(), a.mriCmd(), a.chatCmd(), a.checkpointCmd())
	return root
}

// setup loads configuration in order: defaults, file, environment, flags.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	path := a.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.modelsDir != "" {
		cfg.ModelsDir = a.modelsDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	l, err := newLogger(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	a.log = l
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		a.log.Debug().Msgf(format, args...)
	})); err != nil {
		a.log.Warn().Err(err).Msg("automaxprocs")
	}
	if path != "" {
		a.log.Debug().Str("config", path).Str("command", cmd.CommandPath()).Msg("configuration loaded")
	}
	return nil
}

// newLogger builds the process logger from the log section.
func newLogger(c config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	out := w
	if c.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// splitCSV splits a comma-separated flag value, trimming blanks.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// errReported marks a failure already printed to stdout as {"error": ...}.
var errReported = errors.New("error reported")

// reportError prints err the way the prediction commands always have and
// returns errReported so the process exits non-zero without repeating it.
func (a *app) reportError(err error) error {
	_ = json.NewEncoder(a.stdout).Encode(map[string]string{"error": err.Error()})
	return errReported
}
