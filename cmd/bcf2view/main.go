// Package main provides the bcf2view command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/broadinstitute/picard-sub013/internal/bcf2"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks errors caused by bad invocation rather than bad input.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "bcf2view",
		Short: "Inspect BCF2 variant files",
		Long: `bcf2view decodes BCF2 binary variant files (plain, gzip or BGZF compressed).
Genotypes are decoded lazily: commands that never look at samples never pay
for decoding them.`,
		Example: `  bcf2view view calls.bcf
  bcf2view view -f vcf --genotypes calls.bcf
  bcf2view header --dictionary calls.bcf
  bcf2view stats -j 4 a.bcf b.bcf
  bcf2view export --db calls.duckdb calls.bcf`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError{err}
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.bcf2view.yaml)")
	cmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().Int("parallelism", 1, "BGZF decompression goroutines")
	bindFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	bindFlag("decode.parallelism", cmd.PersistentFlags().Lookup("parallelism"))

	cmd.AddCommand(newViewCmd())
	cmd.AddCommand(newHeaderCmd())
	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig loads ~/.bcf2view.yaml (or cfgFile) and BCF2VIEW_* environment
// variables. A missing config file is not an error.
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".bcf2view")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("BCF2VIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("view.format", "tab")
	viper.SetDefault("decode.workers", 0)
	viper.SetDefault("decode.parallelism", 1)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (cfgFile == "" && os.IsNotExist(err)) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// setup resolves the configuration and builds the logger for a command.
func setup(stderr io.Writer) (*Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(stderr, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newLogger builds a console logger writing to stderr at the given level.
func newLogger(stderr io.Writer, levelName string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, usageError{fmt.Errorf("invalid log level: %w", err)}
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(stderr), level)
	return zap.New(core), nil
}

// bindFlag ties a config key to a flag so that an explicit flag wins over
// the config file.
func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// readerOptions returns the decode options shared by all commands.
func readerOptions(cfg *Config, logger *zap.Logger, extra ...bcf2.Option) []bcf2.Option {
	opts := []bcf2.Option{
		bcf2.WithLogger(logger),
		bcf2.WithParallelism(cfg.Decode.Parallelism),
	}
	if cfg.Decode.Eager {
		opts = append(opts, bcf2.WithEagerGenotypes())
	}
	return append(opts, extra...)
}

// createOutput returns stdout for an empty path or "-", otherwise a new file.
func createOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}
