package cli

import (
	"context"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/leadform/pkg/config"
)

// Options are the flags shared by all commands.
type Options struct {
	ConfigPath string
	Debug      bool
}

type optionsKey struct{}

// NewRootCommand builds the leadform command tree. Flag defaults fall back to the
// environment so containers can be configured without arguments.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "leadform",
		Short:         "Lead capture form with confirmation emails",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", getEnvString(config.ConfigPathEnv, ""),
		"Path to the leadform configuration file")
	root.PersistentFlags().BoolVar(&opts.Debug, "debug", getEnvBool("LEADFORM_DEBUG", false),
		"Enable debug level logging")

	root.SetContext(context.WithValue(context.Background(), optionsKey{}, opts))

	root.AddCommand(
		NewServeCommand(),
		NewMigrateCommand(),
		NewVersionCommand(),
	)
	return root
}

func getOptions(cmd *cobra.Command) *Options {
	if opts, ok := cmd.Context().Value(optionsKey{}).(*Options); ok && opts != nil {
		return opts
	}
	return &Options{}
}

// SetupLogger returns a production logger, or a development one when debug is set.
func SetupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// stacktraces only for panics and fatal errors
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
