package util

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dFacade/lib/common"
	"github.com/ValentinKolb/dFacade/lib/config"
	"github.com/ValentinKolb/dFacade/lib/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

var (
	Logger = logger.GetLogger("cli")

	// V holds the configuration of the running command (flags, DFACADE_* env, config file)
	V = viper.New()
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += len(word)
	}
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupConfigFlags adds the flags shared by all commands that talk to a backend
func SetupConfigFlags(cmd *cobra.Command) {
	key := "config-file"
	cmd.PersistentFlags().String(key, "", WrapString("Config file with the backend credentials (e.g. redis.host, redis.port). Credentials can also be set as DFACADE_<BACKEND>_<FIELD> environment variables (e.g. DFACADE_REDIS_HOST)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("The level at which logs will be output (debug, info, warn, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the metrics of the facade in prometheus format to stderr when the command is done"))
}

// Setup loads .env files, reads the configuration of cmd into V, initializes the loggers
// and returns the credential registry.
func Setup(cmd *cobra.Command) (*config.Registry, error) {
	config.LoadEnvFiles()

	v, err := config.NewViper(configFile(cmd))
	if err != nil {
		return nil, err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	V = v

	if err := common.InitLoggers(V.GetString("log-level")); err != nil {
		return nil, err
	}

	reg, err := config.Load(V)
	if err != nil {
		return nil, err
	}
	Logger.Debugf("loaded credentials for %v", reg.Types())
	return reg, nil
}

// configFile reads the flag directly, V is not populated before Setup
func configFile(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("config-file"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	return os.Getenv(strings.ToUpper(config.EnvPrefix) + "_CONFIG_FILE")
}

// WriteMetrics prints the metrics of r to stderr if --metrics is set
func WriteMetrics(r *metrics.Recorder) {
	if r == nil || !V.GetBool("metrics") {
		return
	}
	r.WritePrometheus(os.Stderr)
}

// PrintJSON writes v as indented JSON followed by a newline
func PrintJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// ParseJSONObject parses a command line argument into a JSON object
func ParseJSONObject(arg string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arg), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON object %q: %w", arg, err)
	}
	if m == nil {
		return nil, fmt.Errorf("expected a JSON object, got %q", arg)
	}
	return m, nil
}
