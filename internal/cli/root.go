package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eddmann/whatsapp-archive/internal/config"
	"github.com/eddmann/whatsapp-archive/internal/logging"
)

var (
	version = "0.1.0"

	// Global flags
	formatFlag   string
	fieldsFlag   string
	noHeaderFlag bool
	configFile   string
	verbose      bool

	// Resolved once per invocation
	resolvedFormat Format
	settings       = config.New()
	cfg            *config.Config
	logger         = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "whatsapp-archive",
	Short: "Query your WhatsApp history from the terminal.",
	Long: `Query the chat history captured by the WhatsApp bridge.

Reads the bridge's messages.db and the session store's contacts, resolves
every sender to a display name and prints the result as json, jsonl, csv,
tsv, a human table or a chat transcript (--format text).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	cobra.OnInitialize(resolveFormatOnce)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&formatFlag, "format", "f", "", "Output format: json, jsonl, csv, tsv, human, text (default: json, or $WA_ARCHIVE_FORMAT)")
	pf.StringVar(&fieldsFlag, "fields", "", "Comma-separated list of fields to include in output")
	pf.BoolVar(&noHeaderFlag, "no-header", false, "Skip header row in CSV/TSV output")
	pf.StringVar(&configFile, "config", "", "Config file (default: "+config.Dir()+"/config.toml)")
	pf.String("messages-db", "", "Chat history database written by the bridge")
	pf.String("account-db", "", "Session store holding account contacts")
	pf.String("bridge-url", "", "Bridge REST API base URL")
	pf.String("redis-addr", "", "Redis address for the display name cache")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.Duration("timeout", 0, "Command timeout")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	pf.BoolP("version", "V", false, "Show version")

	bindFlags(settings, pf, map[string]string{
		"messages-db": config.KeyMessagesDB,
		"account-db":  config.KeyAccountDB,
		"bridge-url":  config.KeyBridgeURL,
		"redis-addr":  config.KeyRedisAddr,
		"log-level":   config.KeyLogLevel,
		"timeout":     config.KeyTimeout,
	})

	rootCmd.SetVersionTemplate(fmt.Sprintf("whatsapp-archive %s\n", version))
	rootCmd.Version = version
}

// bindFlags binds flag names to config keys. Flags only override the config
// when they are set explicitly.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		settings.SetConfigFile(configFile)
	}
	c, err := config.Load(settings)
	if err != nil {
		return err
	}
	cfg = c
	logger = logging.New(os.Stderr, cfg.LogLevel, verbose)
	if cfg.File != "" {
		logger.Debug().Str("file", cfg.File).Msg("loaded config")
	}
	return nil
}

// resolveFormatOnce caches the output format at startup
func resolveFormatOnce() {
	// flag > env > json
	f := formatFlag
	if f == "" {
		f = os.Getenv(config.EnvPrefix + "_FORMAT")
	}
	if f == "" {
		f = string(FormatJSON)
	}

	resolvedFormat = Format(strings.ToLower(f))
	if !resolvedFormat.IsValid() {
		fmt.Fprintf(os.Stderr, "warning: invalid format %q, using json\n", f)
		resolvedFormat = FormatJSON
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// GetFormat returns the cached output format
func GetFormat() Format {
	return resolvedFormat
}

// GetFields returns the list of fields to include in output
func GetFields() []string {
	if fieldsFlag == "" {
		return nil
	}
	fields := strings.Split(fieldsFlag, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

// GetOutputOptions returns the current output options
func GetOutputOptions() OutputOptions {
	return OutputOptions{
		Format:   GetFormat(),
		Fields:   GetFields(),
		NoHeader: noHeaderFlag,
	}
}

// Output writes data to the command's stdout in the selected format.
func Output(cmd *cobra.Command, data any) error {
	return render(cmd.OutOrStdout(), data, GetOutputOptions())
}

// OutputResult outputs structured data for machine formats, or a human message otherwise.
func OutputResult(cmd *cobra.Command, data any, humanMsg string) error {
	if IsText() {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), humanMsg)
		return err
	}
	return Output(cmd, data)
}

// OutputText writes preformatted text in text mode and data otherwise.
func OutputText(cmd *cobra.Command, data any, text string) error {
	if GetFormat() == FormatText {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	return Output(cmd, data)
}

// OutputWarning prints warning to stderr (for non-fatal issues)
func OutputWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if IsJSON() {
		fmt.Fprintf(os.Stderr, `{"warning":%q}`+"\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}
}

// IsJSON returns whether JSON output is enabled (json or jsonl)
func IsJSON() bool {
	f := GetFormat()
	return f == FormatJSON || f == FormatJSONL
}

// IsText returns whether a human readable format is selected.
func IsText() bool {
	f := GetFormat()
	return f == FormatHuman || f == FormatText
}
