package cmd

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfenderov/scriptforge/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "scriptforge",
	Short: "scriptforge: browser automation scripts from procedure documents",
	Long: `scriptforge turns a workflow description, optionally backed by uploaded
procedure documents, into a Selenium and a Playwright script, helps fill in
their configuration constants and runs them on a remote execution worker.

Commands:
  init       Create the index, bucket and job table
  ingest     Upload and index procedure documents
  documents  List, show or delete documents
  search     Keyword search over indexed chunks
  inspect    Show the condensed markup of a target page
  generate   Generate scripts for a workflow
  configure  Show or set a script's configuration constants
  run        Configure a script and run it on the worker
  jobs       List or show automation job records
  serve      Start the MCP server`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// envKeys are bound explicitly so AutomaticEnv sees nested keys that no
// config file mentions.
var envKeys = []string{
	"elasticsearch.addresses",
	"elasticsearch.index",
	"elasticsearch.username",
	"elasticsearch.password",
	"elasticsearch.dims",
	"embeddings.enabled",
	"embeddings.socket_path",
	"embeddings.model",
	"storage.endpoint",
	"storage.bucket",
	"storage.access_key_id",
	"storage.secret_access_key",
	"storage.use_ssl",
	"chunker.size",
	"chunker.overlap",
	"prompt.mode",
	"prompt.max_context_chars",
	"prompt.max_markup_chars",
	"prompt.top_k",
	"prompt.min_score",
	"llm.provider",
	"llm.fallback",
	"llm.temperature",
	"llm.max_tokens",
	"llm.requests_per_minute",
	"llm.anthropic.api_key",
	"llm.anthropic.model",
	"llm.anthropic.base_url",
	"llm.gemini.api_key",
	"llm.gemini.model",
	"llm.dmr.socket_path",
	"llm.dmr.model",
	"inspector.enabled",
	"inspector.engine",
	"inspector.timeout",
	"inspector.settle",
	"inspector.user_agent",
	"jobs.dsn",
	"jobs.poll_interval",
	"jobs.max_poll_attempts",
	"worker.base_url",
	"worker.token",
	"worker.timeout",
	"mcp.name",
	"mcp.version",
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/scriptforge")
		viper.AddConfigPath(".")
	}

	// SCRIPTFORGE_LLM_ANTHROPIC_API_KEY -> llm.anthropic.api_key
	viper.SetEnvPrefix("SCRIPTFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Addresses arrive as a comma-separated string from env
	if addrs := os.Getenv("SCRIPTFORGE_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
