package cmd

import (
	"os"
	"strings"

	"cda/internal/config"
	"cda/internal/observability"
	"cda/internal/ui"
	"cda/pkg/models"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	env        *viper.Viper
	logger     *observability.Logger
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{env: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "cda",
		Short:         "Customer data analytics pipeline",
		Long:          "cda resolves customer identities across source systems and recomputes cost, revenue, health and profitability tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.initEnv()
			opts.bindFlags(cmd.Flags())
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default $CDA_CONFIG or ~/.cda/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: json, console")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newIdentitiesCmd(opts),
		newSetupCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

// initEnv loads .env and binds CDA_* variables
func (o *rootOptions) initEnv() {
	// a missing .env file is normal outside development
	_ = godotenv.Load()

	o.env.SetEnvPrefix("CDA")
	o.env.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	o.env.AutomaticEnv()
}

// flagKeys maps persistent flags onto config keys
var flagKeys = map[string]string{
	"log-level":  "logging.level",
	"log-format": "logging.format",
}

// bindFlags lets explicitly set flags win over CDA_* variables
func (o *rootOptions) bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && f.Changed {
			o.env.Set(key, f.Value.String())
		}
	})
}

// envKeys are the settings that CDA_* variables may override
var envKeys = []string{
	"client_name",
	"snowflake.account",
	"snowflake.username",
	"snowflake.password",
	"snowflake.role",
	"snowflake.warehouse",
	"snowflake.database",
	"snowflake.raw_schema",
	"snowflake.seed_table",
	"snowflake.query_tag",
	"source.type",
	"source.path",
	"source.bucket",
	"source.prefix",
	"source.region",
	"source.profile",
	"output.type",
	"output.path",
	"output.schema",
	"seed.path",
	"parameters.as_of_date",
	"logging.level",
	"logging.format",
}

// loadConfig reads the config file, applies environment overrides and sets up logging.
// Secrets are resolved only when resolveSecrets is true.
func (o *rootOptions) loadConfig(resolveSecrets bool) (*models.Config, error) {
	var (
		cfg *models.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFile(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	for _, key := range envKeys {
		if o.env.IsSet(key) {
			applySetting(cfg, key, o.env.GetString(key))
		}
	}

	o.logger = observability.NewLogger(observability.LoggerConfig{
		Level:   observability.LogLevelFromString(cfg.Logging.Level),
		Output:  os.Stderr,
		Service: "cda",
		Version: Version,
		Encoder: observability.EncoderFromString(cfg.Logging.Format),
	}).WithField("client", cfg.ClientName)
	observability.SetDefaultLogger(o.logger)

	if resolveSecrets {
		if err := config.ResolveSecrets(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func applySetting(cfg *models.Config, key, value string) {
	targets := map[string]*string{
		"client_name":           &cfg.ClientName,
		"snowflake.account":     &cfg.Snowflake.Account,
		"snowflake.username":    &cfg.Snowflake.Username,
		"snowflake.password":    &cfg.Snowflake.Password,
		"snowflake.role":        &cfg.Snowflake.Role,
		"snowflake.warehouse":   &cfg.Snowflake.Warehouse,
		"snowflake.database":    &cfg.Snowflake.Database,
		"snowflake.raw_schema":  &cfg.Snowflake.RawSchema,
		"snowflake.seed_table":  &cfg.Snowflake.SeedTable,
		"snowflake.query_tag":   &cfg.Snowflake.QueryTag,
		"source.type":           &cfg.Source.Type,
		"source.path":           &cfg.Source.Path,
		"source.bucket":         &cfg.Source.Bucket,
		"source.prefix":         &cfg.Source.Prefix,
		"source.region":         &cfg.Source.Region,
		"source.profile":        &cfg.Source.Profile,
		"output.type":           &cfg.Output.Type,
		"output.path":           &cfg.Output.Path,
		"output.schema":         &cfg.Output.Schema,
		"seed.path":             &cfg.Seed.Path,
		"parameters.as_of_date": &cfg.Parameters.AsOfDate,
		"logging.level":         &cfg.Logging.Level,
		"logging.format":        &cfg.Logging.Format,
	}
	if p, ok := targets[key]; ok {
		*p = value
	}
}
