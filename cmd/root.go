package cmd

import (
	"os"
	"time"

	coreconfig "github.com/AzielCF/az-crm/core/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-crm",
	Short: "WhatsApp customer-service CRM backend",
	Long: `az-crm receives WhatsApp Cloud API webhooks, routes conversations to agent
queues and pushes every change to the dashboard over websockets.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initEnvConfig()
	},
}

func init() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	initFlags()
}

func initFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=3333")
	flags.BoolP("debug", "d", false, "debug logging with --debug <true/false> | example: --debug=true")
	flags.String("db-driver", "", `database driver --db-driver <sqlite|postgres> | example: --db-driver="postgres"`)
	flags.String("db-name", "", `sqlite file or postgres database --db-name <string> | example: --db-name="storages/crm.db"`)

	_ = viper.BindPFlag("app_port", flags.Lookup("port"))
	_ = viper.BindPFlag("app_debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("db_driver", flags.Lookup("db-driver"))
	_ = viper.BindPFlag("db_name", flags.Lookup("db-name"))
	viper.AutomaticEnv()
}

// initEnvConfig loads the environment into coreconfig.Global and applies flag overrides
func initEnvConfig() error {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		return err
	}

	if v := viper.GetString("app_port"); v != "" {
		cfg.App.Port = v
	}
	if viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if v := viper.GetString("db_driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := viper.GetString("db_name"); v != "" {
		cfg.Database.Name = v
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.WithFields(logrus.Fields(coreconfig.Summary())).Debug("[CONFIG] Loaded")
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
