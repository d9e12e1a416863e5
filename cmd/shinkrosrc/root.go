package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/varoOP/shinkrosrc/internal/app"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shinkrosrc",
	Short: "Turn content websites into declarative providers",
	Long: `shinkrosrc analyzes an unfamiliar anime or manga website and generates a
declarative provider config for it. Stored providers are then queried through
one generic runtime, merged with the built-in MyAnimeList catalog.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shinkrosrc.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding providers and history")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("yaml")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".shinkrosrc.yaml"))
		}
		if _, err := os.Stat(viper.ConfigFileUsed()); err != nil {
			viper.SetConfigFile("config.yaml")
		}
	}

	viper.SetEnvPrefix("SHINKROSRC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// withApp initializes the application for one command and closes it afterwards
func withApp(fn func(a *app.App) error) error {
	application, err := app.NewApp()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	return fn(application)
}

func contentTypeFlag(cmd *cobra.Command) (domain.ContentType, error) {
	s, _ := cmd.Flags().GetString("type")
	return domain.ParseContentType(s)
}
