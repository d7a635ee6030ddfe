// Package cmd defines the synod command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/synod-dev/synod/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "synod",
	Short: "Multi-model deliberation pipeline",
	Long: `Synod sends a question to a council of language models in parallel,
has the council rank each other's answers anonymously, and asks a
chairman model to synthesize the final answer from the ranked material.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/synod/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Defaults first so everything works without a config file.
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	// Missing config file is fine; defaults and env cover it.
	_ = viper.ReadInConfig()
}
