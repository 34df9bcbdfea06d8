package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "relayctl is a command line tool for interacting with the cirelay controller",
	Long: `relayctl is the command-line interface for cirelay, the CI job
scheduling and component-resolution service.

Agents (remotecis) ask cirelay for work against a topic; the controller
resolves the topic, picks the freshest active component of every type the
topic tracks, and hands back a job bound to that exact snapshot.

Common workflows:

  Schedule a job against a topic:
    relayctl schedule <topic-id>

  Preview what would be scheduled, without creating anything:
    relayctl schedule <topic-id> --dry-run

  Check a job:
    relayctl status <job-id>

  Report a status change:
    relayctl jobstate <job-id> running
    relayctl jobstate <job-id> success --comment "all green"

  List recent jobs:
    relayctl jobs --where 'q(eq(status,failure))'

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    CIRELAY_API_URL   API endpoint (default: http://localhost:6460)
    CIRELAY_TOKEN     Remoteci API secret for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".relayctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".relayctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "CIRELAY_VARNAME"
	viper.SetEnvPrefix("CIRELAY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.relayctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6460", "cirelay controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "Remoteci API secret for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
