// Package cli implements the planview command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planview",
	Short: "Live hierarchical view of planning item records",
	Long: `planview maintains a live, queryable view of planning items
(projects, epics, features, stories, bugs) stored as editable markdown
records, keeping status groups, trees, completion ratios, and specification
links fresh as the records change on disk.

Quick start:
  planview init                       Initialize planview in current project
  planview list                       List items
  planview tree                       Show the item hierarchy
  planview set-status FEAT-001 ready  Move an item through its lifecycle
  planview watch                      Watch records and refresh live`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .planview/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	// Add subcommands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newSetStatusCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initViper reads in config file and ENV variables if set.
func initViper() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".planview")
		viper.AddConfigPath("$HOME/.planview")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("PLANVIEW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
