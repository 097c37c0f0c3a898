package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/docchat/docchat"
)

var (
	configPath string
	logLevel   string
	version    string = "dev"
	commit     string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   internal.DefaultAppName,
	Short: "Chat with a model about the documents you upload",
	Long: `docchat keeps a conversation with a DashScope-hosted model and lets you
drop CSV, spreadsheet, PDF, text and image files into it as context.

Quick Start:
  docchat chat --user Ana       # talk in the terminal
  docchat serve --addr :8080    # expose sessions over HTTP

The API key is read from DASHSCOPE_API_KEY (a .env file in the working
directory is loaded first).`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml or "+internal.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override app.log_level (trace, debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
