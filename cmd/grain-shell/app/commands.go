// Package app provides the commands of the grain-shell CLI.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/grain-editor/grain-shell/internal/config"
	"github.com/grain-editor/grain-shell/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "grain-shell",
	DisableAutoGenTag: true,
	Short:             "Local-first document shell for the grain editor",
	Long: `grain-shell keeps the documents of the grain editor saved. It coalesces edits
into few store writes, reports a save status per document and flushes
pending content when an editing surface closes.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format); defaults apply when empty")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("Error binding config flag", "error", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		return printVersion(cmd, format)
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

func printVersion(cmd *cobra.Command, format string) error {
	info := versions.GetInfo()
	switch format {
	case "json":
		output, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format version info as JSON: %w", err)
		}
		cmd.Println(string(output))
	case "":
		cmd.Printf("grain-shell %s (commit %s, built %s, %s, %s)\n",
			info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
	default:
		return fmt.Errorf("unknown format '%s'", format)
	}
	return nil
}
