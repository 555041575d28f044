package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Veraticus/sortie/internal/cli"
	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "sortie",
		Short: "Classify, rename and log incoming document attachments",
		Long: `sortie files the attachments people send in by email.

It renames each downloaded file from the metadata catalog, sorts it into
classified and unclassified folders, resolves its taxonomy destination and
appends one entry per sender and file to the upload log.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/sortie/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(renameCmd())
	rootCmd.AddCommand(intakeCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints a failed command's error. A UserError shows only its
// user message; the full chain goes to the debug log.
func reportError(w io.Writer, err error) {
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		fmt.Fprintln(w, cli.FormatError(userErr.UserMessage))
		slog.Debug("Command failed", "error", err)
		return
	}
	fmt.Fprintln(w, cli.FormatError(err.Error()))
}

func initConfig(_ *cobra.Command, _ []string) error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(fmt.Sprintf("%s/.config/sortie", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SORTIE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := common.SetupLogger(viper.GetString("logging.level"), viper.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sortie %s\n", version)
		},
	}
}
