package main

import (
	"fmt"
	"path/filepath"

	"github.com/Veraticus/sortie/internal/cli"
	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/config"
	"github.com/Veraticus/sortie/internal/intake"
	"github.com/spf13/cobra"
)

func intakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intake EML_DIR",
		Short: "Extract attachments from saved messages and write a manifest",
		Long: `Read every .eml file in EML_DIR whose subject contains the subject filter,
save its attachments into the download directory and write a JSON manifest
of the messages for a later "sortie run --manifest".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			filter := settings.SubjectFilter
			if cmd.Flags().Changed("subject") {
				filter, _ = cmd.Flags().GetString("subject")
			}
			manifest, _ := cmd.Flags().GetString("out")
			if manifest == "" {
				manifest = filepath.Join(filepath.Dir(settings.Paths.Log), "manifest.json")
			}

			extractor, err := intake.New(intake.Options{SubjectFilter: filter})
			if err != nil {
				return err
			}
			result, err := extractor.ExtractDir(cmd.Context(), config.ExpandPath(args[0]), settings.Paths.Download)
			if err != nil {
				return common.NewUserError("Could not read messages", err)
			}
			if err := intake.WriteManifest(config.ExpandPath(manifest), result.Messages); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Diagnostics) > 0 {
				fmt.Fprint(out, cli.RenderDiagnostics(result.Diagnostics))
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%d messages, %d attachments (%d skipped by subject)",
				len(result.Messages), result.Files, result.Skipped)))
			fmt.Fprintln(out, cli.FormatInfo("Manifest written to "+manifest))
			return nil
		},
	}

	cmd.Flags().String("subject", "", "subject filter (default: intake.subject_filter)")
	cmd.Flags().String("out", "", "manifest path (default: next to the upload log)")
	return cmd
}
