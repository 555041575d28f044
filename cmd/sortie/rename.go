package main

import (
	"fmt"

	"github.com/Veraticus/sortie/internal/cli"
	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/config"
	"github.com/spf13/cobra"
)

func renameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename [DIR]",
		Short: "Rename and partition files without touching the log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			dir := settings.Paths.Download
			if len(args) == 1 {
				dir = config.ExpandPath(args[0])
			}

			ren, err := loadRenamer(settings, nil)
			if err != nil {
				return err
			}
			result, err := ren.RenameAll(dir)
			if err != nil {
				return common.NewUserError("Rename failed", err)
			}

			out := cmd.OutOrStdout()
			for _, rec := range result.Records {
				if rec.Classified {
					fmt.Fprintf(out, "%s %s → %s/%s\n", cli.SuccessIcon, rec.OriginalName, rec.Partition, rec.NewName)
				} else {
					fmt.Fprintf(out, "%s %s → %s/\n", cli.SubtleStyle.Render("-"), rec.OriginalName, rec.Partition)
				}
			}
			if len(result.Diagnostics) > 0 {
				fmt.Fprint(out, cli.RenderDiagnostics(result.Diagnostics))
			}
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d files, %d classified", len(result.Records), result.Classified())))
			return nil
		},
	}
	return cmd
}
