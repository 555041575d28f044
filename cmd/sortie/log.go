package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/sortie/internal/cli"
	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/logstore"
	"github.com/Veraticus/sortie/internal/model"
	"github.com/spf13/cobra"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect and update the upload log",
	}
	cmd.AddCommand(logListCmd())
	cmd.AddCommand(logMarkCmd())
	return cmd
}

func logListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upload log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			filter := logstore.Filter{}
			filter.RunID, _ = cmd.Flags().GetString("run")
			filter.SenderEmail, _ = cmd.Flags().GetString("sender")
			if cmd.Flags().Changed("status") {
				raw, _ := cmd.Flags().GetString("status")
				status, err := model.ParseUploadStatus(raw)
				if err != nil {
					return common.NewUserError("Unknown status (use pending, uploaded or error)", err)
				}
				filter.Status = &status
			}

			store, err := openStore(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			entries = filter.Apply(entries)

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No log entries"))
				return nil
			}
			fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Upload log (%d entries)", len(entries))))
			fmt.Fprintln(out, cli.RenderEntries(entries))
			return nil
		},
	}

	cmd.Flags().String("run", "", "only entries from this run")
	cmd.Flags().String("sender", "", "only entries from this sender")
	cmd.Flags().String("status", "", "only entries with this status (pending, uploaded, error)")
	return cmd
}

func logMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Record the upload status of a log entry",
		Long: `Set the upload status of the entry identified by run, sender and new
name. A status can only be set once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			var key model.EntryKey
			key.RunID, _ = cmd.Flags().GetString("run")
			key.SenderEmail, _ = cmd.Flags().GetString("sender")
			key.NewName, _ = cmd.Flags().GetString("name")
			raw, _ := cmd.Flags().GetString("status")
			status, err := model.ParseUploadStatus(raw)
			if err != nil {
				return common.NewUserError("Unknown status (use uploaded or error)", err)
			}

			store, err := openStore(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.SetUploadStatus(cmd.Context(), key, status)
			switch {
			case errors.Is(err, logstore.ErrEntryNotFound):
				return common.NewUserError("No log entry matches "+key.String(), err)
			case errors.Is(err, logstore.ErrStatusAlreadySet):
				return common.NewUserError("Upload status already recorded for "+key.String(), err)
			case err != nil:
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Marked %d entries as %s", n, status)))
			return nil
		},
	}

	cmd.Flags().String("run", "", "run id")
	cmd.Flags().String("sender", "", "sender email")
	cmd.Flags().String("name", "", "new file name")
	cmd.Flags().String("status", "", "uploaded or error")
	for _, name := range []string{"run", "sender", "name", "status"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
