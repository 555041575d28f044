package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/sortie/internal/cli"
	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/config"
	"github.com/Veraticus/sortie/internal/intake"
	"github.com/Veraticus/sortie/internal/model"
	"github.com/Veraticus/sortie/internal/notify"
	"github.com/Veraticus/sortie/internal/pipeline"
	"github.com/Veraticus/sortie/internal/upload"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rename downloaded attachments and append them to the upload log",
		Long: `Run one pass over the download directory: rename and partition every
file, match the files to the messages they arrived with, resolve each file's
taxonomy destination and append the results to the upload log.

Messages come from a JSON manifest (--manifest) or are read directly from a
directory of .eml files (--eml), whose attachments are extracted into the
download directory first.`,
		RunE: runRun,
	}

	cmd.Flags().String("dir", "", "download directory (default: paths.download)")
	cmd.Flags().String("manifest", "", "JSON manifest of inbound messages")
	cmd.Flags().String("eml", "", "directory of .eml messages to extract before the run")
	cmd.Flags().Bool("upload", false, "upload classified files to object storage after the run")
	cmd.Flags().Bool("notify", false, "write confirmation messages to the outbox after the run")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	cmd.MarkFlagsMutuallyExclusive("manifest", "eml")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		settings.Paths.Download = config.ExpandPath(dir)
	}
	doUpload, _ := cmd.Flags().GetBool("upload")
	doNotify, _ := cmd.Flags().GetBool("notify")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	out := cmd.OutOrStdout()
	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := interrupts.HandleInterrupts(cmd.Context(), "Files already moved are still written to the upload log.")
	defer stop()

	var progress func(done, total int)
	if !noProgress {
		progress = cli.NewProgress(cmd.ErrOrStderr(), "Renaming files...")
	}

	classifier, err := loadClassifier(settings)
	if err != nil {
		return err
	}
	ren, err := loadRenamer(settings, progress)
	if err != nil {
		return err
	}

	// Rules and catalog must load before intake writes into the download dir.
	messages, err := loadMessages(ctx, cmd, settings)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p, err := pipeline.New(pipeline.Deps{
		Renamer:    ren,
		Classifier: classifier,
		Store:      store,
		LockPath:   settings.Paths.LockFile(settings.LogBackend),
	})
	if err != nil {
		return err
	}

	report, err := p.Run(ctx, pipeline.Input{Directory: settings.Paths.Download, Messages: messages})
	if err != nil {
		return common.NewUserError("Run failed", err)
	}
	fmt.Fprintln(out, cli.RenderRunSummary(report))

	if doUpload {
		if err := uploadEntries(ctx, out, settings, store, report); err != nil {
			return err
		}
	}

	if doNotify {
		if settings.NotifyFrom == "" {
			return common.NewUserError("Set notify.from to write confirmations", common.ErrMissingConfig)
		}
		notifier, err := notify.New(settings.NotifyFrom, settings.Paths.Outbox)
		if err != nil {
			return err
		}
		paths, err := notifier.WriteAll(report.RunID, report.Reconciled)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Wrote %d confirmations to %s", len(paths), settings.Paths.Outbox)))
	}

	return nil
}

func loadMessages(ctx context.Context, cmd *cobra.Command, settings config.Settings) ([]model.InboundMessage, error) {
	manifest, _ := cmd.Flags().GetString("manifest")
	emlDir, _ := cmd.Flags().GetString("eml")

	switch {
	case manifest != "":
		messages, err := intake.LoadManifest(config.ExpandPath(manifest))
		if err != nil {
			return nil, common.NewUserError("Could not load message manifest", err)
		}
		return messages, nil
	case emlDir != "":
		extractor, err := intake.New(intake.Options{SubjectFilter: settings.SubjectFilter})
		if err != nil {
			return nil, err
		}
		result, err := extractor.ExtractDir(ctx, config.ExpandPath(emlDir), settings.Paths.Download)
		if err != nil {
			return nil, common.NewUserError("Could not read messages", err)
		}
		return result.Messages, nil
	}

	slog.Warn("No messages given; files will be renamed but nothing is logged")
	return nil, nil
}

func uploadEntries(ctx context.Context, out io.Writer, settings config.Settings, store upload.StatusWriter, report pipeline.Report) error {
	if !settings.Upload.Configured() {
		return common.NewUserError("Set upload.endpoint and upload.bucket to upload files", common.ErrMissingConfig)
	}
	client, err := upload.NewS3Client(upload.S3Config{
		Endpoint:  settings.Upload.Endpoint,
		AccessKey: settings.Upload.AccessKey,
		SecretKey: settings.Upload.SecretKey,
		UseSSL:    settings.Upload.UseSSL,
	})
	if err != nil {
		return err
	}
	uploader, err := upload.New(client, store, upload.Options{
		Bucket: settings.Upload.Bucket,
		Prefix: settings.Upload.Prefix,
	})
	if err != nil {
		return err
	}

	summary, err := uploader.UploadAll(ctx, settings.Paths.Download, report.Reconciled.Entries())
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Uploaded %d files (%d failed, %d skipped)", summary.Uploaded, summary.Failed, summary.Skipped)
	if summary.Failed > 0 {
		fmt.Fprintln(out, cli.FormatWarning(msg))
	} else {
		fmt.Fprintln(out, cli.FormatSuccess(msg))
	}
	return nil
}
