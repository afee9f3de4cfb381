package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/timmy/memehub/internal/logger"
	"github.com/timmy/memehub/internal/service"
	"github.com/timmy/memehub/internal/source"
	"github.com/timmy/memehub/internal/source/staging"
)

var imagePattern string

var imagesCmd = &cobra.Command{
	Use:   "images <dir>",
	Short: "Upload every image under a directory",
	Long: `Upload every image under <dir> in batches of upload.max_files.
An optional manifest.jsonl in <dir> attaches hints to files:
  {"filename": "cats/grumpy.png", "characters": "Grumpy Cat"}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := staging.NewAdapter(args[0], imagePattern)
		total, err := src.Len()
		if err != nil {
			return err
		}
		if total == 0 {
			fmt.Println("No images found.")
			return nil
		}
		return uploadAll(cmd, src, total)
	},
}

func init() {
	imagesCmd.Flags().StringVar(&imagePattern, "pattern", staging.DefaultPattern, "doublestar glob relative to <dir>")
}

func uploadAll(cmd *cobra.Command, src source.Source, total int) error {
	ctx := cmd.Context()
	cfg := services.Config
	maxSize := cfg.Upload.MaxFileSize()

	bar := progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Uploading[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var succeeded, failed, skipped int
	var failures []string
	cursor := ""
	for {
		batch, next, err := src.FetchBatch(ctx, cursor, cfg.Upload.MaxFiles)
		if err != nil {
			return err
		}

		items := make([]service.UploadItem, 0, len(batch))
		for _, it := range batch {
			data, err := src.ReadFile(ctx, it)
			if err != nil || len(data) == 0 || int64(len(data)) > maxSize {
				skipped++
				failures = append(failures, fmt.Sprintf("%s: skipped (unreadable, empty or larger than %d MB)", it.Path, cfg.Upload.MaxFileSizeMB))
				_ = bar.Add(1)
				continue
			}
			items = append(items, service.UploadItem{Filename: it.Filename, Data: data, Context: it.Context})
		}

		if len(items) > 0 {
			res, err := services.Ingest.Upload(ctx, owner, items)
			if err != nil {
				return err
			}
			succeeded += res.Succeeded
			failed += res.Failed
			for _, r := range res.Items {
				if r.Err != nil {
					failures = append(failures, fmt.Sprintf("%s: failed at %s: %s", r.Filename, r.FailedStage, r.Error))
				}
			}
			_ = bar.Add(len(items))
		}

		if next == "" || ctx.Err() != nil {
			break
		}
		cursor = next
	}

	logger.With(logger.Fields{
		"succeeded": succeeded,
		"failed":    failed,
		"skipped":   skipped,
	}).Info(ctx, "Import from %s completed", src.GetSourceID())
	for _, f := range failures {
		fmt.Println("  " + f)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
