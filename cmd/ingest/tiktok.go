package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/service"
)

var tiktokHints domain.MemeContext

var tiktokCmd = &cobra.Command{
	Use:   "tiktok <url>...",
	Short: "Scrape and index TikTok videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int
		for _, url := range args {
			res, err := services.TikTokSvc.Ingest(cmd.Context(), service.TikTokRequest{
				URL:     url,
				Owner:   owner,
				Context: tiktokHints,
			})
			if err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", url, err)
				continue
			}
			fmt.Printf("OK   %s (author %q, %d dims)\n", url, res.Meta.Author, res.VectorLength)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d urls failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	f := tiktokCmd.Flags()
	f.StringVar(&tiktokHints.PopCulture, "pop-culture", "", "pop culture references")
	f.StringVar(&tiktokHints.Characters, "characters", "", "characters in the video")
	f.StringVar(&tiktokHints.Notes, "notes", "", "other notes")
}
