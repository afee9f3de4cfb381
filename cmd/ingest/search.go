package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/service"
)

var (
	searchDomain string
	searchTopK   string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search an owner's memes or TikTok videos",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := services.Search.Search(cmd.Context(), service.SearchRequest{
			Query:  strings.Join(args, " "),
			Owner:  owner,
			Domain: domain.Domain(searchDomain),
			TopK:   searchTopK,
		})
		if err != nil {
			return err
		}
		if res.Total == 0 {
			fmt.Println("No results.")
			return nil
		}
		for i, r := range res.Results {
			fmt.Printf("%2d. %.3f  %s\n", i+1, r.Score, r.ID)
			if d, ok := r.Metadata["description"].(string); ok && d != "" {
				fmt.Printf("      %s\n", d)
			}
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <image-url>",
	Short: "Delete an uploaded meme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := services.Delete.Delete(cmd.Context(), owner, args[0])
		if res != nil {
			for _, s := range res.Steps {
				state := "ok"
				switch {
				case s.Skipped:
					state = "skipped"
				case !s.OK:
					state = "failed: " + s.Error
				}
				fmt.Printf("%-7s %s\n", s.Step, state)
			}
		}
		return err
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchDomain, "domain", string(domain.DomainMeme), "meme or tiktok")
	searchCmd.Flags().StringVarP(&searchTopK, "top-k", "k", "", "results to return (tiktok only; empty uses the default)")
}
