package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/memehub/internal/app"
	"github.com/timmy/memehub/internal/config"
)

var (
	cfgFile  string
	owner    string
	services *app.App
)

var rootCmd = &cobra.Command{
	Use:   "memehub-ingest",
	Short: "Bulk import and query memes and TikTok videos",
	Long: `memehub-ingest runs the same pipelines as the API from the command line.

Example usage:
  memehub-ingest images -o me@example.com ./memes        # Upload a directory
  memehub-ingest tiktok -o me@example.com <url>...       # Index TikTok videos
  memehub-ingest search -o me@example.com "distracted"   # Search memes
  memehub-ingest delete -o me@example.com <image-url>    # Delete a meme`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		services, err = app.New(cmd.Context(), cfg)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if services == nil {
			return nil
		}
		return services.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&owner, "owner", "o", "", "owner email the items belong to")
	_ = rootCmd.MarkPersistentFlagRequired("owner")

	rootCmd.AddCommand(imagesCmd, tiktokCmd, searchCmd, deleteCmd)
}
