// cmd/newsfeed/main.go
//
// This is the entry point for the campus news feed.
// Running `newsfeed` with no subcommand opens the interactive feed; the
// subcommands perform single tracker operations for scripting.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	projectDir string
	apiURL     string
)

var rootCmd = &cobra.Command{
	Use:   "newsfeed",
	Short: "Campus news feed in the terminal",
	Long: `newsfeed lists posts from the campus news API and lets you like,
dislike, publish and delete your own posts.

Reactions and the posts you created are remembered in .newsfeed/state
inside the project directory.

Run without arguments to open the interactive feed.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFeed(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "C", "", "Directory holding .newsfeed (default: current)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "News API base URL (overrides config and NEWSFEED_API_URL)")

	addCmd.Flags().StringVar(&addTitle, "title", "", "Post title (required)")
	addCmd.Flags().StringVar(&addBody, "body", "", "Post body (required)")
	addCmd.Flags().StringVar(&addAuthor, "author", "", "Author name (required)")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("body")
	_ = addCmd.MarkFlagRequired("author")

	rootCmd.AddCommand(listCmd, addCmd, likeCmd, dislikeCmd, deleteCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
