package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/campus-news/internal/devserver"
	"github.com/kingrea/campus-news/internal/news"
	"github.com/kingrea/campus-news/internal/tracker"
	"github.com/kingrea/campus-news/internal/tui"
)

var (
	addTitle  string
	addBody   string
	addAuthor string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the feed once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		if err := s.tracker.Initialize(cmd.Context()); err != nil {
			return err
		}
		return printFeed(cmd.OutOrStdout(), s.tracker)
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Publish a new post",
	Example: `  newsfeed add --title "Fest on Friday" --body "Main lawn, 6pm" --author "Student Council"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		if err := s.tracker.Initialize(cmd.Context()); err != nil {
			s.logbook.Warn("initialize before add: %v", err)
		}
		post, err := s.tracker.Submit(cmd.Context(), news.Draft{Title: addTitle, Body: addBody, AuthorName: addAuthor})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published post #%d\n", post.ID)
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <id>",
	Short: "Like a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReaction(cmd, args[0], tracker.EventLike)
	},
}

var dislikeCmd = &cobra.Command{
	Use:   "dislike <id>",
	Short: "Dislike a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReaction(cmd, args[0], tracker.EventDislike)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a post you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		if err := s.tracker.Initialize(cmd.Context()); err != nil {
			s.logbook.Warn("initialize before delete: %v", err)
		}
		if err := s.tracker.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted post #%d\n", id)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an in-memory news API for local development",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		srv := devserver.NewServer(devserver.SettingsFromConfig(cfg))
		if err := srv.Start(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "news API listening on %s (ctrl+c to stop)\n", srv.BaseURL())
		<-cmd.Context().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func runFeed(ctx context.Context) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	p := tea.NewProgram(
		tui.NewApp(s.tracker, tui.WithLogbook(s.logbook), tui.WithContext(ctx)),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run feed: %w", err)
	}
	return nil
}

func runReaction(cmd *cobra.Command, rawID string, event tracker.Event) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	s, err := openSession()
	if err != nil {
		return err
	}
	if err := s.tracker.Initialize(cmd.Context()); err != nil {
		s.logbook.Warn("initialize before %s: %v", event, err)
	}
	changed, err := s.tracker.React(cmd.Context(), id, event)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(cmd.OutOrStdout(), "post #%d already has your %s\n", id, event)
		return nil
	}
	post, _ := s.tracker.Post(id)
	fmt.Fprintf(cmd.OutOrStdout(), "%sd post #%d (%d likes)\n", event, id, post.Likes)
	return nil
}

func printFeed(w io.Writer, tr *tracker.Tracker) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLIKES\tYOU\tTITLE\tAUTHOR\tDATE")
	for _, post := range tr.Posts() {
		st := tr.State(post.ID)
		marks := []string{}
		switch st.Reaction {
		case tracker.Liked:
			marks = append(marks, "▲")
		case tracker.Disliked:
			marks = append(marks, "▼")
		}
		if st.Owned {
			marks = append(marks, "mine")
		}
		date := "-"
		if !post.PostDate.IsZero() {
			date = post.PostDate.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			post.ID, post.Likes, strings.Join(marks, " "), post.Title, post.AuthorName, date)
	}
	return tw.Flush()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid post id %q", raw)
	}
	return id, nil
}
