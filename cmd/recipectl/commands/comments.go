package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"recipebox/internal/commentsync"
	"recipebox/internal/models"

	"github.com/spf13/cobra"
)

func newCommentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "comments",
		Aliases: []string{"comment", "c"},
		Short:   "Read, post and follow recipe comments",
	}
	cmd.AddCommand(
		newCommentsListCmd(a),
		newCommentsAddCmd(a),
		newCommentsDeleteCmd(a),
		newCommentsWatchCmd(a),
	)
	return cmd
}

func newCommentsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <recipe-id>",
		Short: "List a recipe's comments, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), false)
			if err != nil {
				return err
			}
			comments, err := c.ListComments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printer().comments(comments)
		},
	}
}

func newCommentsAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <recipe-id> <text>...",
		Short: "Comment on a recipe",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			comment, err := c.InsertComment(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printer().encode(comment)
			}
			a.printer().success("Comment posted (%s)", comment.ID)
			return nil
		},
	}
}

func newCommentsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete one of your comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			if err := c.DeleteComment(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printer().success("Deleted comment %s", args[0])
			return nil
		},
	}
}

func newCommentsWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <recipe-id>",
		Short: "Follow a recipe's comments live until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := a.client(ctx, false)
			if err != nil {
				return err
			}
			view := commentsync.New(args[0], c, c.Session())
			return a.watch(ctx, view)
		},
	}
}

// watch prints the thread once and then every comment that appears or
// disappears, until ctx ends.
func (a *app) watch(ctx context.Context, view *commentsync.View) error {
	p := a.printer()
	known := map[string]bool{}
	changes := make(chan []models.CommentWithUser, 16)
	view.OnChange(func(list []models.CommentWithUser) {
		select {
		case changes <- list:
		case <-ctx.Done():
		}
	})

	if err := view.Load(ctx); err != nil {
		return err
	}
	if err := view.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = view.Close() }()

	initial := view.Snapshot()
	for _, c := range initial {
		known[c.ID] = true
	}
	if p.json {
		if err := p.encode(initial); err != nil {
			return err
		}
	} else {
		p.section(fmt.Sprintf("Watching %s (%d comments, Ctrl-C to stop)", view.RecipeID(), len(initial)))
		_ = p.comments(initial)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case list := <-changes:
			present := make(map[string]bool, len(list))
			for _, c := range list {
				present[c.ID] = true
				if known[c.ID] {
					continue
				}
				known[c.ID] = true
				if p.json {
					_ = p.encode(c)
					continue
				}
				p.comment(c)
			}
			for id := range known {
				if present[id] {
					continue
				}
				delete(known, id)
				if p.json {
					_ = p.encode(map[string]string{"deleted_id": id})
					continue
				}
				p.warning("Comment %s was deleted", id)
			}
		}
	}
}
