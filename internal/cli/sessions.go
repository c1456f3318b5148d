package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and manage counselling sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.conv.Directory()
			printSessions(cmd.OutOrStdout(), dir.Sessions(), dir.Active())
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "new",
			Short: "Start a new session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := a.conv.NewSession(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ created %s\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <n> <title>",
			Short: "Rename session n",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.pickSession(append([]string{"rename"}, args[0]))
				if err != nil {
					return err
				}
				return a.conv.Directory().Rename(cmd.Context(), s.ID, strings.Join(args[1:], " "))
			},
		},
		&cobra.Command{
			Use:   "delete <n>",
			Short: "Delete session n and its messages",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.pickSession(append([]string{"delete"}, args[0]))
				if err != nil {
					return err
				}
				if err := a.conv.RemoveSession(cmd.Context(), s.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ deleted %q\n", s.Title)
				return nil
			},
		},
	)
	return cmd
}

func printSessions(out io.Writer, sessions []chat.Session, active string) {
	for i, s := range sessions {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		updated := time.UnixMilli(s.UpdatedAt).Format("2006-01-02 15:04")
		fmt.Fprintf(out, "%s %d. %s (%d messages, %s)\n", marker, i+1, s.Title, s.MessageCount, updated)
		if s.Preview != "" {
			fmt.Fprintf(out, "     %s\n", s.Preview)
		}
	}
}
