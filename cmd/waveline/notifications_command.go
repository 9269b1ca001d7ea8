package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"waveline/internal/cache"
)

func newNotificationsCommand(ctx *commandContext) *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List cached notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(store *cache.Store) error {
				notifications, err := store.Notifications(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				rows := make([][]string, 0, len(notifications))
				for _, n := range notifications {
					if unreadOnly && n.Read {
						continue
					}
					read := ""
					if !n.Read {
						read = "*"
					}
					rows = append(rows, []string{
						read,
						kindLabel(string(n.Kind)),
						truncate(n.Title, 32),
						truncate(n.Message, 48),
						formatWhen(n.CreatedAt),
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No cached notifications.")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"", "Kind", "Title", "Message", "When"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Show only unread notifications")
	return cmd
}
