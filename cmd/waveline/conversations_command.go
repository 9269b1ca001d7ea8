package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"waveline/internal/cache"
)

func newConversationsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs"},
		Short:   "List cached conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(store *cache.Store) error {
				conversations, err := store.Conversations(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(conversations) == 0 {
					fmt.Fprintln(out, "No cached conversations. Run `waveline run` to sync.")
					return nil
				}

				rows := make([][]string, 0, len(conversations))
				for _, conv := range conversations {
					var flags []string
					if conv.Pinned {
						flags = append(flags, "pinned")
					}
					if conv.Muted {
						flags = append(flags, "muted")
					}
					rows = append(rows, []string{
						conv.PeerID,
						truncate(conv.LastMessage, 48),
						formatWhen(conv.LastMessageTime),
						fmt.Sprintf("%d", conv.Unread),
						strings.Join(flags, ", "),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Peer", "Last Message", "When", "Unread", "Flags"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
