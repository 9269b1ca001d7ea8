package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"waveline/internal/cache"
)

func newMessagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "messages <peer>",
		Short: "Show the cached message history with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := args[0]
			return ctx.withCache(func(store *cache.Store) error {
				messages, err := store.Messages(cmd.Context(), peer)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(messages) == 0 {
					fmt.Fprintf(out, "No cached messages with %s.\n", peer)
					return nil
				}

				rows := make([][]string, 0, len(messages))
				for _, msg := range messages {
					content := msg.Content
					if msg.Attachment != "" {
						content = fmt.Sprintf("%s [attachment: %s]", content, msg.Attachment)
					}
					if msg.Edited {
						content += " (edited)"
					}
					rows = append(rows, []string{
						formatWhen(msg.CreatedAt),
						msg.SenderID,
						truncate(content, 72),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"When", "From", "Message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
