package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"waveline/internal/cache"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 18

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize cached conversations and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(func(store *cache.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}

				conversations, err := store.Conversations(cmd.Context())
				if err != nil {
					return err
				}
				unread := 0
				for _, conv := range conversations {
					unread += conv.Unread
				}
				notifications, err := store.Notifications(cmd.Context())
				if err != nil {
					return err
				}
				unreadNotifications := 0
				for _, n := range notifications {
					if !n.Read {
						unreadNotifications++
					}
				}

				fmt.Fprintln(out, renderStatusLine("Server", statusInfo, cfg.Server.APIBaseURL, colorize))
				fmt.Fprintln(out, renderStatusLine("Cache", statusInfo, store.Path(), colorize))
				fmt.Fprintln(out, renderStatusLine("Conversations", statusOK, fmt.Sprintf("%d cached", len(conversations)), colorize))
				fmt.Fprintln(out, renderStatusLine("Unread messages", kindForCount(unread), fmt.Sprintf("%d", unread), colorize))
				fmt.Fprintln(out, renderStatusLine("Notifications", kindForCount(unreadNotifications), fmt.Sprintf("%d unread of %d", unreadNotifications, len(notifications)), colorize))
				return nil
			})
		},
	}
}

func kindForCount(count int) statusKind {
	if count > 0 {
		return statusWarn
	}
	return statusOK
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", message)
	if !colorize {
		return line
	}
	switch kind {
	case statusOK:
		return ansiGreen + line + ansiReset
	case statusWarn:
		return ansiYellow + line + ansiReset
	default:
		return ansiBlue + line + ansiReset
	}
}
