package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"waveline/internal/logging"
	"waveline/internal/session"
)

const reconnectDelay = 5 * time.Second

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the realtime channel and stream events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), ctx)
		},
	}
}

// runSession owns the retry policy: the session itself never reconnects, so
// the command loop re-establishes the channel after a transport loss.
func runSession(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	user, err := ctx.userID()
	if err != nil {
		return err
	}
	logger, err := ctx.newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lost := make(chan struct{}, 1)
	sess, err := session.New(cfg, user, logger, session.WithConnectivityFunc(func(connected bool, err error) {
		if !connected && err != nil {
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	}))
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Start(signalCtx); err != nil {
		return err
	}

	for {
		select {
		case <-signalCtx.Done():
			return sess.Close()
		case <-lost:
			logger.Warn("connection lost, reconnecting")
			for {
				select {
				case <-signalCtx.Done():
					return sess.Close()
				case <-time.After(reconnectDelay):
				}
				if err := sess.Reconnect(signalCtx); err != nil {
					logger.Warn("reconnect failed", logging.Error(err))
					continue
				}
				break
			}
		}
	}
}
