package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/packassist/internal/app"
)

const (
	agentPrefix = "Agent: "
	welcome     = "IT Support Assistant is now online. How can I help you today?"
	farewell    = "Thank you! If you need further assistance, just let me know."
)

var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

// conversation is the part of triage.Service the chat loop drives.
type conversation interface {
	HandleTurn(ctx context.Context, sessionID, text string) (string, error)
	EndConversation(ctx context.Context, sessionID string) error
}

func newChatCmd(o *options) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive triage conversation",
		Long:  "Chat with the assistant on stdin/stdout. Type exit, quit or bye to leave.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.resolve(cmd); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			L, ctx, err := o.logger(ctx)
			if err != nil {
				return err
			}
			svc, cleanup, err := buildService(ctx, o, L)
			if err != nil {
				return err
			}
			defer cleanup()

			if sessionID == "" {
				sessionID = ulid.Make().String()
			}
			return runChat(ctx, svc, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session id (default: new session)")
	return cmd
}

// buildService opens every backing store for an in-process conversation.
func buildService(ctx context.Context, o *options, L log.Logger) (conversation, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				L.Error(context.Background(), err, "close failed")
			}
		}
	}

	store, closeStore, err := app.OpenIncidentStore(ctx, &o.app, L)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeStore)

	if err := app.SeedIfEmpty(ctx, store, o.app.KnownFailuresFile, L); err != nil {
		cleanup()
		return nil, nil, err
	}

	sessions, closeSessions, err := app.OpenSessions(ctx, &o.app, L)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeSessions)

	provider, err := app.NewProvider(&o.app)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	notifier, err := app.NewNotifier(&o.app, L)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc, err := app.NewService(&o.app, app.Deps{
		Store:    store,
		Sessions: sessions,
		Provider: provider,
		Notifier: notifier,
		Logger:   L,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// runChat reads one message per line until an exit word, EOF or ctx ends.
// A failed turn is reported and the loop continues so the user can retry.
func runChat(ctx context.Context, conv conversation, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, agentPrefix+welcome)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		fmt.Fprint(out, "You: ")
		var text string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return endChat(conv, sessionID, out)
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return endChat(conv, sessionID, out)
			}
			text = strings.TrimSpace(line)
		}

		if text == "" {
			continue
		}
		if exitWords[strings.ToLower(text)] {
			return endChat(conv, sessionID, out)
		}

		reply, err := conv.HandleTurn(ctx, sessionID, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return endChat(conv, sessionID, out)
			}
			fmt.Fprintf(out, "%sSorry, something went wrong (%v). Please try again.\n", agentPrefix, err)
			continue
		}
		fmt.Fprintln(out, agentPrefix+reply)
	}
}

func endChat(conv conversation, sessionID string, out io.Writer) error {
	fmt.Fprintln(out, agentPrefix+farewell)
	if err := conv.EndConversation(context.Background(), sessionID); err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return nil
}
