package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/huh/spinner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chriscow/ambient-agents-go/internal/config"
	"github.com/chriscow/ambient-agents-go/internal/server"
	"github.com/chriscow/ambient-agents-go/pkg/agent"
	"github.com/chriscow/ambient-agents-go/pkg/session"
	"github.com/chriscow/ambient-agents-go/pkg/version"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the music agent",
	Long: `Start an interactive conversation. The agent suggests tracks from the
catalog and plays them once you agree. Type "exit" or "quit" to leave.

With --remote the conversation runs on an "ambient serve" instance instead
of in this process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		thread, _ := cmd.Flags().GetString("thread")
		speakReplies, _ := cmd.Flags().GetBool("speak")
		llmName, _ := cmd.Flags().GetString("llm")
		remote, _ := cmd.Flags().GetString("remote")
		noSpinner, _ := cmd.Flags().GetBool("no-spinner")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if thread == "" {
			thread = uuid.NewString()
		}

		logger.Info("Starting chat",
			slog.String("service", "ambient"),
			slog.String("version", version.Version),
			slog.String("thread", thread),
			slog.String("remote", remote))

		ctx, cancel := signalContext()
		defer cancel()

		var c chat
		if remote != "" {
			c, err = newRemoteChat(ctx, cfg, logger, remote, thread, speakReplies)
		} else {
			c, err = newLocalChat(ctx, cfg, logger, thread, runtimeOptions{LLM: llmName, Speak: speakReplies})
		}
		if err != nil {
			return err
		}
		defer c.close()

		return repl(ctx, os.Stdin, os.Stdout, c, !noSpinner && isTerminal(os.Stdout))
	},
}

// chat runs turns for the REPL, locally or against a server.
type chat struct {
	turn  func(ctx context.Context, text string) (string, error)
	say   func(ctx context.Context, text string)
	close func()
}

func newLocalChat(ctx context.Context, cfg *config.Config, logger *slog.Logger, thread string, opts runtimeOptions) (chat, error) {
	rt, err := newRuntime(ctx, cfg, logger, opts)
	if err != nil {
		return chat{}, err
	}
	sess := session.New(thread, rt.prompt)
	return chat{
		turn: func(ctx context.Context, text string) (string, error) {
			reply, err := rt.loop.Run(ctx, sess, text)
			return reply.Text, err
		},
		say:   rt.say,
		close: rt.Close,
	}, nil
}

func newRemoteChat(ctx context.Context, cfg *config.Config, logger *slog.Logger, addr, thread string, speakReplies bool) (chat, error) {
	client := server.NewClient(addr, thread, logger)
	if err := client.Connect(ctx); err != nil {
		return chat{}, err
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Debug("Failed to close connection", slog.String("error", err.Error()))
		}
	}
	c := chat{
		turn:  client.Send,
		say:   func(context.Context, string) {},
		close: closeClient,
	}
	if !speakReplies && !cfg.Speech.Enabled {
		return c, nil
	}

	player, err := newPlayer(cfg, logger)
	if err != nil {
		closeClient()
		return chat{}, err
	}
	speech, err := newSpeech(cfg, logger)
	if err != nil {
		player.Close()
		closeClient()
		return chat{}, err
	}
	c.say = func(ctx context.Context, text string) {
		if err := speak(ctx, speech, player, cfg, text); err != nil {
			logger.Warn("Failed to speak reply", slog.String("error", err.Error()))
		}
	}
	c.close = func() {
		closeClient()
		player.Close()
	}
	return c, nil
}

// repl reads user lines until exit, quit, EOF or cancellation.
func repl(ctx context.Context, in io.Reader, out io.Writer, c chat, useSpinner bool) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "User: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		reply, err := runTurn(ctx, c, line, useSpinner)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %s\n", describeTurnError(err))
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", reply)
		c.say(ctx, reply)
	}
}

func runTurn(ctx context.Context, c chat, text string, useSpinner bool) (string, error) {
	if !useSpinner {
		return c.turn(ctx, text)
	}
	var reply string
	err := spinner.New().
		Title("Thinking...").
		Context(ctx).
		ActionWithErr(func(ctx context.Context) error {
			var err error
			reply, err = c.turn(ctx, text)
			return err
		}).
		Run()
	return reply, err
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}
	return false
}

// describeTurnError turns a failed turn into a line for the user.
func describeTurnError(err error) string {
	switch {
	case errors.Is(err, agent.ErrLoopExceeded):
		return "the agent made too many tool calls for one request; try rephrasing it"
	case errors.Is(err, agent.ErrTimeout):
		return "the request timed out; " + err.Error()
	case errors.Is(err, session.ErrSessionBusy):
		return "this thread is busy with another request"
	default:
		return err.Error()
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func init() {
	chatCmd.Flags().String("thread", "", "Conversation thread id (default: random)")
	chatCmd.Flags().Bool("speak", false, "Speak replies through the audio device")
	chatCmd.Flags().String("llm", "", "LLM plugin to use, overriding model.provider (e.g. fake for offline use)")
	chatCmd.Flags().String("remote", "", "Chat with an ambient server at this URL (e.g. ws://localhost:8080)")
	chatCmd.Flags().Bool("no-spinner", false, "Disable the progress spinner")
}
