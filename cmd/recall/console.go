package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/casualjim/recall/events"
	"github.com/casualjim/recall/internal/broker"
	"github.com/casualjim/recall/metrics"
	"github.com/casualjim/recall/session"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
)

const consoleRoom = "console"

func NewConsoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Talk to the tutor in the terminal",
		Long: `Runs a text-only tutor session in the terminal.

Type a message to answer the tutor, /state to print the current mode and
concept, or exit to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
			if err != nil {
				return err
			}
			room := newTerminal(cmd.OutOrStdout(), renderer)

			worker, err := newWorker(cfg, logger, broker.Local(), false, session.WithHooks(room))
			if err != nil {
				return err
			}
			return room.run(ctx, worker, cmd.InOrStdin())
		},
	}
}

// terminal is a text-only room on stdin and stdout. It also receives the
// session events to show tool calls and errors.
type terminal struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	audio    chan []byte
	chat     chan string
	// idle is signalled whenever the tutor is done with the last message.
	idle chan struct{}

	mu        sync.Mutex
	closeOnce sync.Once
}

func newTerminal(out io.Writer, renderer *glamour.TermRenderer) *terminal {
	return &terminal{
		out:      out,
		renderer: renderer,
		audio:    make(chan []byte),
		chat:     make(chan string),
		idle:     make(chan struct{}, 1),
	}
}

// run holds a session in the terminal until the learner quits.
func (t *terminal) run(ctx context.Context, worker *session.Worker, in io.Reader) error {
	sess, err := worker.Dispatch(ctx, t)
	if err != nil {
		return err
	}
	sess.OnShutdown(func(context.Context) { t.printUsage(sess.Usage()) })

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	t.chatLoop(ctx, in, sess)
	t.leave()
	return ignoreCanceled(<-done)
}

func (t *terminal) Name() string         { return consoleRoom }
func (t *terminal) Audio() <-chan []byte { return t.audio }
func (t *terminal) Chat() <-chan string  { return t.chat }

func (t *terminal) SendAudio(context.Context, []byte) error { return nil }

func (t *terminal) SendTranscript(_ context.Context, tr session.Transcript) error {
	if tr.Role != session.RoleAgent {
		return nil
	}
	text := tr.Text
	if rendered, err := t.renderer.Render(text); err == nil {
		text = strings.TrimRight(rendered, "\n")
	}

	t.mu.Lock()
	fmt.Fprintf(t.out, "%s:\n%s\n", color.GreenString("Tutor"), text)
	t.mu.Unlock()
	t.signalIdle()
	return nil
}

func (t *terminal) signalIdle() {
	select {
	case t.idle <- struct{}{}:
	default:
	}
}

func (t *terminal) leave() {
	t.closeOnce.Do(func() { close(t.audio) })
}

func (t *terminal) printUsage(u metrics.Summary) {
	t.printf("%s %d prompt tokens, %d completion tokens\n",
		color.New(color.Faint).Sprint("usage:"), u.LLMPromptTokens, u.LLMCompletionTokens)
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// chatLoop reads learner messages until exit, end of input or cancellation.
func (t *terminal) chatLoop(ctx context.Context, in io.Reader, sess *session.Session) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	if !t.wait(ctx) {
		return
	}
	for {
		t.printf("%s: ", color.CyanString("You"))
		var line string
		select {
		case <-ctx.Done():
			return
		case l, ok := <-lines:
			if !ok {
				t.printf("\n")
				return
			}
			line = strings.TrimSpace(l)
		}

		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"):
			return
		case line == "/state":
			t.mu.Lock()
			pp.Fprintln(t.out, sess.State().Snapshot())
			t.mu.Unlock()
			continue
		}

		select {
		case t.chat <- line:
		case <-ctx.Done():
			return
		}
		if !t.wait(ctx) {
			return
		}
	}
}

func (t *terminal) wait(ctx context.Context) bool {
	select {
	case <-t.idle:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *terminal) OnSessionStarted(context.Context, events.SessionStarted) {}
func (t *terminal) OnUserSpeech(context.Context, events.UserSpeech)         {}
func (t *terminal) OnAgentSpeech(context.Context, events.AgentSpeech)       {}
func (t *terminal) OnMetrics(context.Context, events.Metrics)               {}
func (t *terminal) OnSessionEnded(context.Context, events.SessionEnded)     {}

func (t *terminal) OnToolCall(_ context.Context, e events.ToolCall) {
	t.printf("%s\n", color.New(color.Faint).Sprintf("[%s %s]", e.Name, e.Arguments))
}

func (t *terminal) OnError(_ context.Context, e events.Error) {
	t.printf("%s %v\n", color.RedString("error:"), e.Err)
	t.signalIdle()
}
