package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"stridelink/internal/app"
	"stridelink/internal/chat"
	"stridelink/pkg/types"
)

func newSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List your chat sessions",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			self := application.Self()
			if self == nil {
				return fmt.Errorf("not logged in")
			}
			sessions, err := application.Client().Sessions(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No chat sessions yet.")
				return nil
			}
			for _, session := range sessions {
				_, peerName := session.Peer(self.UserID)
				fmt.Printf("%-12s %-20s %s\n", session.ID, peerName, session.Status)
			}
			return nil
		}),
	}
}

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <session-id>",
		Short: "Open a live chat session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, application *app.Application, args []string) error {
			return runChat(ctx, application, args[0])
		}),
	}
}

// chatScreen renders controller callbacks into the terminal. It prints
// each message once and a deletion marker once, no matter how often the
// change hook fires.
type chatScreen struct {
	controller *chat.Controller
	self       string

	mu      sync.Mutex
	out     io.Writer
	printed map[string]bool
	deleted map[string]bool
}

func newChatScreen(selfID string) *chatScreen {
	return &chatScreen{
		self:    selfID,
		out:     os.Stdout,
		printed: make(map[string]bool),
		deleted: make(map[string]bool),
	}
}

func (s *chatScreen) setOutput(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = w
}

func (s *chatScreen) messagesChanged() {
	s.renderAll(s.controller.Messages())
}

func (s *chatScreen) renderAll(messages []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range messages {
		if msg.Archived {
			if s.printed[msg.ID] && !s.deleted[msg.ID] {
				s.deleted[msg.ID] = true
				fmt.Fprintf(s.out, "-- message %s deleted --\n", msg.ID)
			}
			continue
		}
		if !s.printed[msg.ID] {
			s.printed[msg.ID] = true
			fmt.Fprintln(s.out, formatMessage(msg, s.self))
		}
	}
}

func (s *chatScreen) typingChanged(active bool, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active {
		fmt.Fprintf(s.out, "** %s is typing... **\n", userName)
	}
}

func (s *chatScreen) notice(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "!! %v\n", err)
}

func formatMessage(msg types.Message, selfID string) string {
	author := msg.AuthorID
	if author == selfID {
		author = "you"
	}
	stamp := msg.SentAt.Local().Format("15:04")

	switch msg.Kind {
	case types.MessageKindRecommendation:
		return fmt.Sprintf("[%s] %s (recommendation) %s  (id %s)", stamp, author, msg.Text, msg.ID)
	case types.MessageKindProfile:
		if msg.Profile != nil {
			return fmt.Sprintf("[%s] %s shared a profile: %.0f cm, %.1f kg, %s, goal %s  (id %s)",
				stamp, author, msg.Profile.Height, msg.Profile.Weight, msg.Profile.RunningLevel, msg.Profile.Goal, msg.ID)
		}
		return fmt.Sprintf("[%s] %s shared a profile  (id %s)", stamp, author, msg.ID)
	case types.MessageKindRunRecord:
		if msg.RunRecord != nil {
			return fmt.Sprintf("[%s] %s shared a run: %.2f km, %.0f kcal, %d steps  (id %s)",
				stamp, author, msg.RunRecord.Distance, msg.RunRecord.Calories, msg.RunRecord.Steps, msg.ID)
		}
		return fmt.Sprintf("[%s] %s shared a run  (id %s)", stamp, author, msg.ID)
	default:
		return fmt.Sprintf("[%s] %s: %s  (id %s)", stamp, author, msg.Text, msg.ID)
	}
}

func runChat(ctx context.Context, application *app.Application, sessionID string) error {
	self := application.Self()
	if self == nil {
		return fmt.Errorf("not logged in")
	}

	screen := newChatScreen(self.UserID)
	controller, err := application.NewChatController(chat.ScreenHooks{
		MessagesChanged: screen.messagesChanged,
		TypingChanged:   screen.typingChanged,
		Notice:          screen.notice,
	})
	if err != nil {
		return err
	}
	screen.controller = controller

	if err := controller.Mount(ctx, sessionID); err != nil {
		return err
	}
	defer controller.Unmount()

	rlConfig := &readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".stridelink_chat_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	// Every keystroke feeds the typing announcer; the tracker throttles.
	rlConfig.SetListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
		controller.InputChanged(string(line))
		return nil, 0, false
	})

	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer rl.Close()
	screen.setOutput(rl.Stdout())

	fmt.Fprintf(rl.Stdout(), "Session %s. /archive <id> deletes a message, /quit leaves.\n", sessionID)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch {
		case input == "/quit" || input == "/exit":
			return nil
		case strings.HasPrefix(input, "/archive "):
			messageID := strings.TrimSpace(strings.TrimPrefix(input, "/archive "))
			if err := controller.Archive(ctx, messageID); err != nil {
				fmt.Fprintf(rl.Stdout(), "!! %v\n", err)
			}
		case strings.HasPrefix(input, "/recommend "):
			text := strings.TrimSpace(strings.TrimPrefix(input, "/recommend "))
			if self.Role != types.RoleExpert {
				fmt.Fprintln(rl.Stdout(), "!! only experts send recommendations")
				continue
			}
			if err := controller.SendRecommendation(ctx, text); err != nil {
				fmt.Fprintf(rl.Stdout(), "!! %v\n", err)
			}
		case strings.HasPrefix(input, "/"):
			fmt.Fprintf(rl.Stdout(), "!! unknown command %s\n", strings.Fields(input)[0])
		default:
			if err := controller.SendText(ctx, input); err != nil {
				fmt.Fprintf(rl.Stdout(), "!! %v\n", err)
			}
		}
	}
}
