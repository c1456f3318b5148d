package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
)

const escalationNotice = `⚠️  It sounds like you may be in danger or in crisis.
   Counselling has been paused. If you are in immediate danger, call your
   local emergency number (911 / 112 / 999) or reach someone you trust.
   Type /ack when you are ready to continue.`

func newChatCmd(a *app) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start or continue a counselling conversation",
		Long: `Start or continue the active counselling session.

Commands available inside the conversation:
  /new          start a new session
  /list         list sessions
  /switch <n>   switch to session n
  /speak <n>    print message n as plain speakable text
  /ack          acknowledge the safety notice and continue
  /clear        clear the active session's history
  /quit         leave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if message != "" {
				return a.turn(cmd.Context(), out, message)
			}
			return a.repl(cmd.Context(), cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "send a single message and exit")
	return cmd
}

func (a *app) repl(ctx context.Context, in io.Reader, out io.Writer) error {
	printTranscript(out, a.conv.Log().Messages())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := a.turn(ctx, out, line); err != nil {
				fmt.Fprintf(out, "✗ %v\n", err)
			}
			continue
		}

		quit, err := a.command(ctx, out, line)
		if err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (a *app) command(ctx context.Context, out io.Writer, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/new":
		if _, err := a.conv.NewSession(ctx); err != nil {
			return false, err
		}
		printTranscript(out, a.conv.Log().Messages())
	case "/list":
		printSessions(out, a.conv.Directory().Sessions(), a.conv.Directory().Active())
	case "/switch":
		s, err := a.pickSession(fields)
		if err != nil {
			return false, err
		}
		if err := a.conv.SwitchSession(ctx, s.ID); err != nil {
			return false, err
		}
		printTranscript(out, a.conv.Log().Messages())
	case "/speak":
		msg, err := a.pickMessage(fields)
		if err != nil {
			return false, err
		}
		if text, speaking := a.conv.ToggleSpeak(msg.ID); speaking {
			fmt.Fprintf(out, "🔊 %s\n", text)
			a.conv.FinishSpeaking(msg.ID)
		}
	case "/ack":
		a.conv.AcknowledgeSafety()
		fmt.Fprintln(out, "✓ acknowledged")
	case "/clear":
		if err := a.conv.Log().Clear(ctx); err != nil {
			return false, err
		}
		printTranscript(out, a.conv.Log().Messages())
	default:
		return false, fmt.Errorf("unknown command: %s", fields[0])
	}
	return false, nil
}

// turn 提交一条消息并打印结果。
func (a *app) turn(ctx context.Context, out io.Writer, text string) error {
	turn, err := a.conv.Submit(ctx, text)
	if err != nil {
		if errors.Is(err, counsel.ErrModelCallFailed) {
			return errors.New("the counsellor is unavailable right now, please try again")
		}
		return err
	}

	switch {
	case turn.Escalation != nil:
		fmt.Fprintln(out, escalationNotice)
	case turn.Reply != nil:
		printMessage(out, *turn.Reply)
	}
	return nil
}

func (a *app) pickSession(fields []string) (chat.Session, error) {
	sessions := a.conv.Directory().Sessions()
	idx, err := index(fields, len(sessions))
	if err != nil {
		return chat.Session{}, err
	}
	return sessions[idx], nil
}

func (a *app) pickMessage(fields []string) (chat.Message, error) {
	messages := a.conv.Log().Messages()
	idx, err := index(fields, len(messages))
	if err != nil {
		return chat.Message{}, err
	}
	return messages[idx], nil
}

// index 解析 1 起始的序号。
func index(fields []string, n int) (int, error) {
	if len(fields) < 2 {
		return 0, errors.New("missing index")
	}
	i, err := strconv.Atoi(fields[1])
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("invalid index: %s", fields[1])
	}
	return i - 1, nil
}

func printTranscript(out io.Writer, messages []chat.Message) {
	for _, msg := range messages {
		printMessage(out, msg)
	}
}

func printMessage(out io.Writer, msg chat.Message) {
	who := "You"
	if msg.Role == chat.RoleModel {
		who = "KFM"
	}
	fmt.Fprintf(out, "%s: %s\n", who, chat.PlainText(msg.Text))
}
