package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/ai776/daily-picks/internal/chat"
)

type assistCmd struct {
	plain bool
}

func (*assistCmd) Name() string     { return "assist" }
func (*assistCmd) Synopsis() string { return "chat with the assistant about the configured holdings" }
func (*assistCmd) Usage() string {
	return `picks assist [-plain]

  Interactive chat conditioned on the holdings from the config file.
  Type "bye" or send EOF to leave.
`
}

func (c *assistCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "print replies without markdown rendering")
}

func (c *assistCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return fail("startup error: %v", err)
	}
	defer a.close()

	session := chat.NewSession(a.gateway, a.portfolio, a.bus, a.cfg.Chat.ErrorMessage, a.log)

	render := func(s string) (string, error) { return glamour.Render(s, "dark") }
	if c.plain {
		render = func(s string) (string, error) { return s + "\n", nil }
	}

	if err := runAssist(ctx, session, os.Stdin, os.Stdout, render); err != nil {
		return fail("assist: %v", err)
	}
	return subcommands.ExitSuccess
}

type replySender interface {
	Send(ctx context.Context, text string, onUpdate func(chat.Message)) (chat.Message, error)
}

// runAssist reads one message per line from in until "bye" or EOF and
// writes each settled reply to out.
func runAssist(ctx context.Context, s replySender, in io.Reader, out io.Writer, render func(string) (string, error)) error {
	fmt.Fprintln(out, `Ask about your holdings. Type "bye" to quit.`)

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
		if strings.EqualFold(line, "bye") {
			return nil
		}

		reply, err := s.Send(ctx, line, nil)
		if err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) {
				continue
			}
			return err
		}

		text, err := render(reply.Text)
		if err != nil {
			text = reply.Text + "\n"
		}
		fmt.Fprint(out, text)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
