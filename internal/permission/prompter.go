package permission

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ncruces/zenity"
)

// Prompter asks the user a yes/no question or shows a message.
type Prompter interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
	Inform(ctx context.Context, title, message string) error
}

// TerminalPrompter prompts on a line-oriented terminal.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter reads answers from in and writes prompts to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// Confirm accepts "y" or "yes". Anything else, including EOF, is a no.
func (p *TerminalPrompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	fmt.Fprintf(p.out, "%s\n%s (y/N): ", title, message)
	input, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes", nil
}

func (p *TerminalPrompter) Inform(ctx context.Context, title, message string) error {
	_, err := fmt.Fprintf(p.out, "%s\n%s\n", title, message)
	return err
}

// DialogPrompter uses native dialogs.
type DialogPrompter struct{}

func (DialogPrompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	err := zenity.Question(message,
		zenity.Context(ctx),
		zenity.Title(title),
		zenity.OKLabel("Allow"),
		zenity.CancelLabel("Don't allow"),
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return false, nil
		}
		return false, fmt.Errorf("question dialog: %w", err)
	}
	return true, nil
}

func (DialogPrompter) Inform(ctx context.Context, title, message string) error {
	if err := zenity.Info(message, zenity.Context(ctx), zenity.Title(title)); err != nil && !errors.Is(err, zenity.ErrCanceled) {
		return fmt.Errorf("info dialog: %w", err)
	}
	return nil
}
