// Package prompt asks the operator for confirmation and passwords.
package prompt

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrNonInteractive is returned by Disabled.
var ErrNonInteractive = errors.New("interactive input is disabled")

// Prompter asks questions on behalf of the resolver.
type Prompter interface {
	Confirm(ctx context.Context, title string) (bool, error)
	Password(ctx context.Context, title string) (string, error)
}

// Interactive reports whether stdin and stdout are terminals.
func Interactive() bool {
	in, out := os.Stdin.Fd(), os.Stdout.Fd()
	return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
		(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
}

// Terminal prompts with huh forms. Aborting a form (Ctrl+C, Esc) counts as
// declining.
type Terminal struct {
	Accessible bool
}

// Confirm shows a yes/no question.
func (t Terminal) Confirm(ctx context.Context, title string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)
	if err := t.run(ctx, field); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// Password reads a masked value.
func (t Terminal) Password(ctx context.Context, title string) (string, error) {
	var value string
	field := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value)
	if err := t.run(ctx, field); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (t Terminal) run(ctx context.Context, field huh.Field) error {
	return huh.NewForm(huh.NewGroup(field)).
		WithAccessible(t.Accessible).
		WithShowHelp(false).
		RunWithContext(ctx)
}

// Disabled refuses every prompt.
type Disabled struct{}

// Confirm always fails with ErrNonInteractive.
func (Disabled) Confirm(context.Context, string) (bool, error) {
	return false, ErrNonInteractive
}

// Password always fails with ErrNonInteractive.
func (Disabled) Password(context.Context, string) (string, error) {
	return "", ErrNonInteractive
}
