// Package prompt asks the user for credentials and conflict decisions, with
// huh forms on a terminal and plain line input otherwise.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/docwiz/wizsync/internal/reconcile"
	"github.com/docwiz/wizsync/internal/report"
)

// ErrNoInput is returned when input ends before an answer was given.
var ErrNoInput = errors.New("no input")

// Credentials is a user and password pair.
type Credentials struct {
	User     string
	Password string
}

// Prompter reads answers from one input stream.
type Prompter struct {
	in          *lineReader
	rawIn       io.Reader
	out         io.Writer
	interactive bool
}

// New creates a prompter. Forms are used when in is a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:          newLineReader(in),
		rawIn:       in,
		out:         out,
		interactive: IsTerminal(in),
	}
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r io.Reader) bool {
	return report.IsTerminal(r)
}

// Interactive reports whether forms are used.
func (p *Prompter) Interactive() bool {
	return p.interactive
}

// Credentials asks for a user and password. user pre-fills the user field.
func (p *Prompter) Credentials(ctx context.Context, user string) (Credentials, error) {
	if p.interactive {
		return p.credentialsForm(ctx, user)
	}

	if user == "" {
		var err error
		if user, err = p.line(ctx, "User: "); err != nil {
			return Credentials{}, err
		}
	}
	password, err := p.line(ctx, "Password: ")
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{User: user, Password: password}, nil
}

func (p *Prompter) credentialsForm(ctx context.Context, user string) (Credentials, error) {
	creds := Credentials{User: user}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User").
				Value(&creds.User),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password),
		),
	).WithInput(p.rawIn).WithOutput(p.out)

	if err := form.RunWithContext(ctx); err != nil {
		return Credentials{}, fmt.Errorf("credential prompt: %w", err)
	}
	return creds, nil
}

func (p *Prompter) line(ctx context.Context, label string) (string, error) {
	fmt.Fprint(p.out, label)
	return p.in.read(ctx)
}

type lineResult struct {
	line string
	err  error
}

// lineReader reads lines in a goroutine so a read can be abandoned when ctx
// is done. An abandoned read stays pending and delivers to the next caller,
// so no input line is lost and only one goroutine reads at a time.
type lineReader struct {
	br      *bufio.Reader
	pending chan lineResult
}

func newLineReader(in io.Reader) *lineReader {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	return &lineReader{br: br}
}

func (l *lineReader) read(ctx context.Context) (string, error) {
	if l.pending == nil {
		ch := make(chan lineResult, 1)
		l.pending = ch
		go func() {
			s, err := readLine(l.br)
			ch <- lineResult{line: s, err: err}
		}()
	}

	select {
	case res := <-l.pending:
		l.pending = nil
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned as is.
func readLine(br *bufio.Reader) (string, error) {
	s, err := br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if s == "" {
			return "", ErrNoInput
		}
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// Resolver returns a conflict resolver reading from the same input: a
// confirm form on a terminal, a y/n line prompt otherwise.
func (p *Prompter) Resolver() reconcile.Resolver {
	if p.interactive {
		return &FormResolver{in: p.rawIn, out: p.out}
	}
	return &LineResolver{in: p.in, out: p.out}
}

// LineResolver asks "Overwrite? (y/n)" for every conflict. Any other answer
// repeats the question without touching the file. Cancelling ctx abandons
// the question and keeps the local file.
type LineResolver struct {
	in  *lineReader
	out io.Writer
}

// NewLineResolver creates a resolver reading answers from in.
func NewLineResolver(in io.Reader, out io.Writer) *LineResolver {
	return &LineResolver{in: newLineReader(in), out: out}
}

// Resolve implements reconcile.Resolver.
func (r *LineResolver) Resolve(ctx context.Context, c reconcile.Conflict) (reconcile.Decision, error) {
	for {
		if err := ctx.Err(); err != nil {
			return reconcile.KeepLocal, err
		}

		fmt.Fprintf(r.out, "The file %s has been modified locally. Overwrite? (y/n) ", c.Path)
		answer, err := r.in.read(ctx)
		if err != nil {
			return reconcile.KeepLocal, err
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return reconcile.OverwriteLocal, nil
		case "n", "no":
			return reconcile.KeepLocal, nil
		default:
			fmt.Fprintln(r.out, "Invalid option")
		}
	}
}

// FormResolver asks with a huh confirm form.
type FormResolver struct {
	in  io.Reader
	out io.Writer
}

// Resolve implements reconcile.Resolver.
func (r *FormResolver) Resolve(ctx context.Context, c reconcile.Conflict) (reconcile.Decision, error) {
	overwrite := false
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("%s was modified locally", c.Path)).
		Description(fmt.Sprintf("Wizard %d: local %d bytes, remote %d bytes.", c.Wizard.ID, len(c.Local), len(c.Remote))).
		Affirmative("Overwrite with remote").
		Negative("Keep local").
		Value(&overwrite)

	form := huh.NewForm(huh.NewGroup(confirm)).WithInput(r.in).WithOutput(r.out)
	if err := form.RunWithContext(ctx); err != nil {
		return reconcile.KeepLocal, fmt.Errorf("conflict prompt: %w", err)
	}

	if overwrite {
		return reconcile.OverwriteLocal, nil
	}
	return reconcile.KeepLocal, nil
}

// ResolverFor returns the resolver for a configured policy.
func (p *Prompter) ResolverFor(policy reconcile.Policy) reconcile.Resolver {
	switch policy {
	case reconcile.PolicyOverwrite:
		return reconcile.Always(reconcile.OverwriteLocal)
	case reconcile.PolicyKeepLocal:
		return reconcile.Always(reconcile.KeepLocal)
	default:
		return p.Resolver()
	}
}
