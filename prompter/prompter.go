package prompter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Prompter synchronously asks the user for input needed mid-login, like an SMS MFA code
type Prompter interface {
	// PromptText prompts a user to enter a line of text
	PromptText(ctx context.Context, message string) (string, error)
}

type prompt struct {
	out     io.Writer
	scanner *bufio.Scanner
	lines   chan result
}

type result struct {
	line string
	err  error
}

// New creates a Prompter reading answers from 'in' and writing messages to 'out'
func New(in io.Reader, out io.Writer) Prompter {
	p := &prompt{
		out:     out,
		scanner: bufio.NewScanner(in),
		lines:   make(chan result),
	}
	go p.readLines()
	return p
}

func (p *prompt) readLines() {
	for p.scanner.Scan() {
		p.lines <- result{line: strings.TrimSpace(p.scanner.Text())}
	}
	err := p.scanner.Err()
	if err == nil {
		err = errors.New("No more input")
	}
	p.lines <- result{err: err}
}

func (p *prompt) PromptText(ctx context.Context, message string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", message); err != nil {
		return "", err
	}
	select {
	case res := <-p.lines:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
