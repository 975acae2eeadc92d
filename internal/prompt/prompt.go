// Package prompt provides the yes/no confirmation used when a fit is
// interrupted.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Prompter asks a yes/no question.
type Prompter interface {
	Confirm(message string) (bool, error)
}

// Interactive reads answers from a terminal.
type Interactive struct {
	reader io.Reader
	writer io.Writer
}

func NewInteractive() *Interactive {
	return &Interactive{reader: os.Stdin, writer: os.Stderr}
}

func NewInteractiveWithIO(r io.Reader, w io.Writer) *Interactive {
	return &Interactive{reader: r, writer: w}
}

// Confirm prints message with a [y/N] hint. Only "y" or "yes" confirms;
// empty input and EOF decline.
func (p *Interactive) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.writer, "%s [y/N]: ", message)

	scanner := bufio.NewScanner(p.reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("prompt: read answer: %w", err)
		}
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

var _ Prompter = (*Interactive)(nil)

// ForInput returns an Interactive prompter reading f when f is a terminal,
// and a prompter that always keeps otherwise.
func ForInput(f *os.File) Prompter {
	if term.IsTerminal(int(f.Fd())) {
		return &Interactive{reader: f, writer: os.Stderr}
	}
	return Fixed{Answer: true}
}

// Fixed always gives the same answer.
type Fixed struct {
	Answer bool
	Err    error
}

func (f Fixed) Confirm(string) (bool, error) {
	if f.Err != nil {
		return false, f.Err
	}
	return f.Answer, nil
}

var _ Prompter = Fixed{}

// Recorder wraps a Prompter and remembers every message it was asked.
type Recorder struct {
	Next Prompter

	mu       sync.Mutex
	messages []string
}

func NewRecorder(next Prompter) *Recorder {
	return &Recorder{Next: next}
}

func (r *Recorder) Confirm(message string) (bool, error) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	return r.Next.Confirm(message)
}

// Calls returns how many times Confirm was called.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

var _ Prompter = (*Recorder)(nil)
