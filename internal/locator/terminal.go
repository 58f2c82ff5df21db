package locator

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TerminalPrompt asks yes/no questions on a line-oriented terminal. Anything
// other than y/yes (any case) or an empty answer when DefaultYes is set reads
// as no, as does end of input.
type TerminalPrompt struct {
	mu         sync.Mutex
	in         *bufio.Reader
	out        io.Writer
	DefaultYes bool
}

func NewTerminalPrompt(in io.Reader, out io.Writer) *TerminalPrompt {
	return &TerminalPrompt{in: bufio.NewReader(in), out: out}
}

func (p *TerminalPrompt) Ask(message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	hint := "[y/N]"
	if p.DefaultYes {
		hint = "[Y/n]"
	}
	fmt.Fprintf(p.out, "%s %s ", message, hint)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "예", "네":
		return true
	case "":
		return p.DefaultYes
	default:
		return false
	}
}

// WriterNotifier prints notices to a writer, one per line.
type WriterNotifier struct {
	mu  sync.Mutex
	Out io.Writer
}

func (n *WriterNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.Out, "! %s\n", message)
}
