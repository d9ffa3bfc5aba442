package shimmer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer asks the operator to confirm a destructive action
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc is a function which implements Confirmer
type ConfirmFunc func(prompt string) bool

// Confirm implements Confirmer
func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

var (
	// AlwaysConfirm confirms every prompt
	AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })
	// NeverConfirm declines every prompt
	NeverConfirm Confirmer = ConfirmFunc(func(string) bool { return false })
)

// TerminalConfirmer prints the prompt to Out and reads the answer from In. Only an answer
// starting with y confirms.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Confirmer
func (c TerminalConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(c.Out, "%s [y/N] ", prompt)
	answer, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
}
