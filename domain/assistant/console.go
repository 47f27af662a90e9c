package assistant

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Console abstracts the interactive terminal so the workflow can be
// driven by scripted input in tests.
type Console interface {
	// ReadLine prints the prompt and blocks for one line of input.
	// Returns io.EOF when the input stream is closed.
	ReadLine(prompt string) (string, error)
	Print(s string)
	Printf(format string, args ...any)
}

type stdioConsole struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole returns a Console bound to stdin/stdout.
func NewConsole() Console {
	return &stdioConsole{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (c *stdioConsole) ReadLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *stdioConsole) Print(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *stdioConsole) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}
