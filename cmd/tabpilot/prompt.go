package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hazyhaar/tabpilot/host"
)

// terminalPrompter asks on the terminal. One goroutine owns the input and
// hands lines to whichever prompt is waiting, so an abandoned prompt never
// leaves a second reader behind.
type terminalPrompter struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
	err   error // set before lines is closed
}

func newTerminalPrompter() *terminalPrompter {
	return newPrompter(os.Stdin, os.Stderr)
}

func newPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: in, out: out}
}

func (t *terminalPrompter) ConfirmPermissions(ctx context.Context, perms []host.Permission) (bool, error) {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	fmt.Fprintf(t.out, "%s %s [y/N] ", warnStyle.Render("tabpilot needs permission:"), strings.Join(names, ", "))
	line, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (t *terminalPrompter) SaveAs(ctx context.Context, suggested string) (string, error) {
	fmt.Fprintf(t.out, "Save as [%s]: ", suggested)
	line, err := t.readLine(ctx)
	if err != nil {
		return "", err
	}
	if line == "" {
		return suggested, nil
	}
	return line, nil
}

// readLine returns one trimmed line. EOF counts as an empty answer.
func (t *terminalPrompter) readLine(ctx context.Context) (string, error) {
	t.once.Do(t.startReader)
	select {
	case line, ok := <-t.lines:
		if !ok {
			return "", t.err
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *terminalPrompter) startReader() {
	t.lines = make(chan string)
	go func() {
		defer close(t.lines)
		r := bufio.NewReader(t.in)
		for {
			line, err := r.ReadString('\n')
			if err == nil || line != "" {
				t.lines <- strings.TrimSpace(line)
			}
			if err != nil {
				if err != io.EOF {
					t.err = err
				}
				return
			}
		}
	}()
}
