package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/thebtf/designpartner/internal/orchestrator"
)

// console is a line-oriented conversation over a reader and writer.
type console struct {
	out   io.Writer
	lines chan string
	errs  chan error
}

func newConsole(in io.Reader, out io.Writer) *console {
	c := &console{out: out, lines: make(chan string), errs: make(chan error, 1)}
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			c.errs <- err
			return
		}
		c.errs <- io.EOF
	}()
	return c
}

// Listen implements orchestrator.Conversation. Blank lines are skipped.
func (c *console) Listen(ctx context.Context) (string, error) {
	for {
		fmt.Fprint(c.out, "> ")
		select {
		case line := <-c.lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			return line, nil
		case err := <-c.errs:
			fmt.Fprintln(c.out)
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Present implements orchestrator.Conversation.
func (c *console) Present(_ context.Context, r *orchestrator.TurnResult) error {
	if r.Notice != "" {
		fmt.Fprintf(c.out, "(%s)\n", r.Notice)
	}
	for _, id := range r.Report.Inserted {
		fmt.Fprintf(c.out, "  + noted %s\n", id)
	}
	for _, id := range r.Report.Revised {
		fmt.Fprintf(c.out, "  ~ revised %s\n", id)
	}
	p := r.Progress
	_, err := fmt.Fprintf(c.out, "[%d/%d covered] %s\n", p.Full+p.Partial, p.Total, r.Prompt)
	return err
}
