package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/uilink/api/schemas"
	"github.com/xkilldash9x/uilink/internal/agent"
	"github.com/xkilldash9x/uilink/internal/observability"
)

// errQuit ends a console session at the operator's request. Returning it
// from an errgroup member cancels the rest of the group.
var errQuit = errors.New("quit requested")

// lineHandler runs one console line. Returning errQuit ends the session;
// other errors are printed and the session continues.
type lineHandler func(ctx context.Context, line string) error

// readLines delivers lines from r until EOF or ctx is done. A read already
// blocked on r is not interrupted.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// runConsole prompts on out and feeds each line of in to handle. EOF ends the
// session with nil so a detached stdin does not stop the command.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, prompt string, handle lineHandler) error {
	lines := readLines(ctx, in)
	for {
		fmt.Fprint(out, prompt)
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				return errQuit
			}
			err := handle(ctx, line)
			if errors.Is(err, errQuit) {
				return err
			}
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
	}
}

// debugAgent is the part of the agent handle the console drives.
type debugAgent interface {
	Ping() bool
	Scan(ctx context.Context) ([]schemas.ElementRecord, error)
	Status() agent.Status
}

const agentConsoleHelp = `commands:
  ping          send a ping to the controller
  scan          scan the page and print the records
  status        print the connection status
  level [name]  print or set the log level (debug, info, warn, error)
  exit          stop the agent`

// agentConsole handles debug commands against a running agent.
func agentConsole(a debugAgent, out io.Writer) lineHandler {
	return func(ctx context.Context, line string) error {
		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case "ping":
			if a.Ping() {
				fmt.Fprintln(out, "ping sent")
			} else {
				fmt.Fprintln(out, "not connected; ping not sent")
			}
		case "scan":
			records, err := a.Scan(ctx)
			if err != nil {
				return err
			}
			return printJSON(out, records, true)
		case "status":
			return printJSON(out, a.Status(), true)
		case "level":
			if len(fields) > 1 {
				if err := observability.SetLevel(fields[1]); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "log level:", observability.Level())
		case "help":
			fmt.Fprintln(out, agentConsoleHelp)
		default:
			return fmt.Errorf("unknown command %q (try help)", line)
		}
		return nil
	}
}

// printJSON writes v to out followed by a newline.
func printJSON(out io.Writer, v interface{}, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	b = append(b, '\n')
	_, err = out.Write(b)
	return err
}
