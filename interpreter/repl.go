package interpreter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/oarkflow/errors"
	"github.com/peterh/liner"

	"github.com/oarkflow/calc"
	"github.com/oarkflow/calc/pkg/storage"
	"github.com/oarkflow/calc/pkg/utils/fileutil"
)

const continuationPrompt = ".. "

const helpText = `Commands:
  :env           list bindings
  :unset NAME    remove binding NAME
  :save NAME     save Number and String bindings as workspace NAME
  :load NAME     load workspace NAME into the session
  :drop NAME     delete saved workspace NAME
  :workspaces    list saved workspaces
  :history [N]   show the last N evaluated inputs (default 10)
  :help          show this help
  :quit          leave (Ctrl+D works too)
Statements are separated by ';'. Unclosed '(' or '{' continue on the next line.`

// LineReader is the subset of liner.State the REPL reads from.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

var errorColor = color.New(color.FgRed)

// REPL runs the interactive loop on the terminal with line editing and a
// history file.
func (s *Session) REPL(ctx context.Context) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if path := s.cfg.HistoryFile; path != "" {
		if f, err := os.Open(path); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(path); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}
	return s.Loop(ctx, &historyReader{State: ln}, os.Stdout)
}

type historyReader struct {
	*liner.State
}

func (h *historyReader) Prompt(prompt string) (string, error) {
	line, err := h.State.Prompt(prompt)
	if err == nil && strings.TrimSpace(line) != "" {
		h.AppendHistory(line)
	}
	return line, err
}

// Loop reads inputs from r until end of input, :quit or ctx cancellation.
// A failing input reports its error and the loop continues.
func (s *Session) Loop(ctx context.Context, r LineReader, out io.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		input, ok := readInput(r, s.cfg.Prompt)
		if !ok {
			fmt.Fprintln(out)
			return nil
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			quit, err := s.Command(ctx, trimmed, out)
			if err != nil {
				errorColor.Fprintln(out, err)
			}
			if quit {
				return nil
			}
			continue
		}
		lines, err := s.Exec(ctx, input)
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		if err != nil {
			errorColor.Fprintln(out, calc.WrapErrorWithSource(err, input))
		}
	}
}

// readInput collects lines until every '(' and '{' is closed. ok is false
// at end of input.
func readInput(r LineReader, prompt string) (string, bool) {
	var b strings.Builder
	depth := 0
	for {
		p := prompt
		if b.Len() > 0 {
			p = continuationPrompt
		}
		line, err := r.Prompt(p)
		if errors.Is(err, io.EOF) {
			if b.Len() > 0 {
				return b.String(), true
			}
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		depth += openDelimiters(line)
		if depth <= 0 || line == "" {
			return b.String(), true
		}
	}
}

// openDelimiters counts unclosed brackets outside string literals.
func openDelimiters(line string) int {
	count := 0
	inString, escaped := false, false
	for _, ch := range line {
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '(' || ch == '{':
			count++
		case ch == ')' || ch == '}':
			count--
		}
	}
	return count
}

// Command runs a ':' command. quit is true for :quit.
func (s *Session) Command(ctx context.Context, line string, out io.Writer) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true, nil
	case ":help":
		fmt.Fprintln(out, helpText)
	case ":env":
		if s.env.Len() == 0 {
			fmt.Fprintln(out, "no bindings")
		}
		for _, name := range s.env.Names() {
			val, _ := s.env.Get(name)
			fmt.Fprintf(out, "%s = %s\n", name, val)
		}
	case ":unset":
		if arg == "" {
			return false, errors.New("usage: :unset NAME")
		}
		if _, ok := s.env.Get(arg); !ok {
			return false, fmt.Errorf("no binding named %s", arg)
		}
		s.env.Delete(arg)
	case ":save":
		if err := s.requireStore(fields[0], arg); err != nil {
			return false, err
		}
		rec, err := s.store.SaveWorkspace(ctx, arg, s.env)
		if err != nil {
			return false, err
		}
		s.logger.Info().Str("workspace", rec.Name).Int("bindings", rec.Bindings).Msg("workspace saved")
		fmt.Fprintf(out, "saved %d bindings to %s\n", rec.Bindings, rec.Name)
	case ":load":
		if err := s.requireStore(fields[0], arg); err != nil {
			return false, err
		}
		n, err := s.store.LoadWorkspace(ctx, arg, s.env)
		if errors.Is(err, storage.ErrWorkspaceNotFound) {
			return false, fmt.Errorf("no workspace named %s", arg)
		}
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "loaded %d bindings from %s\n", n, arg)
	case ":drop":
		if err := s.requireStore(fields[0], arg); err != nil {
			return false, err
		}
		err := s.store.DeleteWorkspace(ctx, arg)
		if errors.Is(err, storage.ErrWorkspaceNotFound) {
			return false, fmt.Errorf("no workspace named %s", arg)
		}
		if err != nil {
			return false, err
		}
		s.logger.Info().Str("workspace", arg).Msg("workspace deleted")
		fmt.Fprintf(out, "dropped %s\n", arg)
	case ":workspaces":
		if s.store == nil {
			return false, errNoStore
		}
		list, err := s.store.ListWorkspaces(ctx)
		if err != nil {
			return false, err
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "no saved workspaces")
		}
		for _, w := range list {
			fmt.Fprintf(out, "%s (%d bindings, %s)\n", w.Name, w.Bindings, w.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
	case ":history":
		limit := 10
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return false, errors.New("usage: :history [N]")
			}
			limit = n
		}
		entries, err := s.history(ctx, limit)
		if err != nil {
			return false, err
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "no history")
		}
		for _, e := range entries {
			fmt.Fprintf(out, "[%s] %s\n", e.Time.Local().Format("15:04:05"), e.Source)
			if e.Error != "" {
				fmt.Fprintf(out, "  error: %s\n", firstLine(e.Error))
			}
		}
	default:
		return false, fmt.Errorf("unknown command %s, try :help", fields[0])
	}
	return false, nil
}

var (
	errNoStore   = errors.New("workspaces need a storage backend")
	errNoHistory = errors.New("history needs a transcript or a storage backend")
)

func (s *Session) requireStore(cmd, name string) error {
	if s.store == nil {
		return errNoStore
	}
	if name == "" {
		return errors.New("usage: " + cmd + " NAME")
	}
	return nil
}

// history returns up to limit recent inputs, oldest first, reading the
// transcript when there is one and the run history otherwise.
func (s *Session) history(ctx context.Context, limit int) ([]fileutil.Entry, error) {
	switch {
	case s.transcript != nil:
		entries, err := s.transcript.Entries()
		if err != nil {
			return nil, err
		}
		if len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		return entries, nil
	case s.store != nil:
		runs, err := s.store.RecentRuns(ctx, limit)
		if err != nil {
			return nil, err
		}
		entries := make([]fileutil.Entry, len(runs))
		for i, r := range runs {
			entries[len(runs)-1-i] = fileutil.Entry{
				ID:      r.ID,
				Time:    r.CreatedAt,
				Session: r.Session,
				Source:  r.Source,
				Output:  r.Output,
				Error:   r.Error,
			}
		}
		return entries, nil
	default:
		return nil, errNoHistory
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
