package interpreter

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"

	"github.com/oarkflow/calc"
	"github.com/oarkflow/calc/pkg/config"
	"github.com/oarkflow/calc/pkg/storage"
	"github.com/oarkflow/calc/pkg/utils/fileutil"
)

// Session evaluates programs against one environment that lives as long as
// the session does.
type Session struct {
	ID         string
	cfg        *config.Config
	env        *calc.Environment
	store      *storage.Store
	transcript *fileutil.Transcript
	logger     *log.Logger
}

type Option func(*Session)

// WithStore enables :save, :load and run history.
func WithStore(store *storage.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithTranscript appends every evaluated line to t.
func WithTranscript(t *fileutil.Transcript) Option {
	return func(s *Session) { s.transcript = t }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession creates a session whose environment is seeded from cfg.
func NewSession(cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Session{
		ID:     xid.New().String(),
		cfg:    cfg,
		env:    cfg.NewEnvironment(),
		logger: &log.DefaultLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Env exposes the session environment.
func (s *Session) Env() *calc.Environment {
	return s.env
}

// Exec tokenizes, parses and runs source against the session environment.
// Lines holds the "<index>: <value>" output produced before any error.
func (s *Session) Exec(ctx context.Context, source string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	var out bytes.Buffer
	err := run(source, s.env, &out)
	lines := splitLines(out.String())
	s.record(ctx, source, lines, err, time.Since(start))
	return lines, err
}

func run(source string, env *calc.Environment, out *bytes.Buffer) error {
	nodes, err := calc.ParseString(source)
	if err != nil {
		return err
	}
	return calc.Run(nodes, env, out)
}

func (s *Session) record(ctx context.Context, source string, lines []string, runErr error, elapsed time.Duration) {
	var errText string
	if runErr != nil {
		errText = runErr.Error()
		s.logger.Debug().Str("session", s.ID).Err(runErr).Msg("evaluation failed")
	} else {
		s.logger.Debug().Str("session", s.ID).Int("lines", len(lines)).Dur("duration", elapsed).Msg("evaluated")
	}
	if s.transcript != nil {
		entry := fileutil.Entry{Session: s.ID, Source: source, Output: lines, Error: errText}
		if err := s.transcript.Append(entry); err != nil {
			s.logger.Warn().Err(err).Str("path", s.transcript.Path()).Msg("failed to append transcript")
		}
	}
	if s.store != nil {
		rec := storage.RunRecord{Session: s.ID, Source: source, Output: lines, Error: errText, Duration: elapsed}
		if _, err := s.store.RecordRun(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record run")
		}
	}
}

// ExecFile runs the program in path against a fresh environment, writing
// each result to out. The first error aborts the file and is returned with a
// snippet of the offending source.
func ExecFile(path string, cfg *config.Config, out io.Writer) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	source := string(content)
	nodes, err := calc.ParseString(source)
	if err != nil {
		return calc.WrapErrorWithName(err, path, source)
	}
	if err := calc.Run(nodes, cfg.NewEnvironment(), out); err != nil {
		return calc.WrapErrorWithName(err, path, source)
	}
	return nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
