package server

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/xid"

	"github.com/oarkflow/calc"
	"github.com/oarkflow/calc/pkg/storage"
)

type SourceRequest struct {
	Session string         `json:"session,omitempty"`
	Source  string         `json:"source"`
	Vars    map[string]any `json:"vars,omitempty"`
}

type WorkspaceRequest struct {
	Name string `json:"name"`
}

type ValueJSON struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Display string `json:"display"`
	Value   any    `json:"value,omitempty"`
}

type ErrorJSON struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Offset  int    `json:"offset"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

type EvalResponse struct {
	Session  string      `json:"session,omitempty"`
	Lines    []string    `json:"lines"`
	Results  []ValueJSON `json:"results"`
	Error    *ErrorJSON  `json:"error,omitempty"`
	Cached   bool        `json:"cached"`
	Duration float64     `json:"duration"`
}

type TokenJSON struct {
	Kind    string `json:"kind"`
	Literal string `json:"literal"`
	Offset  int    `json:"offset"`
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	active := len(s.sessions)
	s.mu.RUnlock()
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.config.Version,
		"sessions":  active,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) evalHandler(c *fiber.Ctx) error {
	var req SourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Source) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Source cannot be empty"})
	}

	env := s.settings.NewEnvironment()
	if req.Session != "" {
		sess, ok := s.lookup(req.Session)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.lastUsed = time.Now()
		env = sess.env
	}
	for name, raw := range req.Vars {
		val, err := valueFromJSON(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "var " + name + ": " + err.Error()})
		}
		env.Set(name, val)
	}

	start := time.Now()
	resp := EvalResponse{Session: req.Session, Lines: []string{}, Results: []ValueJSON{}}
	nodes, cached, err := s.parse(req.Source)
	resp.Cached = cached
	if err == nil {
		var results []calc.Result
		results, err = calc.EvalAll(nodes, env)
		for _, r := range results {
			resp.Lines = append(resp.Lines, r.String())
			resp.Results = append(resp.Results, valueToJSON(r))
		}
	}
	elapsed := time.Since(start)
	resp.Duration = elapsed.Seconds()
	s.recordRun(c.UserContext(), req, resp.Lines, err, elapsed)
	if err != nil {
		resp.Error = errorToJSON(err, req.Source)
		if resp.Error == nil {
			return err
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *Server) recordRun(ctx context.Context, req SourceRequest, lines []string, runErr error, elapsed time.Duration) {
	if s.store == nil {
		return
	}
	rec := storage.RunRecord{Session: req.Session, Source: req.Source, Output: lines, Duration: elapsed}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if _, err := s.store.RecordRun(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record run")
	}
}

func (s *Server) tokenizeHandler(c *fiber.Ctx) error {
	var req SourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	tokens, err := calc.Tokenize(req.Source)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": errorToJSON(err, req.Source)})
	}
	out := make([]TokenJSON, len(tokens))
	for i, tok := range tokens {
		out[i] = TokenJSON{Kind: tok.Kind.String(), Literal: tok.Literal, Offset: tok.Offset}
	}
	return c.JSON(fiber.Map{"tokens": out})
}

func (s *Server) parseHandler(c *fiber.Ctx) error {
	var req SourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	nodes, cached, err := s.parse(req.Source)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": errorToJSON(err, req.Source)})
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.String()
	}
	return c.JSON(fiber.Map{"nodes": out, "cached": cached})
}

func (s *Server) createSessionHandler(c *fiber.Ctx) error {
	now := time.Now()
	sess := &session{
		id:       xid.New().String(),
		env:      s.settings.NewEnvironment(),
		created:  now,
		lastUsed: now,
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.logger.Info().Str("session", sess.id).Msg("session created")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      sess.id,
		"created": now.Format(time.RFC3339),
	})
}

func (s *Server) sessionEnvHandler(c *fiber.Ctx) error {
	sess, ok := s.lookup(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastUsed = time.Now()
	bindings := map[string]ValueJSON{}
	for _, name := range sess.env.Names() {
		val, _ := sess.env.Get(name)
		bindings[name] = valueToJSON(calc.Result{Value: val})
	}
	return c.JSON(fiber.Map{"id": sess.id, "count": sess.env.Len(), "bindings": bindings})
}

func (s *Server) deleteSessionHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) saveWorkspaceHandler(c *fiber.Ctx) error {
	sess, name, err := s.workspaceTarget(c)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	rec, err := s.store.SaveWorkspace(c.UserContext(), name, sess.env)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"name": rec.Name, "bindings": rec.Bindings})
}

func (s *Server) loadWorkspaceHandler(c *fiber.Ctx) error {
	sess, name, err := s.workspaceTarget(c)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	n, err := s.store.LoadWorkspace(c.UserContext(), name, sess.env)
	if errors.Is(err, storage.ErrWorkspaceNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"name": name, "bindings": n})
}

func (s *Server) workspaceTarget(c *fiber.Ctx) (*session, string, error) {
	if s.store == nil {
		return nil, "", fiber.NewError(fiber.StatusServiceUnavailable, "storage is not configured")
	}
	sess, ok := s.lookup(c.Params("id"))
	if !ok {
		return nil, "", fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	var req WorkspaceRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "workspace name is required")
	}
	return sess, req.Name, nil
}

func (s *Server) workspacesHandler(c *fiber.Ctx) error {
	if s.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage is not configured")
	}
	list, err := s.store.ListWorkspaces(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(list))
	for _, w := range list {
		out = append(out, fiber.Map{"name": w.Name, "bindings": w.Bindings, "updatedAt": w.UpdatedAt})
	}
	return c.JSON(out)
}

func (s *Server) deleteWorkspaceHandler(c *fiber.Ctx) error {
	if s.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage is not configured")
	}
	err := s.store.DeleteWorkspace(c.UserContext(), c.Params("name"))
	if errors.Is(err, storage.ErrWorkspaceNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) historyHandler(c *fiber.Ctx) error {
	if s.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage is not configured")
	}
	runs, err := s.store.RecentRuns(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(runs))
	for _, r := range runs {
		out = append(out, fiber.Map{
			"id":        r.ID,
			"session":   r.Session,
			"source":    r.Source,
			"output":    r.Output,
			"error":     r.Error,
			"success":   r.Success(),
			"duration":  r.Duration.Seconds(),
			"timestamp": r.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(out)
}

func (s *Server) clearHistoryHandler(c *fiber.Ctx) error {
	if s.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage is not configured")
	}
	if err := s.store.ClearHistory(c.UserContext()); err != nil {
		return err
	}
	s.logger.Info().Msg("run history cleared")
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) lookup(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}
