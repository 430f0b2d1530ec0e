package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oarkflow/errors"
	"github.com/oarkflow/json"

	"github.com/oarkflow/calc"
)

// ErrWorkspaceNotFound indicates a missing workspace.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// WorkspaceRecord describes a saved workspace.
type WorkspaceRecord struct {
	Name      string
	Bindings  int
	UpdatedAt time.Time
}

// storedValue keeps numbers as text so inf and NaN survive the JSON round trip.
type storedValue struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// SaveWorkspace stores the Number and String bindings of env under name,
// replacing any previous workspace of the same name. Functions are skipped.
func (s *Store) SaveWorkspace(ctx context.Context, name string, env *calc.Environment) (WorkspaceRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return WorkspaceRecord{}, errors.New("workspace name is required")
	}
	bindings := encodeEnvironment(env)
	payload, err := json.Marshal(bindings)
	if err != nil {
		return WorkspaceRecord{}, fmt.Errorf("encode workspace %s: %w", name, err)
	}
	rec := WorkspaceRecord{Name: name, Bindings: len(bindings), UpdatedAt: time.Now().UTC()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return WorkspaceRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM workspaces WHERE name = ?`), name); err != nil {
		return WorkspaceRecord{}, err
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO workspaces (name, bindings, updated_at) VALUES (?, ?, ?)`),
		rec.Name, string(payload), rec.UpdatedAt,
	); err != nil {
		return WorkspaceRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return WorkspaceRecord{}, err
	}
	return rec, nil
}

// LoadWorkspace copies the bindings saved under name into env and returns
// how many were restored. env is left untouched if any binding fails to
// decode.
func (s *Store) LoadWorkspace(ctx context.Context, name string, env *calc.Environment) (int, error) {
	var payload string
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT bindings FROM workspaces WHERE name = ?`), strings.TrimSpace(name))
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrWorkspaceNotFound
		}
		return 0, err
	}
	bindings := map[string]storedValue{}
	if err := json.Unmarshal([]byte(payload), &bindings); err != nil {
		return 0, fmt.Errorf("decode workspace %s: %w", name, err)
	}
	decoded := make(map[string]calc.Value, len(bindings))
	for key, sv := range bindings {
		val, err := sv.decode()
		if err != nil {
			return 0, fmt.Errorf("workspace %s binding %s: %w", name, key, err)
		}
		decoded[key] = val
	}
	for key, val := range decoded {
		env.Set(key, val)
	}
	return len(decoded), nil
}

// ListWorkspaces returns saved workspaces ordered by most recent update.
func (s *Store) ListWorkspaces(ctx context.Context) ([]WorkspaceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, bindings, updated_at FROM workspaces ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkspaceRecord
	for rows.Next() {
		var payload string
		rec := WorkspaceRecord{}
		if err := rows.Scan(&rec.Name, &payload, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		bindings := map[string]storedValue{}
		if err := json.Unmarshal([]byte(payload), &bindings); err == nil {
			rec.Bindings = len(bindings)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteWorkspace removes a saved workspace.
func (s *Store) DeleteWorkspace(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM workspaces WHERE name = ?`), strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrWorkspaceNotFound
	}
	return nil
}

func encodeEnvironment(env *calc.Environment) map[string]storedValue {
	out := map[string]storedValue{}
	for _, name := range env.Names() {
		val, _ := env.Get(name)
		switch v := calc.Unwrap(val).(type) {
		case *calc.Number:
			out[name] = storedValue{Kind: "number", Value: calc.FormatNumber(v.Value)}
		case *calc.String:
			out[name] = storedValue{Kind: "string", Value: v.Value}
		}
	}
	return out
}

func (sv storedValue) decode() (calc.Value, error) {
	switch sv.Kind {
	case "number":
		n, err := strconv.ParseFloat(sv.Value, 64)
		if err != nil {
			return nil, err
		}
		return &calc.Number{Value: n}, nil
	case "string":
		return &calc.String{Value: sv.Value}, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", sv.Kind)
	}
}
