package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/oarkflow/calc"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "calc.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWorkspaceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	env := calc.NewGlobalEnvironment()
	if _, err := calc.Exec(`let x = 5; greeting = "hi"; big = 1/0; fun f(a) { a }`, env); err != nil {
		t.Fatal(err)
	}
	env.Set("wrapped", &calc.Binding{Name: "y", Value: &calc.Number{Value: 3}})

	rec, err := store.SaveWorkspace(ctx, "demo", env)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.Bindings != 5 {
		t.Errorf("saved %d bindings, want 5 (x, greeting, big, wrapped, pi)", rec.Bindings)
	}

	restored := calc.NewEnvironment()
	n, err := store.LoadWorkspace(ctx, "demo", restored)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 5 {
		t.Errorf("restored %d bindings, want 5", n)
	}
	if v, _ := restored.Get("x"); v.(*calc.Number).Value != 5 {
		t.Errorf("x = %v, want 5", v)
	}
	if v, _ := restored.Get("greeting"); v.(*calc.String).Value != "hi" {
		t.Errorf("greeting = %v, want hi", v)
	}
	if v, _ := restored.Get("big"); !math.IsInf(v.(*calc.Number).Value, 1) {
		t.Errorf("big = %v, want inf", v)
	}
	if v, _ := restored.Get("wrapped"); v.(*calc.Number).Value != 3 {
		t.Errorf("wrapped = %v, want the flattened value 3", v)
	}
	if v, _ := restored.Get("pi"); v.(*calc.Number).Value != math.Pi {
		t.Errorf("pi = %v, want %v", v, math.Pi)
	}
}

func TestSaveWorkspaceReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := calc.NewEnvironment()
	first.Set("a", &calc.Number{Value: 1})
	first.Set("b", &calc.Number{Value: 2})
	if _, err := store.SaveWorkspace(ctx, "w", first); err != nil {
		t.Fatal(err)
	}
	second := calc.NewEnvironment()
	second.Set("c", &calc.Number{Value: 3})
	if _, err := store.SaveWorkspace(ctx, "w", second); err != nil {
		t.Fatal(err)
	}

	list, err := store.ListWorkspaces(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "w" || list[0].Bindings != 1 {
		t.Fatalf("workspaces = %+v, want one workspace w with 1 binding", list)
	}
}

func TestWorkspaceErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.LoadWorkspace(ctx, "missing", calc.NewEnvironment()); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("load missing = %v, want ErrWorkspaceNotFound", err)
	}
	if err := store.DeleteWorkspace(ctx, "missing"); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("delete missing = %v, want ErrWorkspaceNotFound", err)
	}
	if _, err := store.SaveWorkspace(ctx, "  ", calc.NewEnvironment()); err == nil {
		t.Errorf("blank workspace name accepted")
	}
}

func TestLoadCorruptWorkspaceLeavesEnvUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload := `{"a":{"kind":"number","value":"1"},"b":{"kind":"string","value":"ok"},"c":{"kind":"number","value":"oops"}}`
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO workspaces (name, bindings, updated_at) VALUES (?, ?, ?)`,
		"broken", payload, time.Now().UTC(),
	); err != nil {
		t.Fatal(err)
	}

	env := calc.NewEnvironment()
	n, err := store.LoadWorkspace(ctx, "broken", env)
	if err == nil {
		t.Fatal("corrupt workspace loaded without error")
	}
	if n != 0 || env.Len() != 0 {
		t.Errorf("restored %d bindings, env has %v; want nothing committed", n, env.Names())
	}
}

func TestDeleteWorkspace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.SaveWorkspace(ctx, "gone", calc.NewGlobalEnvironment()); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteWorkspace(ctx, " gone "); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.LoadWorkspace(ctx, "gone", calc.NewEnvironment()); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("load after delete = %v, want ErrWorkspaceNotFound", err)
	}
}

func TestRunHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	entries := []RunRecord{
		{Session: "s1", Source: "1+1", Output: []string{"0: 2"}, Duration: 2 * time.Millisecond, CreatedAt: base},
		{Source: "nope", Error: "unbound variable 'nope'", CreatedAt: base.Add(time.Second)},
		{Session: "s1", Source: "let x = 1; x", Output: []string{"0: x = 1", "1: 1"}, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		rec, err := store.RecordRun(ctx, e)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if rec.ID == "" {
			t.Fatalf("record did not assign an id")
		}
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Source != "let x = 1; x" || len(runs[0].Output) != 2 || runs[0].Session != "s1" {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].Success() || runs[1].Session != "" || runs[1].Output != nil {
		t.Errorf("failed run = %+v", runs[1])
	}

	if err := store.ClearHistory(ctx); err != nil {
		t.Fatal(err)
	}
	if runs, _ := store.RecentRuns(ctx, 0); len(runs) != 0 {
		t.Errorf("history not cleared: %v", runs)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "postgres"}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &Store{driver: "sqlite"}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := New(Config{Driver: "postgres"}); err == nil {
		t.Fatal("postgres without dsn accepted")
	}
}
