package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTranscriptAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "transcript.json")
	tr, err := OpenTranscript(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tr.Close()

	if entries, err := tr.Entries(); err != nil || len(entries) != 0 {
		t.Fatalf("fresh transcript = %v, %v; want empty", entries, err)
	}
	if err := tr.Append(Entry{Source: "1+1", Output: []string{"0: 2"}}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Append(Entry{Session: "s1", Source: "nope", Error: "unbound variable 'nope'"}); err != nil {
		t.Fatal(err)
	}

	entries, err := tr.Entries()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Source != "1+1" || entries[0].Output[0] != "0: 2" || entries[0].Time.IsZero() || entries[0].ID == "" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Error == "" || entries[1].Session != "s1" {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestTranscriptReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.json")
	tr, err := OpenTranscript(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Append(Entry{Source: "a = 1"}); err != nil {
		t.Fatal(err)
	}
	tr.Close()

	tr, err = OpenTranscript(path)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if err := tr.Append(Entry{Source: "a"}); err != nil {
		t.Fatal(err)
	}
	entries, err := tr.Entries()
	if err != nil || len(entries) != 2 {
		t.Fatalf("entries = %v, %v; want 2", entries, err)
	}
}

func TestOpenTranscriptRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"not": "an array"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := OpenTranscript(path)
	if err == nil || !strings.Contains(err.Error(), "opening bracket") {
		t.Fatalf("got %v, want opening bracket error", err)
	}
}
