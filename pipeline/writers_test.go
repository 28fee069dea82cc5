package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/backlog-match/models"
)

func sampleRecords() []models.Record {
	return []models.Record{
		{Title: "Hades", Rating: 4.5},
		{Title: "Disco Elysium, The Final Cut", Rating: 5},
		{Title: "Unrated Game", Rating: 0},
	}
}

func TestCatalogueFile(t *testing.T) {
	got := CatalogueFile("output", "alice", "csv")
	want := filepath.Join("output", "alice_games.csv")
	if got != want {
		t.Fatalf("CatalogueFile=%q, want %q", got, want)
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "alice_games.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write(sampleRecords()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows=%d, want 4", len(rows))
	}
	if rows[0][0] != "Title" || rows[0][1] != "Rating" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "4.5" || rows[2][1] != "5" || rows[3][1] != "0" {
		t.Fatalf("unexpected ratings: %v", rows[1:])
	}
	if rows[2][0] != "Disco Elysium, The Final Cut" {
		t.Fatalf("title with comma not preserved: %q", rows[2][0])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice_games.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Write(sampleRecords()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		var record models.Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line %d: %v", lines, err)
		}
		if record != sampleRecords()[lines] {
			t.Fatalf("line %d=%+v, want %+v", lines, record, sampleRecords()[lines])
		}
		lines++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if lines != 3 {
		t.Fatalf("lines=%d, want 3", lines)
	}
}

func TestDualWriterWritesBoth(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "bob_games.csv")
	jsonPath := filepath.Join(dir, "bob_games.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write(sampleRecords()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
}

func TestMultiWriterStopsOnFirstFailure(t *testing.T) {
	failing := &mockWriter{writeErr: errors.New("disk full")}
	after := &mockWriter{}
	mw := NewMultiWriter(failing, after)

	err := mw.Write(sampleRecords())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected write error, got %v", err)
	}
	if len(after.written()) != 0 {
		t.Fatalf("second writer received %d records after failure", len(after.written()))
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !failing.closed || !after.closed {
		t.Fatal("expected every writer to be closed")
	}
}

func TestMultiWriterJoinsValidationErrors(t *testing.T) {
	first := &mockWriter{validateErr: errors.New("first missing")}
	second := &mockWriter{validateErr: errors.New("second missing")}

	err := NewMultiWriter(first, second).Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, first.validateErr) || !errors.Is(err, second.validateErr) {
		t.Fatalf("expected both errors joined, got %v", err)
	}
}

func TestReadCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice_games.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write(sampleRecords()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	got, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := sampleRecords()
	if len(got) != len(want) {
		t.Fatalf("records=%d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d=%+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadCSVHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty_games.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	got, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("records=%d, want 0", len(got))
	}
}

func TestReadCSVRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "empty file", content: "", wantErr: "is empty"},
		{name: "bad header", content: "name,score\nHades,4\n", wantErr: "unexpected csv header"},
		{name: "bad rating", content: "Title,Rating\nHades,great\n", wantErr: "invalid rating"},
		{name: "rating out of range", content: "Title,Rating\nHades,9\n", wantErr: "outside"},
		{name: "missing column", content: "Title,Rating\nHades\n", wantErr: "read csv record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "games.csv")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			_, err := ReadCSV(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error=%q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestReadCSVMissingFile(t *testing.T) {
	if _, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
