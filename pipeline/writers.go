package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/backlog-match/models"
)

// CSVHeader is the header row of a saved catalogue.
var CSVHeader = []string{"Title", "Rating"}

// CatalogueFile returns the output path for username's catalogue.
func CatalogueFile(dir, username, ext string) string {
	return filepath.Join(dir, username+"_games."+ext)
}

// fileWriter is an OutputWriter over one file. The format decides how a
// record is encoded and how buffered output is flushed.
type fileWriter struct {
	mu     sync.Mutex
	kind   string
	file   *os.File
	encode func(models.Record) error
	flush  func() error
}

func createOutput(kind, filename string) (*os.File, error) {
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", kind, err)
	}
	return f, nil
}

// Write encodes records in order and flushes them to disk.
func (fw *fileWriter) Write(records []models.Record) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for _, r := range records {
		if err := fw.encode(r); err != nil {
			return fmt.Errorf("encode %s record %q: %w", fw.kind, r.Title, err)
		}
	}
	if err := fw.flush(); err != nil {
		return fmt.Errorf("flush %s records: %w", fw.kind, err)
	}
	return nil
}

// Close flushes pending output and closes the file.
func (fw *fileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if err := fw.flush(); err != nil {
		fw.file.Close()
		return fmt.Errorf("flush %s writer: %w", fw.kind, err)
	}
	return fw.file.Close()
}

func (fw *fileWriter) stat() (os.FileInfo, error) {
	info, err := os.Stat(fw.file.Name())
	if err != nil {
		return nil, fmt.Errorf("stat %s file: %w", fw.kind, err)
	}
	return info, nil
}

// CSVWriter writes a `Title,Rating` catalogue.
type CSVWriter struct {
	fileWriter
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	f, err := createOutput("csv", filename)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	cw := &CSVWriter{fileWriter{
		kind: "csv",
		file: f,
		encode: func(r models.Record) error {
			return w.Write([]string{r.Title, strconv.FormatFloat(r.Rating, 'f', -1, 64)})
		},
		flush: func() error {
			w.Flush()
			return w.Error()
		},
	}}

	if err := w.Write(CSVHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return cw, nil
}

// Validate checks that at least the header reached the file.
func (cw *CSVWriter) Validate() error {
	info, err := cw.stat()
	if err != nil {
		return err
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	fileWriter
}

// NewJSONWriter creates filename for JSONL output.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	f, err := createOutput("json", filename)
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	return &JSONWriter{fileWriter{
		kind:   "json",
		file:   f,
		encode: func(r models.Record) error { return enc.Encode(r) },
		flush:  buf.Flush,
	}}, nil
}

// Validate checks that the file exists. An empty catalogue yields an empty file.
func (jw *JSONWriter) Validate() error {
	_, err := jw.stat()
	return err
}
