package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aluiziolira/backlog-match/models"
	"github.com/aluiziolira/backlog-match/parser"
)

// ReadCSV loads a catalogue saved by CSVWriter, in file order.
func ReadCSV(filename string) (models.Catalogue, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(CSVHeader)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalogue %s is empty", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, name := range CSVHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("unexpected csv header %v, want %v", header, CSVHeader)
		}
	}

	var catalogue models.Catalogue
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		line, _ := reader.FieldPos(0)

		rating, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid rating %q: %w", line, row[1], err)
		}
		record := models.Record{Title: row[0], Rating: rating}
		if err := parser.ValidateRecord(record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		catalogue = append(catalogue, record)
	}
	return catalogue, nil
}
