package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"trendscope/internal/domain/trend"
)

const dateLayout = "2006-01-02"

// WriteCSV writes the table with a leading date column. Missing cells are
// left empty.
func WriteCSV(w io.Writer, t *trend.Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{"date"}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}

	for i, ts := range t.Index {
		record := make([]string, 0, len(header))
		record = append(record, ts.Format(dateLayout))
		for _, col := range t.Columns {
			record = append(record, formatValue(t.Values[col][i]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to path, creating parent directories
func WriteCSVFile(path string, t *trend.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating csv file: %w", err)
	}

	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
