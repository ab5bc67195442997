package series

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// The on-disk format is CSV: a header record "sequences,S,channels,C"
// followed by one record per timestep carrying S*C values, sequence-major.

// SaveCSV writes the series to path, creating or truncating the file.
func SaveCSV(path string, s Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create series file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"sequences", strconv.Itoa(s.sequences), "channels", strconv.Itoa(s.channels)}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write series header: %w", err)
	}
	record := make([]string, s.sequences*s.channels)
	for t := 0; t < s.timesteps; t++ {
		for seq := 0; seq < s.sequences; seq++ {
			for c := 0; c < s.channels; c++ {
				record[seq*s.channels+c] = strconv.FormatFloat(s.At(t, seq, c), 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write series record %d: %w", t, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush series file: %w", err)
	}
	return nil
}

// LoadCSV reads a series previously written by SaveCSV.
func LoadCSV(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, fmt.Errorf("open series file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Data records are wider than the 4-field header; widths are checked
	// against the header dimensions below instead.
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return Series{}, fmt.Errorf("read series header: %w", err)
	}
	if len(header) != 4 || header[0] != "sequences" || header[2] != "channels" {
		return Series{}, fmt.Errorf("malformed series header %v", header)
	}
	sequences, err := strconv.Atoi(header[1])
	if err != nil {
		return Series{}, fmt.Errorf("parse sequence count: %w", err)
	}
	channels, err := strconv.Atoi(header[3])
	if err != nil {
		return Series{}, fmt.Errorf("parse channel count: %w", err)
	}
	if sequences <= 0 || channels <= 0 {
		return Series{}, fmt.Errorf("non-positive dimensions in header %v", header)
	}

	records, err := r.ReadAll()
	if err != nil {
		return Series{}, fmt.Errorf("read series records: %w", err)
	}
	if len(records) == 0 {
		return Series{}, fmt.Errorf("series file %q holds no records", path)
	}
	out, err := New(len(records), sequences, channels)
	if err != nil {
		return Series{}, err
	}
	for t, record := range records {
		if len(record) != sequences*channels {
			return Series{}, fmt.Errorf("record %d holds %d values, want %d", t, len(record), sequences*channels)
		}
		for seq := 0; seq < sequences; seq++ {
			for c := 0; c < channels; c++ {
				v, err := strconv.ParseFloat(record[seq*channels+c], 64)
				if err != nil {
					return Series{}, fmt.Errorf("parse record %d seq %d channel %d: %w", t, seq, c, err)
				}
				out.Set(t, seq, c, v)
			}
		}
	}
	return out, nil
}
