package formats

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ftprep/internal/dataset"
)

// WriteJSONL writes one JSON object per row holding the given columns, keys
// in column order. Non-ASCII text and HTML characters are written unescaped.
func WriteJSONL(ds *dataset.Dataset, path string, columns ...string) error {
	sel, err := ds.Select(columns...)
	if err != nil {
		return fmt.Errorf("failed to select output columns: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, row := range sel.Rows() {
		line, err := encodeRecord(columns, row)
		if err != nil {
			return err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func encodeRecord(columns, row []string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	str := func(s string) ([]byte, error) {
		buf.Reset()
		if err := enc.Encode(s); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
	}

	var out bytes.Buffer
	out.WriteByte('{')
	for i, c := range columns {
		if i > 0 {
			out.WriteByte(',')
		}
		key, err := str(c)
		if err != nil {
			return nil, err
		}
		out.Write(key)
		out.WriteByte(':')
		val, err := str(row[i])
		if err != nil {
			return nil, err
		}
		out.Write(val)
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}
