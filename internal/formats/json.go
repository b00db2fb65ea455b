package formats

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"ftprep/internal/dataset"
)

// readJSONL reads one JSON object per line. A file holding a single line that
// is itself a JSON document of records is read as JSON and reported as
// converted.
func readJSONL(path string) (*dataset.Dataset, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	lines, err := splitLines(data)
	if err != nil {
		return nil, false, err
	}
	if len(lines) == 1 {
		if v, err := decode(lines[0]); err == nil {
			if _, isObject := v.(map[string]interface{}); !isObject || isColumnOriented(v) {
				ds, err := fromDocument(lines[0], v)
				return ds, err == nil, err
			}
		}
	}
	ds, err := fromLines(lines)
	return ds, false, err
}

// readJSON reads a JSON document of records. Files that are really JSONL
// (more than one record, one per line) are accepted and reported as converted.
func readJSON(path string) (*dataset.Dataset, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	if v, err := decode(data); err == nil {
		ds, err := fromDocument(data, v)
		return ds, false, err
	}
	lines, err := splitLines(data)
	if err != nil {
		return nil, false, err
	}
	ds, err := fromLines(lines)
	if err != nil {
		return nil, false, err
	}
	return ds, ds.Len() > 1, nil
}

func splitLines(data []byte) ([][]byte, error) {
	var lines [][]byte
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty file", errInvalid)
	}
	return lines, nil
}

func decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", errInvalid)
	}
	return v, nil
}

func fromLines(lines [][]byte) (*dataset.Dataset, error) {
	b := newRecordBuilder()
	for i, line := range lines {
		v, err := decode(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", errInvalid, i+1, err)
		}
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: line %d is not a JSON object", errInvalid, i+1)
		}
		b.add(obj, keyOrder(line))
	}
	return b.build(), nil
}

// fromDocument accepts an array of records, a column-oriented object
// ({"prompt": {"0": "..."}} or {"prompt": ["..."]}), or a single record.
// raw is the undecoded document, used to keep key order.
func fromDocument(raw []byte, v interface{}) (*dataset.Dataset, error) {
	switch doc := v.(type) {
	case []interface{}:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
		b := newRecordBuilder()
		for i, item := range doc {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: element %d is not a JSON object", errInvalid, i)
			}
			b.add(obj, keyOrder(elems[i]))
		}
		return b.build(), nil
	case map[string]interface{}:
		if isColumnOriented(doc) {
			return fromColumns(doc, keyOrder(raw)), nil
		}
		b := newRecordBuilder()
		b.add(doc, keyOrder(raw))
		return b.build(), nil
	}
	return nil, fmt.Errorf("%w: expected JSON array or object", errInvalid)
}

func isColumnOriented(v interface{}) bool {
	obj, ok := v.(map[string]interface{})
	if !ok || len(obj) == 0 {
		return false
	}
	for _, col := range obj {
		switch col.(type) {
		case map[string]interface{}, []interface{}:
		default:
			return false
		}
	}
	return true
}

func fromColumns(doc map[string]interface{}, columns []string) *dataset.Dataset {
	n := 0
	cells := make([]map[int]string, len(columns))
	for c, name := range columns {
		cells[c] = make(map[int]string)
		switch col := doc[name].(type) {
		case []interface{}:
			for i, cell := range col {
				cells[c][i] = cellString(cell)
			}
			if len(col) > n {
				n = len(col)
			}
		case map[string]interface{}:
			for k, cell := range col {
				i, err := strconv.Atoi(k)
				if err != nil {
					continue
				}
				cells[c][i] = cellString(cell)
				if i+1 > n {
					n = i + 1
				}
			}
		}
	}
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, len(columns))
		for c := range columns {
			row[c] = cells[c][i]
		}
		rows[i] = row
	}
	return dataset.New(columns, rows)
}

// recordBuilder collects records whose key sets may differ; columns appear in
// first-seen order.
type recordBuilder struct {
	columns []string
	index   map[string]int
	records []map[string]interface{}
}

func newRecordBuilder() *recordBuilder {
	return &recordBuilder{index: make(map[string]int)}
}

func (b *recordBuilder) add(obj map[string]interface{}, keys []string) {
	for _, k := range keys {
		if _, ok := b.index[k]; !ok {
			b.index[k] = len(b.columns)
			b.columns = append(b.columns, k)
		}
	}
	for k := range obj {
		if _, ok := b.index[k]; !ok {
			b.index[k] = len(b.columns)
			b.columns = append(b.columns, k)
		}
	}
	b.records = append(b.records, obj)
}

func (b *recordBuilder) build() *dataset.Dataset {
	rows := make([][]string, len(b.records))
	for i, rec := range b.records {
		row := make([]string, len(b.columns))
		for k, v := range rec {
			row[b.index[k]] = cellString(v)
		}
		rows[i] = row
	}
	return dataset.New(b.columns, rows)
}

// keyOrder returns the top-level keys of a JSON object in document order.
func keyOrder(data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	if t, err := dec.Token(); err != nil || t != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := t.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

// cellString renders a decoded JSON value as a cell. Strings are kept as-is,
// null becomes empty, anything else keeps its JSON text.
func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
