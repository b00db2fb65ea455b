// Package formats reads fine-tuning datasets from the file formats people
// actually hand in (CSV, TSV, Excel, plain text, JSON, JSONL) and writes the
// prepared JSONL output.
package formats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ftprep/internal/dataset"
	"ftprep/internal/logging"
	"ftprep/internal/remediation"

	"github.com/xuri/excelize/v2"
)

// Format identifies an input file format by extension.
type Format string

const (
	FormatCSV     Format = "CSV"
	FormatTSV     Format = "TSV"
	FormatXLSX    Format = "XLSX"
	FormatTXT     Format = "TXT"
	FormatJSON    Format = "JSON"
	FormatJSONL   Format = "JSONL"
	FormatUnknown Format = ""
)

// DetectFormat maps a file name to its format using the lower-cased extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".tsv":
		return FormatTSV
	case ".xlsx":
		return FormatXLSX
	case ".txt":
		return FormatTXT
	case ".json":
		return FormatJSON
	case ".jsonl":
		return FormatJSONL
	}
	return FormatUnknown
}

const readerName = "read_any_format"

// errInvalid marks content that does not parse as the format its extension claims.
var errInvalid = errors.New("invalid content")

// ReadAnyFormat loads path into a dataset and describes what it did in a
// remediation. Problems are reported through Remediation.ErrorMsg and leave
// the dataset nil; ReadAnyFormat itself never fails.
func ReadAnyFormat(path string) (*dataset.Dataset, remediation.Remediation) {
	rem := remediation.Remediation{Name: readerName}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		rem.ErrorMsg = fmt.Sprintf("File %s does not exist.", path)
		return nil, rem
	}

	var ds *dataset.Dataset
	format := DetectFormat(path)
	switch format {
	case FormatCSV, FormatTSV:
		sep := ','
		if format == FormatTSV {
			sep = '\t'
		}
		rem.ImmediateMsg = fmt.Sprintf("\n- Based on your file extension, your file is formatted as a %s file", format)
		rem.NecessaryMsg = fmt.Sprintf("Your format `%s` will be converted to `JSONL`", format)
		ds, err = readDelimited(path, sep)
	case FormatXLSX:
		rem.ImmediateMsg = "\n- Based on your file extension, your file is formatted as an Excel file"
		rem.NecessaryMsg = "Your format `XLSX` will be converted to `JSONL`"
		var sheets int
		ds, sheets, err = readExcel(path)
		if sheets > 1 {
			rem.ImmediateMsg += "\n- Your Excel file contains more than one sheet. Please either save as csv or ensure all data is present in the first sheet. WARNING: Reading only the first sheet..."
		}
	case FormatTXT:
		rem.ImmediateMsg = "\n- Based on your file extension, you provided a text file"
		rem.NecessaryMsg = "Your format `TXT` will be converted to `JSONL`"
		ds, err = readText(path)
	case FormatJSONL:
		var converted bool
		ds, converted, err = readJSONL(path)
		if converted {
			rem.ImmediateMsg = "\n- Your JSONL file appears to be in a JSON format. Your file will be converted to JSONL format"
			rem.NecessaryMsg = "Your format `JSON` will be converted to `JSONL`"
		}
	case FormatJSON:
		var converted bool
		ds, converted, err = readJSON(path)
		if converted {
			rem.ImmediateMsg = "\n- Your JSON file appears to be in a JSONL format. Your file will be converted to JSONL format"
			rem.NecessaryMsg = "Your format `JSON` will be converted to `JSONL`"
		}
	default:
		rem.ErrorMsg = "Your file must have one of the following extensions: .CSV, .TSV, .XLSX, .TXT, .JSON or .JSONL"
		base := filepath.Base(path)
		if ext := filepath.Ext(base); ext != "" {
			rem.ErrorMsg += fmt.Sprintf(" Your file `%s` ends with the extension `%s` which is not supported.", path, ext)
		} else {
			rem.ErrorMsg += fmt.Sprintf(" Your file `%s` is missing a file extension.", path)
		}
		return nil, rem
	}

	if err != nil {
		logging.Get(logging.CategoryReader).Warn("%s: %v", path, err)
		ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
		return nil, remediation.Remediation{
			Name:     readerName,
			ErrorMsg: fmt.Sprintf("Your file `%s` does not appear to be in valid %s format. Please ensure your file is formatted as a valid %s file.", path, ext, ext),
		}
	}

	logging.Reader("%s: loaded %d rows, %d columns as %s", path, ds.Len(), len(ds.Columns()), format)
	return ds, rem
}

// =============================================================================
// DELIMITED TEXT
// =============================================================================

func readDelimited(path string, sep rune) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = sep
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: no columns to parse", errInvalid)
		}
		return nil, err
	}
	columns := dedupeColumns(header)

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > len(columns) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%w: expected %d fields in line %d, saw %d", errInvalid, len(columns), line, len(rec))
		}
		if len(rec) == 1 && rec[0] == "" && len(columns) > 1 {
			continue
		}
		rows = append(rows, rec)
	}
	return dataset.New(columns, rows), nil
}

// dedupeColumns renames repeated headers to name.1, name.2, ... so every
// column stays addressable.
func dedupeColumns(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		if n, ok := seen[h]; ok {
			out[i] = h + "." + strconv.Itoa(n)
			seen[h] = n + 1
			continue
		}
		seen[h] = 1
		out[i] = h
	}
	return out
}

// =============================================================================
// EXCEL
// =============================================================================

func readExcel(path string) (*dataset.Dataset, int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, fmt.Errorf("%w: workbook has no sheets", errInvalid)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, len(sheets), err
	}
	if len(rows) == 0 {
		return nil, len(sheets), fmt.Errorf("%w: first sheet is empty", errInvalid)
	}
	return dataset.New(dedupeColumns(rows[0]), rows[1:]), len(sheets), nil
}

// =============================================================================
// PLAIN TEXT
// =============================================================================

// readText turns every line into a completion with an empty prompt.
func readText(path string) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = []string{"", strings.TrimSuffix(l, "\r")}
	}
	return dataset.New(dataset.Fields, rows), nil
}
