package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// InvalidInputError marks a whole-file failure: the stream cannot be decoded
// at the header level and no rows are processable.
type InvalidInputError struct {
	reason error
}

func (e InvalidInputError) Error() string {
	return e.reason.Error()
}

func (e InvalidInputError) Unwrap() error {
	return e.reason
}

func IsInvalidInput(err error) bool {
	var ie InvalidInputError
	return errors.As(err, &ie)
}

// Row is one structurally valid, validated data row.
type Row struct {
	Number      int
	SKU         string
	Name        string
	Description string
	Active      bool
}

// Batch is the unit of upsert, progress publication and cancellation
// checkpointing. Read counts every row consumed from the stream, including
// rows rejected with an error and rows collapsed as within-batch duplicates.
type Batch struct {
	Rows   []Row
	Errors []RowError
	Read   int
}

// Parser streams rows from a delimited file without materialising it. The
// header is consumed at construction; NextBatch yields validated rows in
// fixed-size groups with within-batch duplicate keys collapsed (the later
// row wins).
type Parser struct {
	reader  *csv.Reader
	columns map[int]string
	rowNum  int
	done    bool
}

func NewParser(r io.Reader, schema Schema) (*Parser, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, InvalidInputError{reason: errors.New("file is empty")}
		}
		return nil, InvalidInputError{reason: fmt.Errorf("unreadable header: %w", err)}
	}

	columns := make(map[int]string, len(header))
	seen := make(map[string]bool)
	for i, cell := range header {
		if field := schema.resolve(cell); field != "" {
			columns[i] = field
			seen[field] = true
		}
	}

	for _, field := range schema.required() {
		if !seen[field] {
			return nil, InvalidInputError{reason: fmt.Errorf("required column %q not found in header", field)}
		}
	}

	return &Parser{
		reader:  cr,
		columns: columns,
		rowNum:  1, // header
	}, nil
}

// NextBatch reads up to size rows. It returns io.EOF alongside the final
// (possibly empty) batch once the stream is exhausted.
func (p *Parser) NextBatch(size int) (Batch, error) {
	if size <= 0 {
		size = 1000
	}

	batch := Batch{}
	index := make(map[string]int, size)

	for batch.Read < size {
		if p.done {
			return batch, io.EOF
		}

		record, err := p.reader.Read()
		if err == io.EOF {
			p.done = true
			return batch, io.EOF
		}
		p.rowNum++

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				batch.Read++
				batch.Errors = append(batch.Errors, RowError{
					Row:     p.rowNum,
					Message: fmt.Sprintf("malformed row: %v", parseErr.Err),
				})
				continue
			}
			// Not row-local: the stream itself is broken.
			return batch, fmt.Errorf("reading row %d: %w", p.rowNum, err)
		}

		batch.Read++

		row, rowErr := p.decode(record)
		if rowErr != nil {
			batch.Errors = append(batch.Errors, *rowErr)
			continue
		}

		key := strings.ToLower(row.SKU)
		if at, ok := index[key]; ok {
			// Later row wins; keep first-seen position so one event fires
			// per unique key with the final value.
			row.Number = batch.Rows[at].Number
			batch.Rows[at] = row
			continue
		}
		index[key] = len(batch.Rows)
		batch.Rows = append(batch.Rows, row)
	}

	return batch, nil
}

func (p *Parser) decode(record []string) (Row, *RowError) {
	row := Row{Number: p.rowNum, Active: true}

	for i, cell := range record {
		field, ok := p.columns[i]
		if !ok {
			continue
		}
		value := strings.TrimSpace(cell)
		switch field {
		case FieldSKU:
			row.SKU = value
		case FieldName:
			row.Name = value
		case FieldDescription:
			row.Description = value
		case FieldActive:
			row.Active = parseActive(value)
		}
	}

	if row.SKU == "" {
		return Row{}, &RowError{Row: p.rowNum, Message: "sku is required"}
	}
	if row.Name == "" {
		return Row{}, &RowError{Row: p.rowNum, SKU: row.SKU, Message: "name is required"}
	}

	return row, nil
}

func parseActive(value string) bool {
	switch strings.ToLower(value) {
	case "false", "0", "no", "inactive":
		return false
	}
	return true
}

// CountDataRows estimates total_records by counting newlines, excluding the
// header. Exact for files without quoted newlines; the progress publisher
// tolerates the estimate and the worker finalises the true count at
// completion.
func CountDataRows(r io.Reader) (int, error) {
	buf := make([]byte, 64*1024)
	lines := 0
	lastByte := byte('\n')

	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				lines++
			}
		}
		if n > 0 {
			lastByte = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	if lastByte != '\n' {
		lines++
	}

	if lines <= 1 {
		return 0, nil
	}
	return lines - 1, nil
}
