// Package iif decodes QuickBooks Intuit Interchange Format files.
//
// An IIF file is a sequence of blocks. Each block starts with one or more
// header lines (first field prefixed with '!') naming the fields of the
// records that follow.
package iif

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

var (
	ErrMismatchedRecords = errors.New("iif: row does not match expected header")
	ErrEmptyHeader       = errors.New("iif: empty header")
)

type RecordType string

type Header struct {
	Type   RecordType
	Fields []string
}

type Record struct {
	Type   RecordType
	Fields map[string]string
}

// Block holds record groups sharing the same headers. For transactions a
// group is one TRNS line, its SPL lines and the ENDTRNS line.
type Block struct {
	Records [][]Record
	Headers []Header
}

type File struct {
	Blocks []Block
}

// Decoder reads an IIF file one line ahead.
type Decoder struct {
	r        *csv.Reader
	err      error
	IsHeader bool
	Type     RecordType
	Fields   []string
}

func NewDecoder(r io.Reader) *Decoder {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = false
	reader.FieldsPerRecord = -1
	d := Decoder{r: reader}
	d.Next()
	return &d
}

// Next advances to the following line.
func (d *Decoder) Next() {
	line, err := d.r.Read()
	d.err = err
	if err != nil {
		return
	}
	d.IsHeader = strings.HasPrefix(line[0], "!")
	d.Type = RecordType(strings.TrimPrefix(line[0], "!"))
	d.Fields = line[1:]
}

// Error returns the read error, if any, other than io.EOF.
func (d *Decoder) Error() error {
	if d.err != io.EOF {
		return d.err
	}
	return nil
}

func (d *Decoder) Done() bool {
	return d.err != nil
}

func (f *File) Load(d *Decoder) error {
	for !d.Done() {
		b := Block{}
		if err := b.Load(d); err != nil {
			return err
		}
		f.Blocks = append(f.Blocks, b)
	}
	return d.Error()
}

// MapFields names fields by the header's field list. Extra fields are dropped.
func (h Header) MapFields(fields []string) map[string]string {
	m := make(map[string]string, len(fields))
	for i, f := range h.Fields {
		if i >= len(fields) {
			break
		}
		m[f] = fields[i]
	}
	return m
}

func (b *Block) Load(d *Decoder) error {
	for !d.Done() && d.IsHeader {
		b.Headers = append(b.Headers, Header{Type: d.Type, Fields: trimLine(d.Fields)})
		d.Next()
	}
	if err := d.Error(); err != nil {
		return err
	}

	for !d.Done() && !d.IsHeader {
		if len(b.Headers) == 0 {
			return ErrEmptyHeader
		}
		var group []Record
		for _, h := range b.Headers {
			if d.Done() {
				return d.Error()
			}
			if d.Type != h.Type {
				return ErrMismatchedRecords
			}
			for !d.Done() && !d.IsHeader && d.Type == h.Type {
				group = append(group, Record{Type: d.Type, Fields: h.MapFields(d.Fields)})
				d.Next()
			}
		}
		b.Records = append(b.Records, group)
	}
	return d.Error()
}

func trimLine(records []string) []string {
	for i, r := range records {
		if r == "" {
			return records[:i]
		}
	}
	return records
}

func (d *Decoder) Decode() (*File, error) {
	f := File{}
	if err := f.Load(d); err != nil {
		return nil, err
	}
	return &f, nil
}
