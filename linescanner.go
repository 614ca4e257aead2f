package ledger

import (
	"bufio"
	"io"
)

type linescanner struct {
	*bufio.Scanner
	filename  string
	lineCount int
}

func newLineScanner(filename string, r io.Reader) *linescanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &linescanner{Scanner: s, filename: filename}
}

func (lp *linescanner) Scan() bool {
	if lp.Scanner.Scan() {
		lp.lineCount++
		return true
	}
	return false
}

// Name returns the file being scanned, empty for plain readers.
func (lp *linescanner) Name() string {
	return lp.filename
}

// LineNumber returns the 1-based number of the current line.
func (lp *linescanner) LineNumber() int {
	return lp.lineCount
}
