package ledger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredxing/calc/compute"
	date "github.com/joyt/godate"
	"github.com/shopspring/decimal"
)

var (
	postingRegex = regexp.MustCompile(
		`^(?P<name>\S+)` +
			`(?:\s+(?P<amount>[\-+]?\d[\d,]*(?:\.\d+)?|\([0-9+\-*\/. ]+\))` +
			`(?:\s+(?P<currency>[A-Z][A-Z0-9'._\-]*))?` +
			`(?:\s*@\s*(?P<price>[\-+]?\d+(?:\.\d+)?)\s+(?P<pcurrency>[A-Z][A-Z0-9'._\-]*))?)?\s*$`,
	)
	metaRegex = regexp.MustCompile(`^([A-Za-z][\w\-]*):\s*("(?:[^"\\]|\\.)*")\s*$`)

	ledgerFileExts = []string{".bean", ".beancount", ".ledger"}
)

// ParseLedgerFile parses a ledger file and returns a list of Transactions.
func ParseLedgerFile(filename string) (generalLedger []*Transaction, err error) {
	ifile, ierr := os.Open(filename)
	if ierr != nil {
		return nil, ierr
	}
	defer ifile.Close()
	var mu sync.Mutex
	parseLedger(filename, ifile, func(t []*Transaction, e error) (stop bool) {
		mu.Lock()
		defer mu.Unlock()
		if e != nil {
			if err == nil {
				err = e
			}
			return true
		}

		generalLedger = append(generalLedger, t...)
		return
	})

	return
}

// ParseLedger parses a ledger file and returns a list of Transactions.
func ParseLedger(ledgerReader io.Reader) (generalLedger []*Transaction, err error) {
	var mu sync.Mutex
	parseLedger("", ledgerReader, func(t []*Transaction, e error) (stop bool) {
		mu.Lock()
		defer mu.Unlock()
		if e != nil {
			if err == nil {
				err = e
			}
			return true
		}

		generalLedger = append(generalLedger, t...)
		return
	})

	return
}

// ParseLedgerDir parses every ledger file below dir, in lexical order, into
// one Ledger of the given source and type. Files included by another ledger
// file are read through that include only. A missing dir yields an empty
// ledger.
func ParseLedgerDir(dir, source string, typ StatementType) (*Ledger, error) {
	l := &Ledger{Source: source, Type: typ}
	if dir == "" {
		return l, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}

	var files []string
	included := make(map[string]bool)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(ledgerFileExts, filepath.Ext(path)) {
			return nil
		}
		incs, err := includedFiles(path)
		if err != nil {
			return err
		}
		for _, inc := range incs {
			included[inc] = true
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		if abs, err := filepath.Abs(path); err == nil && included[abs] {
			continue
		}
		trans, err := ParseLedgerFile(path)
		if err != nil {
			return nil, err
		}
		l.Append(trans...)
	}
	return l, nil
}

// includedFiles returns the absolute paths the include directives of the
// ledger file at path resolve to.
func includedFiles(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		pattern, ok := strings.CutPrefix(strings.TrimSpace(stripComment(line)), "include ")
		if !ok || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			continue
		}
		pattern = strings.Trim(strings.TrimSpace(pattern), `"`)
		matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), pattern))
		for _, m := range matches {
			if abs, err := filepath.Abs(m); err == nil {
				paths = append(paths, abs)
			}
		}
	}
	return paths, nil
}

type parser struct {
	scanner *linescanner

	dateLayout string

	strPrevDate string
	prevDateErr error
	prevDate    time.Time

	current     *Transaction
	currentLine int
	skipping    bool
}

func parseLedger(filename string, ledgerReader io.Reader, callback func(t []*Transaction, err error) (stop bool)) (stop bool) {
	var lp parser
	lp.scanner = newLineScanner(filename, ledgerReader)

	var tlist []*Transaction

	// finish closes the transaction being read, returning true when parsing
	// has to stop.
	finish := func() bool {
		trans := lp.current
		lp.current = nil
		if trans == nil {
			return false
		}
		if err := trans.IsBalanced(); err != nil {
			return callback(nil, fmt.Errorf("%s:%d: unable to parse transaction: %w", lp.scanner.Name(), lp.currentLine, err))
		}
		tlist = append(tlist, trans)
		return false
	}

	for lp.scanner.Scan() {
		line := lp.scanner.Text()
		trimmedLine := strings.TrimSpace(stripComment(line))

		// Blank lines end transactions and directives
		if len(trimmedLine) == 0 {
			lp.skipping = false
			if finish() {
				return true
			}
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			switch {
			case lp.current != nil:
				if err := lp.parseTransactionLine(trimmedLine); err != nil {
					if callback(nil, fmt.Errorf("%s:%d: unable to parse transaction: %w", lp.scanner.Name(), lp.scanner.LineNumber(), err)) {
						return true
					}
					lp.current = nil
					lp.skipping = true
				}
			case lp.skipping:
			default:
				if callback(nil, fmt.Errorf("%s:%d: posting outside of transaction: %s", lp.scanner.Name(), lp.scanner.LineNumber(), trimmedLine)) {
					return true
				}
			}
			continue
		}

		if finish() {
			return true
		}
		lp.skipping = false

		before, after, split := strings.Cut(trimmedLine, " ")
		if !split {
			if callback(nil, fmt.Errorf("%s:%d: unable to parse transaction: %w", lp.scanner.Name(), lp.scanner.LineNumber(),
				fmt.Errorf("unable to parse payee line: %s", trimmedLine))) {
				return true
			}
			continue
		}
		switch before {
		case "option", "plugin", "pushtag", "poptag":
			lp.skipping = true
		case "include":
			pattern := strings.Trim(strings.TrimSpace(after), `"`)
			paths, _ := filepath.Glob(filepath.Join(filepath.Dir(lp.scanner.Name()), pattern))
			if len(paths) < 1 {
				callback(nil, fmt.Errorf("%s:%d: unable to include file(%s): %w", lp.scanner.Name(), lp.scanner.LineNumber(), pattern, errors.New("not found")))
				return true
			}
			var wg sync.WaitGroup
			var stopMu sync.Mutex
			for _, incpath := range paths {
				wg.Add(1)
				go func(ipath string) {
					defer wg.Done()
					ifile, err := os.Open(ipath)
					if err != nil {
						callback(nil, err)
						stopMu.Lock()
						stop = true
						stopMu.Unlock()
						return
					}
					defer ifile.Close()
					if parseLedger(ipath, ifile, callback) {
						stopMu.Lock()
						stop = true
						stopMu.Unlock()
					}
				}(incpath)
			}
			wg.Wait()
			if stop {
				return stop
			}
		default:
			if err := lp.parseHeader(before, after); err != nil {
				if callback(nil, fmt.Errorf("%s:%d: unable to parse transaction: %w", lp.scanner.Name(), lp.scanner.LineNumber(), err)) {
					return true
				}
				lp.skipping = true
			}
		}
	}
	if err := lp.scanner.Err(); err != nil {
		callback(nil, fmt.Errorf("%s: %w", lp.scanner.Name(), err))
		return true
	}
	if finish() {
		return true
	}
	callback(tlist, nil)
	return false
}

// stripComment removes a trailing ; comment that is not inside a quoted string.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

func (lp *parser) parseDate(dateString string) (transDate time.Time, err error) {
	// seen before, skip parse
	if lp.strPrevDate == dateString {
		return lp.prevDate, lp.prevDateErr
	}

	// try current date layout
	if lp.dateLayout == "" {
		lp.dateLayout = time.DateOnly
	}
	transDate, err = time.Parse(lp.dateLayout, dateString)
	if err != nil {
		// try to find new date layout
		transDate, lp.dateLayout, err = date.ParseAndGetLayout(dateString)
		if err != nil {
			err = fmt.Errorf("unable to parse date(%s): %w", dateString, err)
		}
	}

	// maybe next date is same
	lp.strPrevDate = dateString
	lp.prevDate = transDate
	lp.prevDateErr = err

	return
}

// parseHeader starts a transaction, or a directive to skip, from a line
// beginning with a date.
func (lp *parser) parseHeader(dateString, rest string) error {
	transDate, err := lp.parseDate(dateString)
	if err != nil {
		return err
	}

	rest = strings.TrimSpace(rest)
	word, remainder, _ := strings.Cut(rest, " ")
	switch word {
	case "open", "close", "balance", "pad", "price", "commodity", "note", "document", "event", "custom", "query":
		lp.skipping = true
		return nil
	}

	trans := &Transaction{Date: transDate}
	switch word {
	case "*", "!", "txn":
		rest = remainder
	case "T", "C", "M":
		trans.Flag = ParseFlag(word)
		rest = remainder
	}

	title, err := parseTitle(strings.TrimSpace(rest))
	if err != nil {
		return err
	}
	trans.Title = title
	lp.current = trans
	lp.currentLine = lp.scanner.LineNumber()
	return nil
}

// parseTitle takes the narration, the last quoted string, or the plain text
// of unquoted titles.
func parseTitle(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	var title string
	for len(s) > 0 {
		quoted, err := strconv.QuotedPrefix(s)
		if err != nil {
			// tags and links after the strings are ignored
			if strings.HasPrefix(s, "#") || strings.HasPrefix(s, "^") {
				break
			}
			return "", fmt.Errorf("unable to parse title %q: %w", s, err)
		}
		title, _ = strconv.Unquote(quoted)
		s = strings.TrimSpace(s[len(quoted):])
	}
	return title, nil
}

func (lp *parser) parseTransactionLine(trimmedLine string) error {
	trans := lp.current
	if m := metaRegex.FindStringSubmatch(trimmedLine); m != nil {
		value, err := strconv.Unquote(m[2])
		if err != nil {
			return err
		}
		if n := len(trans.Postings); n > 0 {
			trans.Postings[n-1].Comments.Set(m[1], value)
		} else {
			trans.Comments.Set(m[1], value)
		}
		return nil
	}

	var posting Posting
	if err := posting.parse(trimmedLine); err != nil {
		return err
	}
	trans.Postings = append(trans.Postings, posting)
	return nil
}

func (p *Posting) parse(trimmedLine string) (err error) {
	// Regex groups:
	// 1: account name
	// 2: amount (number or parenthesized expression)
	// 3: currency
	// 4, 5: @ price and its currency
	m := postingRegex.FindStringSubmatch(trimmedLine)
	if m == nil {
		return fmt.Errorf("invalid posting: %q", trimmedLine)
	}

	p.Account = m[1]

	if m[2] != "" {
		var q decimal.Decimal
		if strings.HasPrefix(m[2], "(") {
			bal, err := compute.Evaluate(m[2])
			if err != nil {
				return err
			}
			q = decimal.NewFromFloat(bal)
		} else if q, err = decimal.NewFromString(strings.ReplaceAll(m[2], ",", "")); err != nil {
			return err
		}
		p.Amount = &Amount{Quantity: q, Currency: m[3]}
	}

	if m[4] != "" {
		price, err := decimal.NewFromString(m[4])
		if err != nil {
			return err
		}
		p.Price = &Amount{Quantity: price, Currency: m[5]}
	}
	return nil
}
