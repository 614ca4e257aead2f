package statement

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/stmtrecon/ledger"
)

// Groups holds the loaded ledgers by statement type, one ledger per source
// in the order sources were first seen.
type Groups map[ledger.StatementType][]*ledger.Ledger

// typeOrder is the order All returns ledgers in.
var typeOrder = []ledger.StatementType{
	ledger.StatementBank,
	ledger.StatementCreditCard,
	ledger.StatementReceipt,
	ledger.StatementStock,
}

func (g Groups) add(l *ledger.Ledger) error {
	for _, existing := range g[l.Type] {
		if existing.Source == l.Source {
			return existing.Combine(l)
		}
	}
	g[l.Type] = append(g[l.Type], l)
	return nil
}

// All returns bank, credit card, receipt then stock ledgers.
func (g Groups) All() []*ledger.Ledger {
	var all []*ledger.Ledger
	for _, typ := range typeOrder {
		all = append(all, g[typ]...)
	}
	return all
}

// Len returns the number of transactions over all ledgers.
func (g Groups) Len() int {
	n := 0
	for _, ls := range g {
		for _, l := range ls {
			n += l.Len()
		}
	}
	return n
}

// Loader reads a directory of statements with the parser matching each file.
type Loader struct {
	parsers []Parser
	logger  *slog.Logger
}

func NewLoader(logger *slog.Logger, parsers ...Parser) *Loader {
	return &Loader{parsers: parsers, logger: logger}
}

// Accounts returns the sorted source accounts of every parser.
func (ld *Loader) Accounts() []string {
	var accounts []string
	for _, p := range ld.parsers {
		for _, a := range p.Accounts() {
			accounts = append(accounts, a)
		}
	}
	slices.Sort(accounts)
	return slices.Compact(accounts)
}

// Parser returns the parser of the named source.
func (ld *Loader) Parser(source string) (Parser, bool) {
	for _, p := range ld.parsers {
		if p.Source() == source {
			return p, true
		}
	}
	return nil, false
}

// findParser picks the parser with the longest source name found in path.
func (ld *Loader) findParser(path string) Parser {
	var found Parser
	p := strings.ToLower(filepath.ToSlash(path))
	for _, parser := range ld.parsers {
		name := strings.ToLower(parser.Source())
		if name == "" || !strings.Contains(p, name) {
			continue
		}
		if found == nil || len(name) > len(found.Source()) {
			found = parser
		}
	}
	return found
}

// Load parses every statement below dir in lexical order. Hidden files,
// files no parser claims and statements of unsupported types are logged and
// skipped.
func (ld *Loader) Load(dir string) (Groups, error) {
	groups := make(Groups)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		parser := ld.findParser(rel)
		if parser == nil {
			ld.logger.Warn("no parser for statement", "file", rel)
			return nil
		}

		l, err := ld.loadFile(parser, path, rel)
		if errors.Is(err, ErrUnsupportedStatementType) {
			ld.logger.Warn("skipping statement", "file", rel, "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		ld.logger.Info("loaded statement", "file", rel, "type", l.Type, "parser", parser.Source(), "transactions", l.Len())
		return groups.add(l)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load statements: %w", err)
	}
	return groups, nil
}

// LoadFile parses the statement at path with the parser of source. The
// statement type is detected from path as Load does.
func (ld *Loader) LoadFile(source, path string) (*ledger.Ledger, error) {
	parser, ok := ld.Parser(source)
	if !ok {
		return nil, fmt.Errorf("no parser for source %q", source)
	}
	l, err := ld.loadFile(parser, path, path)
	if err != nil {
		return nil, err
	}
	ld.logger.Info("loaded statement", "file", path, "type", l.Type, "parser", source, "transactions", l.Len())
	return l, nil
}

// loadFile parses one statement, decompressing .br files on the fly.
func (ld *Loader) loadFile(parser Parser, path, rel string) (*ledger.Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.EqualFold(filepath.Ext(rel), ".br") {
		r = brotli.NewReader(f)
		rel = rel[:len(rel)-len(".br")]
	}
	return parser.Parse(rel, r)
}
