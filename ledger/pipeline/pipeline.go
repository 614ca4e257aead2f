// Package pipeline runs a full reconciliation: statements are loaded,
// deduplicated against each other and against curated ledgers, classified,
// and written out as beancount files.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/stmtrecon/ledger"
	"github.com/stmtrecon/ledger/ledger/beanfile"
	"github.com/stmtrecon/ledger/ledger/classify"
	"github.com/stmtrecon/ledger/ledger/config"
	"github.com/stmtrecon/ledger/ledger/internal/logging"
	"github.com/stmtrecon/ledger/ledger/statement"
)

const (
	ResultFile  = "result.bean"
	AccountFile = "account.bean"

	customSource  = "custom"
	ignoredSource = "ignored"
)

// Stage names in the order they run.
const (
	StageLoad     = "load"
	StageMerge    = "merge"
	StageCurated  = "curated"
	StageTitle    = "dedup-title"
	StageClassify = "classify"
	StageTransfer = "dedup-transfer"
	StageWrite    = "write"
)

// StageStat is what a stage left behind.
type StageStat struct {
	Name         string
	Transactions int
	Duration     time.Duration
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Stages      []StageStat
	ResultPath  string
	AccountPath string
	Duration    time.Duration
}

// Stage returns the stats of the named stage.
func (s *Summary) Stage(name string) (StageStat, bool) {
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageStat{}, false
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", s.RunID)
	for _, st := range s.Stages {
		fmt.Fprintf(&b, "  %-15s %6d transactions  %s\n", st.Name, st.Transactions, formatDuration(st.Duration))
	}
	fmt.Fprintf(&b, "wrote %s and %s in %s\n", s.ResultPath, s.AccountPath, formatDuration(s.Duration))
	return b.String()
}

func formatDuration(d time.Duration) string {
	return durafmt.Parse(d).LimitFirstN(2).String()
}

// Pipeline holds what a run needs. It is built once per configuration.
type Pipeline struct {
	cfg        *config.Config
	logger     *slog.Logger
	loader     *statement.Loader
	classifier *classify.Classifier
}

// New validates cfg and builds a parser for every configured source.
func New(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parsers := make([]statement.Parser, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		p, err := statement.NewParser(src, logger)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		parsers = append(parsers, p)
	}

	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		loader:     statement.NewLoader(logger.With(logging.StageKey, StageLoad), parsers...),
		classifier: classify.New(cfg, logger),
	}, nil
}

// Loader returns the statement loader of the configured sources.
func (p *Pipeline) Loader() *statement.Loader {
	return p.loader
}

// Classifier returns the classifier, untrained until Run or Train is called.
func (p *Pipeline) Classifier() *classify.Classifier {
	return p.classifier
}

// Accounts lists every account the result can use: source accounts, mapping
// targets and default accounts.
func (p *Pipeline) Accounts() []string {
	accounts := append(p.loader.Accounts(), p.cfg.Accounts()...)
	slices.Sort(accounts)
	return slices.Compact(accounts)
}

// WriteAccounts writes the open directives of Accounts to the output folder
// and returns the file written.
func (p *Pipeline) WriteAccounts() (string, error) {
	path := filepath.Join(p.cfg.Beancount.OutputFolder, AccountFile)
	err := p.writeFile(path, func(f *os.File) error {
		return beanfile.WriteAccounts(f, p.Accounts(), p.cfg.OpenDate())
	})
	return path, err
}

// Curated reads the override and ignored ledger folders.
func (p *Pipeline) Curated() (custom, ignored *ledger.Ledger, err error) {
	custom, err = ledger.ParseLedgerDir(p.cfg.Beancount.OverwriteFolder, customSource, ledger.StatementCustom)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read override ledgers: %w", err)
	}
	ignored, err = ledger.ParseLedgerDir(p.cfg.Beancount.IgnoredFolder, ignoredSource, ledger.StatementIgnored)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ignored ledgers: %w", err)
	}
	return custom, ignored, nil
}

// Run executes every stage in order. Statement ledgers lose transactions
// already recorded by curated ledgers, receipts are merged into card
// transactions and mirrored bank transfers are dropped before the result
// is written.
func (p *Pipeline) Run() (*Summary, error) {
	begin := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := p.logger.With("run", summary.RunID)
	proc := p.cfg.Processing

	start := time.Now()
	done := func(name string, n int) {
		st := StageStat{Name: name, Transactions: n, Duration: time.Since(start)}
		summary.Stages = append(summary.Stages, st)
		logger.Info("stage finished", logging.StageKey, name, "transactions", n, "took", formatDuration(st.Duration))
		start = time.Now()
	}

	groups, err := p.loader.Load(p.cfg.Statements.Folder)
	if err != nil {
		return nil, err
	}
	done(StageLoad, groups.Len())

	merging := append(slices.Clone(groups[ledger.StatementReceipt]), groups[ledger.StatementCreditCard]...)
	ledger.MergeSameDateAmount(merging, proc.MergeLookbackDays, proc.MergePostings)
	done(StageMerge, groups.Len())

	custom, ignored, err := p.Curated()
	if err != nil {
		return nil, err
	}
	done(StageCurated, custom.Len()+ignored.Len())

	generated := groups.All()
	ledger.DedupByTitleAndAmount(append([]*ledger.Ledger{custom, ignored}, generated...), proc.TitleToleranceDays)
	done(StageTitle, groups.Len())

	p.classifier.Train(custom)
	added := 0
	for _, l := range generated {
		added += p.classifier.Classify(l)
	}
	logger.Debug("classified transactions", "postings", added)
	done(StageClassify, groups.Len())

	ledger.DedupBankTransfer(generated, proc.TransferMatchingDays, proc.TransferIgnoreSameSource)
	done(StageTransfer, groups.Len())

	summary.ResultPath = filepath.Join(p.cfg.Beancount.OutputFolder, ResultFile)
	err = p.writeFile(summary.ResultPath, func(f *os.File) error {
		return beanfile.WriteLedger(f, p.cfg.Beancount.Columns, generated...)
	})
	if err != nil {
		return nil, err
	}
	if summary.AccountPath, err = p.WriteAccounts(); err != nil {
		return nil, err
	}
	done(StageWrite, groups.Len())

	summary.Duration = time.Since(begin)
	logger.Info("run finished", "result", summary.ResultPath, "took", formatDuration(summary.Duration))
	return summary, nil
}

// writeFile replaces path with what write produces.
func (p *Pipeline) writeFile(path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
