// Package classify completes single posting transactions with the account
// on the other side.
package classify

import (
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/jbrukh/bayesian"
	"github.com/patrickmn/go-cache"
	"github.com/stmtrecon/ledger"
	"github.com/stmtrecon/ledger/ledger/config"
	"github.com/stmtrecon/ledger/ledger/internal/logging"
)

// a prediction is trusted when it beats the runner up by this log score
const confidenceGap = 10

// Classifier picks the offsetting account of a transaction by keyword
// mappings, then by what it learned from curated ledgers, then by default.
type Classifier struct {
	cfg    *config.Config
	logger *slog.Logger

	bayes       *bayesian.Classifier
	predictions *cache.Cache
}

func New(cfg *config.Config, logger *slog.Logger) *Classifier {
	return &Classifier{
		cfg:         cfg,
		logger:      logger.With(logging.StageKey, "classify"),
		predictions: cache.New(cache.NoExpiration, 0),
	}
}

// Train learns title words of the accounts used by balanced transactions
// of ls. The primary posting, the statement side, is not learned. Training
// needs at least two distinct accounts and replaces what was learned before.
func (c *Classifier) Train(ls ...*ledger.Ledger) {
	type sample struct {
		words   []string
		account bayesian.Class
	}
	var samples []sample
	var classes []bayesian.Class
	for _, l := range ls {
		for _, t := range l.Transactions {
			if len(t.Postings) < 2 {
				continue
			}
			words := titleWords(t.Title)
			if len(words) == 0 {
				continue
			}
			for _, p := range t.Postings[1:] {
				class := bayesian.Class(p.Account)
				if !slices.Contains(classes, class) {
					classes = append(classes, class)
				}
				samples = append(samples, sample{words, class})
			}
		}
	}

	c.predictions.Flush()
	if len(classes) < 2 {
		c.bayes = nil
		c.logger.Debug("not enough accounts to train on", "accounts", len(classes))
		return
	}
	c.bayes = bayesian.NewClassifier(classes...)
	for _, s := range samples {
		c.bayes.Learn(s.words, s.account)
	}
	c.logger.Info("trained classifier", "accounts", len(classes), "samples", len(samples))
}

// Classify completes every transaction of l and returns how many postings
// were added.
//
// Conversions get an amount-less posting on the conversion difference
// account. Transactions with one posting get the offsetting posting, left
// without amount when the posting has a price. Others are left alone.
func (c *Classifier) Classify(l *ledger.Ledger) int {
	added := 0
	for _, t := range l.Transactions {
		if t.Flag == ledger.FlagConversion {
			t.AppendPostings(ledger.Posting{Account: c.cfg.DefaultAccounts.ConversionDiff})
			added++
			continue
		}
		if len(t.Postings) != 1 {
			continue
		}

		primary := t.PrimaryPosting()
		account := c.Account(l.Source, t)
		if primary.Price != nil || primary.Amount == nil {
			t.AppendPostings(ledger.Posting{Account: account})
		} else {
			amt := primary.Amount.Neg()
			t.AppendPostings(ledger.Posting{Account: account, Amount: &amt})
		}
		added++
	}
	c.logger.Debug("classified ledger", "source", l.Source, "type", l.Type, "postings", added)
	return added
}

// Account returns the offsetting account for t, a transaction of source.
func (c *Classifier) Account(source string, t *ledger.Transaction) string {
	for _, mapping := range []map[string][]string{
		c.cfg.Mapping(source),
		c.cfg.Mapping(config.GeneralMapping),
	} {
		if account, ok := matchMapping(mapping, t); ok {
			return account
		}
	}

	if account, ok := c.predict(source, t.Title); ok {
		return account
	}

	if p := t.PrimaryPosting(); p.Amount != nil && p.Amount.Quantity.IsPositive() {
		return c.cfg.DefaultAccounts.Income
	}
	return c.cfg.DefaultAccounts.Expenses
}

// matchMapping tries accounts in sorted order; the first one with a keyword
// found in t wins.
func matchMapping(mapping map[string][]string, t *ledger.Transaction) (string, bool) {
	accounts := make([]string, 0, len(mapping))
	for account := range mapping {
		accounts = append(accounts, account)
	}
	slices.Sort(accounts)

	for _, account := range accounts {
		for _, keyword := range mapping[account] {
			if t.Contains(keyword) {
				return account, true
			}
		}
	}
	return "", false
}

func (c *Classifier) predict(source, title string) (string, bool) {
	if c.bayes == nil {
		return "", false
	}
	key := source + "\x1f" + title
	if v, found := c.predictions.Get(key); found {
		account := v.(string)
		return account, account != ""
	}

	account := ""
	if words := titleWords(title); len(words) > 0 {
		scores, best, _ := c.bayes.LogScores(words)
		runnerUp := math.Inf(-1)
		for i, s := range scores {
			if i != best && s > runnerUp {
				runnerUp = s
			}
		}
		if scores[best]-runnerUp > confidenceGap {
			account = string(c.bayes.Classes[best])
		}
	}
	c.predictions.Set(key, account, cache.NoExpiration)
	return account, account != ""
}

func titleWords(title string) []string {
	return strings.Fields(strings.ToLower(title))
}
