package ledger

import "slices"

// Key identifies transactions deemed equivalent by a HashFn.
type Key string

// HashFn computes the comparison key of t as if it was dated dayOffset days
// later.
type HashFn func(t *Transaction, dayOffset int) Key

// Options tune Dedup.
type Options struct {
	// Never match two transactions of the same source.
	IgnoreSameSource bool
	// Fold a duplicate's comments into the transaction it duplicates
	// instead of dropping it silently.
	MergeOnDuplicate bool
	// With MergeOnDuplicate, also append the duplicate's postings.
	MergePostings bool
	// Only process ledgers of these types. Empty means all.
	RestrictToTypes []StatementType
	// Vetoes a match when it returns true.
	DiffHook func(existing, candidate *Transaction) bool
}

// DefaultOptions returns the options Dedup is normally run with.
func DefaultOptions() Options {
	return Options{IgnoreSameSource: true}
}

type dedupRecord struct {
	source   string
	txn      *Transaction
	foundDup bool
}

// Dedup removes, in place, every transaction duplicating one processed
// before it. Two transactions are duplicates when hash gives the same key for
// them with their dates at most toleranceDays apart. Earlier ledgers take
// precedence and every kept transaction absorbs at most one duplicate. Fewer
// than two ledgers are left untouched.
//
// Dedup does not recover panics raised by hash.
func Dedup(ledgers []*Ledger, hash HashFn, toleranceDays int, opts Options) {
	if len(ledgers) < 2 {
		return
	}

	// a list per key as there might be several transactions sharing date and amount
	records := make(map[Key][]*dedupRecord)
	offsets := toleranceOffsets(toleranceDays)

	for _, l := range ledgers {
		if len(opts.RestrictToTypes) > 0 && !slices.Contains(opts.RestrictToTypes, l.Type) {
			continue
		}

		survivors := make([]*Transaction, 0, len(l.Transactions))
		for _, txn := range l.Transactions {
			if rec := findDuplicate(records, offsets, l.Source, txn, hash, opts); rec != nil {
				rec.foundDup = true
				if opts.MergeOnDuplicate {
					rec.txn.Merge(txn, Rename, opts.MergePostings)
				}
				continue
			}

			key := hash(txn, 0)
			records[key] = append(records[key], &dedupRecord{source: l.Source, txn: txn})
			survivors = append(survivors, txn)
		}
		l.Transactions = survivors
	}
}

// findDuplicate returns the first unconsumed record matching txn, trying the
// exact date before widening the window.
func findDuplicate(records map[Key][]*dedupRecord, offsets []int, source string, txn *Transaction, hash HashFn, opts Options) *dedupRecord {
	keys := make([]Key, len(offsets))
	for i, off := range offsets {
		keys[i] = hash(txn, off)
	}

	for _, key := range keys {
		for _, rec := range records[key] {
			if rec.foundDup {
				continue
			}
			if opts.IgnoreSameSource && rec.source == source {
				continue
			}
			if opts.DiffHook != nil && opts.DiffHook(rec.txn, txn) {
				continue
			}
			return rec
		}
	}
	return nil
}

// toleranceOffsets returns 0, 1, -1, ..., n, -n. A negative n gives no
// offsets at all.
func toleranceOffsets(n int) []int {
	if n < 0 {
		return nil
	}
	offsets := make([]int, 1, 2*n+1)
	for i := 1; i <= n; i++ {
		offsets = append(offsets, i, -i)
	}
	return offsets
}
