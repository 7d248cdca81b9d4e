// Package increment holds the threshold→increment schedule that sets the
// minimum raise for the next bid.
package increment

import (
	"fmt"
	"sort"

	"github.com/kridavyuha/auction-server/internals/apperr"
)

// Rule applies Increment to every price at or above Threshold, until a rule
// with a greater threshold takes over.
type Rule struct {
	Threshold int64 `json:"threshold"`
	Increment int64 `json:"increment"`
}

// Table is an ascending list of rules. The zero value behaves as Default.
type Table []Rule

// DefaultIncrement is used when no rule has been configured.
const DefaultIncrement = 10

// Default is the schedule a fresh auction starts with.
func Default() Table {
	return Table{{Threshold: 0, Increment: DefaultIncrement}}
}

// New validates rules and returns them sorted by threshold. If no rule starts
// at 0 the first configured increment also covers prices below the first
// threshold.
func New(rules []Rule) (Table, error) {
	if len(rules) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "increment table needs at least one rule")
	}

	t := make(Table, len(rules))
	copy(t, rules)
	sort.Slice(t, func(i, j int) bool { return t[i].Threshold < t[j].Threshold })

	for i, r := range t {
		if r.Threshold < 0 {
			return nil, apperr.Newf(apperr.CodeInvalidInput, "threshold %d is negative", r.Threshold)
		}
		if r.Increment <= 0 {
			return nil, apperr.Newf(apperr.CodeInvalidInput, "increment for threshold %d must be positive", r.Threshold)
		}
		if i > 0 && t[i-1].Threshold == r.Threshold {
			return nil, apperr.Newf(apperr.CodeInvalidInput, "duplicate threshold %d", r.Threshold)
		}
	}

	if t[0].Threshold != 0 {
		t = append(Table{{Threshold: 0, Increment: t[0].Increment}}, t...)
	}
	return t, nil
}

// IncrementFor returns the increment of the greatest-threshold rule with
// threshold <= v.
func (t Table) IncrementFor(v int64) int64 {
	if len(t) == 0 {
		return DefaultIncrement
	}
	// first rule whose threshold is above v; the one before it applies
	i := sort.Search(len(t), func(i int) bool { return t[i].Threshold > v })
	if i == 0 {
		return t[0].Increment
	}
	return t[i-1].Increment
}

// MinNext is the lowest amount that may follow a bid of current.
func (t Table) MinNext(current int64) int64 {
	return current + t.IncrementFor(current)
}

func (t Table) String() string {
	return fmt.Sprintf("%v", []Rule(t))
}
