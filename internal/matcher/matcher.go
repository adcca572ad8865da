// Package matcher pairs bank-statement line items with ledger transactions.
package matcher

import (
	"sort"
	"time"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

// DefaultDateToleranceDays is the window for date matching when the caller
// does not configure one.
const DefaultDateToleranceDays = 3

// Engine matches extracted statement rows against candidate ledger
// transactions using exact amount equality and a tolerance window on date.
// It holds no external state and is safe for concurrent use.
type Engine struct {
	toleranceDays int
}

func NewEngine(toleranceDays int) *Engine {
	if toleranceDays < 0 {
		toleranceDays = DefaultDateToleranceDays
	}
	return &Engine{toleranceDays: toleranceDays}
}

// ToleranceDays returns the configured date window.
func (e *Engine) ToleranceDays() int {
	return e.toleranceDays
}

// Matches reports whether a ledger transaction satisfies the date and
// amount rule for an extracted row.
func (e *Engine) Matches(row domain.ExtractedRow, tx domain.Transaction) bool {
	if !tx.Amount.Equal(row.Amount) {
		return false
	}
	return dateDistance(row.Date, tx.Date) <= e.toleranceDays
}

// FindMatch returns the index of the best candidate for row, or -1.
//
// Candidates cleared on a different statement are never matched.
// Equally-satisfying candidates are resolved deterministically: closest
// date first, then a candidate not already cleared on this statement, then
// lowest id.
func (e *Engine) FindMatch(row domain.ExtractedRow, candidates []domain.Transaction, clearedHere, clearedElsewhere map[string]bool) int {
	type scored struct {
		index    int
		distance int
	}

	var hits []scored
	for i, tx := range candidates {
		if clearedElsewhere[tx.ID] {
			continue
		}
		if e.Matches(row, tx) {
			hits = append(hits, scored{index: i, distance: dateDistance(row.Date, tx.Date)})
		}
	}
	if len(hits) == 0 {
		return -1
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		ca, cb := clearedHere[candidates[a.index].ID], clearedHere[candidates[b.index].ID]
		if ca != cb {
			return !ca
		}
		return candidates[a.index].ID < candidates[b.index].ID
	})

	return hits[0].index
}

// dateDistance is the absolute calendar-day distance between two dates,
// ignoring time of day.
func dateDistance(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(ad.Sub(bd).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
