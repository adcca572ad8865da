// Package importer plans idempotent ingestion of transaction batches.
package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

// Plan partitions an incoming batch into inserts and updates
type Plan struct {
	Inserts []domain.Transaction `json:"inserts"`
	Updates []domain.Transaction `json:"updates"`
}

type sourceKey struct {
	source domain.TransactionSource
	value  string
}

// BuildPlan matches incoming transactions against already-stored ones using
// composite natural keys. A record with a source_id matches on
// (source, source_id); the source_id match is authoritative and wins even
// when a different record matches by hash. Records without a source_id, or
// whose source_id finds nothing, fall back to (source, source_hash). Matches
// become updates carrying the existing id; the rest become inserts.
//
// The planner is pure and order-independent: the same (incoming, existing)
// pair always yields the same partition. The caller scopes existing to the
// relevant account and window to bound comparison cost.
func BuildPlan(incoming, existing []domain.Transaction) Plan {
	byID := make(map[sourceKey]domain.Transaction, len(existing))
	byHash := make(map[sourceKey]domain.Transaction, len(existing))
	for _, tx := range existing {
		if tx.SourceID != "" {
			key := sourceKey{tx.Source, tx.SourceID}
			if _, dup := byID[key]; !dup {
				byID[key] = tx
			}
		}
		if tx.SourceHash != "" {
			key := sourceKey{tx.Source, tx.SourceHash}
			if _, dup := byHash[key]; !dup {
				byHash[key] = tx
			}
		}
	}

	plan := Plan{
		Inserts: make([]domain.Transaction, 0, len(incoming)),
		Updates: make([]domain.Transaction, 0),
	}

	for _, tx := range incoming {
		matched, found := match(tx, byID, byHash)
		if !found {
			plan.Inserts = append(plan.Inserts, tx)
			continue
		}
		tx.ID = matched.ID
		plan.Updates = append(plan.Updates, tx)
	}

	return plan
}

func match(tx domain.Transaction, byID, byHash map[sourceKey]domain.Transaction) (domain.Transaction, bool) {
	if tx.SourceID != "" {
		if matched, ok := byID[sourceKey{tx.Source, tx.SourceID}]; ok {
			return matched, true
		}
	}
	if tx.SourceHash != "" {
		if matched, ok := byHash[sourceKey{tx.Source, tx.SourceHash}]; ok {
			return matched, true
		}
	}
	return domain.Transaction{}, false
}

// SourceHash computes the deterministic content hash used as the fallback
// natural key. It covers the normalized fields that identify a row within
// its account: date, payee, description and signed amount.
func SourceHash(tx domain.Transaction) string {
	parts := []string{
		tx.AccountID,
		tx.Date.Format("2006-01-02"),
		strings.ToLower(strings.TrimSpace(tx.Payee)),
		strings.ToLower(strings.TrimSpace(tx.Description)),
		tx.Amount.StringFixed(2),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Describe renders a short human-readable plan summary for logs
func (p Plan) Describe() string {
	return fmt.Sprintf("%d inserts, %d updates", len(p.Inserts), len(p.Updates))
}
