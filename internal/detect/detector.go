// Package detect proposes the owning account for a raw import file.
//
// Strategies run in priority order: a learned header-signature mapping is
// trusted over any heuristic, then a literal account-number / last-4 scan of
// the leading lines, then fuzzy institution-name matching. Detection is a
// pure function of its arguments and never fails on malformed input; the
// worst case is method "none" with zero confidence.
package detect

import (
	"sort"
	"strings"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

const (
	// Confidence levels per strategy. A human previously confirmed a
	// mapping, so it is near-certain. Ambiguous candidates within a
	// strategy keep the deterministic winner but lose ambiguityPenalty.
	mappingConfidence       = 0.95
	accountNumberConfidence = 0.85
	last4Confidence         = 0.75
	institutionFull         = 0.6
	institutionPartial      = 0.5
	ambiguityPenalty        = 0.15

	// Account numbers and last-4 digits are searched in the header row
	// plus a bounded lookahead over any leading metadata lines.
	scanLines = 10
)

// Detect proposes an account for the given raw CSV text. mappings are the
// stored layout associations consulted first; headerSignature is the
// signature of the file being imported, empty when unknown.
func Detect(csvText string, accounts []domain.Account, mappings []domain.AccountImportMapping, headerSignature string) domain.Detection {
	if d, ok := matchMapping(mappings, headerSignature); ok {
		return d
	}

	window := scanWindow(csvText)

	if d, ok := matchHeader(window, accounts); ok {
		return d
	}
	if d, ok := matchInstitution(window, accounts); ok {
		return d
	}

	return domain.Detection{Method: domain.DetectNone, Confidence: 0}
}

func matchMapping(mappings []domain.AccountImportMapping, headerSignature string) (domain.Detection, bool) {
	if headerSignature == "" {
		return domain.Detection{}, false
	}

	var hits []domain.AccountImportMapping
	for _, m := range mappings {
		if m.HeaderSignature == headerSignature {
			hits = append(hits, m)
		}
	}
	if len(hits) == 0 {
		return domain.Detection{}, false
	}

	// A signature normally maps to one account; if reinforcement created
	// more than one row, prefer the heavier mapping, then the newer.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Confidence != hits[j].Confidence {
			return hits[i].Confidence > hits[j].Confidence
		}
		if !hits[i].UpdatedAt.Equal(hits[j].UpdatedAt) {
			return hits[i].UpdatedAt.After(hits[j].UpdatedAt)
		}
		return hits[i].ID < hits[j].ID
	})

	mappingID := hits[0].ID
	return domain.Detection{
		SuggestedAccountID: hits[0].AccountID,
		Method:             domain.DetectByMapping,
		Confidence:         mappingConfidence,
		MappingID:          &mappingID,
	}, true
}

type candidate struct {
	account    domain.Account
	confidence float64
}

func matchHeader(window string, accounts []domain.Account) (domain.Detection, bool) {
	var candidates []candidate
	for _, acct := range accounts {
		if !acct.Active {
			continue
		}
		switch {
		case acct.AccountNumber != "" && strings.Contains(window, strings.ToLower(acct.AccountNumber)):
			candidates = append(candidates, candidate{acct, accountNumberConfidence})
		case len(acct.Last4) == 4 && strings.Contains(window, acct.Last4):
			candidates = append(candidates, candidate{acct, last4Confidence})
		}
	}
	return pickWinner(candidates, domain.DetectByHeader)
}

func matchInstitution(window string, accounts []domain.Account) (domain.Detection, bool) {
	var candidates []candidate
	for _, acct := range accounts {
		if !acct.Active || acct.Institution == "" {
			continue
		}
		tokens := institutionTokens(acct.Institution)
		if len(tokens) == 0 {
			continue
		}

		matched := 0
		for _, tok := range tokens {
			if strings.Contains(window, tok) {
				matched++
			}
		}
		switch {
		case matched == len(tokens):
			candidates = append(candidates, candidate{acct, institutionFull})
		case matched*2 >= len(tokens) && matched > 0:
			candidates = append(candidates, candidate{acct, institutionPartial})
		}
	}
	return pickWinner(candidates, domain.DetectByInstitution)
}

// pickWinner resolves ties deterministically: strongest signal first, then
// the most recently updated account, then lowest id. Competing candidates at
// the winning strength lower the reported confidence rather than guessing
// silently.
func pickWinner(candidates []candidate, method domain.DetectionMethod) (domain.Detection, bool) {
	if len(candidates) == 0 {
		return domain.Detection{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].confidence != candidates[j].confidence {
			return candidates[i].confidence > candidates[j].confidence
		}
		iu, ju := candidates[i].account.UpdatedAt, candidates[j].account.UpdatedAt
		if !iu.Equal(ju) {
			return iu.After(ju)
		}
		return candidates[i].account.ID < candidates[j].account.ID
	})

	winner := candidates[0]
	confidence := winner.confidence
	if len(candidates) > 1 && candidates[1].confidence == winner.confidence {
		confidence -= ambiguityPenalty
	}

	return domain.Detection{
		SuggestedAccountID: winner.account.ID,
		Method:             method,
		Confidence:         confidence,
	}, true
}

// scanWindow lowercases the header row plus a bounded lookahead of leading
// lines, which is where exports place metadata like masked account numbers.
func scanWindow(csvText string) string {
	lines := strings.SplitN(csvText, "\n", scanLines+1)
	if len(lines) > scanLines {
		lines = lines[:scanLines]
	}
	return strings.ToLower(strings.Join(lines, "\n"))
}

func institutionTokens(institution string) []string {
	fields := strings.Fields(strings.ToLower(institution))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
