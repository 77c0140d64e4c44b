package match

import (
	"time"

	"github.com/clubkas/clubkas/internal/model"
)

// Best is a scored candidate transaction for a name.
type Best struct {
	Transaction model.Transaction
	Score       int
}

// scoreAgainst scores a name against one transaction, taking the best
// of its counterparty name and free-text communication. Payments often
// arrive from a parent's account with the member's name only in the
// communication field.
func scoreAgainst(name string, txn model.Transaction) int {
	score := NameSimilarity(name, txn.CounterpartyName)
	if s := NameSimilarity(name, txn.Communication); s > score {
		score = s
	}
	return score
}

// FindBestMatch returns the highest-scoring candidate for a name, or
// nil when no candidate reaches MatchThreshold. Two candidates sharing
// the top score is ambiguous: neither is picked, so the name stays
// unmatched for human review. Ambiguity never raises an error.
func FindBestMatch(name string, candidates []model.Transaction) *Best {
	var best *Best
	tied := false
	for _, cand := range candidates {
		score := scoreAgainst(name, cand)
		switch {
		case best == nil || score > best.Score:
			best = &Best{Transaction: cand, Score: score}
			tied = false
		case score == best.Score:
			tied = true
		}
	}
	if best == nil || best.Score < MatchThreshold || tied {
		return nil
	}
	return best
}

// Pair links one matched inscription to the transaction that paid it.
type Pair struct {
	Inscription model.Inscription
	Transaction model.Transaction
	Match       model.EntityMatch
}

// Result summarizes one auto-match run.
type Result struct {
	Matched        []Pair
	UnmatchedCount int
}

// AutoMatch greedily pairs unpaid inscriptions with available
// transactions in input order. Each consumed transaction leaves the
// pool, so no payment settles two inscriptions. Greedy assignment is
// not globally optimal; below-threshold leftovers stay unmatched for
// human review rather than being forced onto a weak candidate.
func AutoMatch(inscriptions []model.Inscription, available []model.Transaction) Result {
	pool := make([]model.Transaction, len(available))
	copy(pool, available)

	var result Result
	for _, insc := range inscriptions {
		if insc.Paid {
			continue
		}
		best := FindBestMatch(insc.MemberName, pool)
		if best == nil {
			result.UnmatchedCount++
			continue
		}

		txn := best.Transaction
		entityMatch := model.EntityMatch{
			EntityType: model.EntityInscription,
			EntityID:   insc.ID,
			EntityName: insc.MemberName,
			Confidence: best.Score,
			MatchedAt:  time.Now().UTC(),
			MatchedBy:  model.MatchAuto,
		}
		txn.MatchedEntities = append(txn.MatchedEntities, entityMatch)
		result.Matched = append(result.Matched, Pair{
			Inscription: insc,
			Transaction: txn,
			Match:       entityMatch,
		})
		pool = removeByID(pool, txn.ID)
	}
	return result
}

// ClaimPair links a matched expense claim to its paying transaction.
type ClaimPair struct {
	Claim       model.ExpenseClaim
	Transaction model.Transaction
	Match       model.EntityMatch
}

// ClaimResult summarizes one claim-match run.
type ClaimResult struct {
	Matched        []ClaimPair
	UnmatchedCount int
}

// AutoMatchClaims pairs expense claims with outgoing transactions. A
// claim matches only when the transaction amount equals the claimed
// amount (expenses are negative on the statement) and the claimant name
// clears the threshold. Same greedy, pool-consuming discipline as
// AutoMatch.
func AutoMatchClaims(claims []model.ExpenseClaim, available []model.Transaction) ClaimResult {
	pool := make([]model.Transaction, len(available))
	copy(pool, available)

	var result ClaimResult
	for _, claim := range claims {
		var candidates []model.Transaction
		for _, txn := range pool {
			if txn.Amount.IsNegative() && model.AmountsEqual(txn.Amount.Abs(), claim.Amount) {
				candidates = append(candidates, txn)
			}
		}
		best := FindBestMatch(claim.Claimant, candidates)
		if best == nil {
			result.UnmatchedCount++
			continue
		}

		txn := best.Transaction
		entityMatch := model.EntityMatch{
			EntityType: model.EntityExpenseClaim,
			EntityID:   claim.ID,
			EntityName: claim.Claimant,
			Confidence: best.Score,
			MatchedAt:  time.Now().UTC(),
			MatchedBy:  model.MatchAuto,
		}
		txn.MatchedEntities = append(txn.MatchedEntities, entityMatch)
		result.Matched = append(result.Matched, ClaimPair{
			Claim:       claim,
			Transaction: txn,
			Match:       entityMatch,
		})
		pool = removeByID(pool, txn.ID)
	}
	return result
}

func removeByID(pool []model.Transaction, id string) []model.Transaction {
	for i, txn := range pool {
		if txn.ID == id {
			return append(pool[:i], pool[i+1:]...)
		}
	}
	return pool
}
