package ledger

import (
	"fmt"
	"sort"

	"github.com/tallybot/tally/internal/money"
)

// Transfer is one settling payment: From pays To the given Amount.
type Transfer struct {
	From   string
	To     string
	Amount money.Money
}

// side is one half of the matching: a participant with an outstanding
// positive amount (a debt or a credit).
type side struct {
	id     string
	amount money.Money
}

// Settle turns a set of net balances into a small set of point-to-point
// transfers that drives every balance to (approximately) zero.
//
// Greedy largest-debtor/largest-creditor matching: debtors and creditors are
// each sorted by outstanding amount, largest first, with ties broken by
// ascending participant id so repeated runs over the same input produce
// identical output. The largest debtor pays the largest creditor
// min(debt, credit); whichever side has a remainder goes back to the front
// of its list (it is still the maximum by construction) and the other side
// is removed. This yields at most debtors+creditors-1 transfers. It is a
// heuristic, not a minimum-transfer-count solution.
//
// Because each net balance was rounded to the cent independently, the input
// may not sum to exactly zero. A residual within ResidualTolerance(n) is
// allowed: the matching simply stops when either list empties, and the
// leftover is dropped rather than patched with a corrective transfer. A
// residual beyond tolerance means the inputs are corrupt and Settle fails
// with an InvariantError.
func Settle(netBalances map[string]money.Money) ([]Transfer, error) {
	var debtors, creditors []side
	residual := money.Zero
	for id, bal := range netBalances {
		residual = residual.Add(bal)
		switch {
		case bal.IsNegative():
			debtors = append(debtors, side{id: id, amount: bal.Neg()})
		case bal.IsPositive():
			creditors = append(creditors, side{id: id, amount: bal})
		}
	}

	if tol := ResidualTolerance(len(netBalances)); residual.Abs().Cmp(tol) > 0 {
		return nil, &InvariantError{
			Op:     "settle",
			Detail: fmt.Sprintf("net balances sum to %s, beyond tolerance %s", residual, tol),
		}
	}

	sortLargestFirst(debtors)
	sortLargestFirst(creditors)

	var transfers []Transfer
	for len(debtors) > 0 && len(creditors) > 0 {
		debtor, creditor := debtors[0], creditors[0]
		debtors, creditors = debtors[1:], creditors[1:]

		switch debtor.amount.Cmp(creditor.amount) {
		case 1: // debt > credit: creditor fully settled
			transfers = append(transfers, Transfer{From: debtor.id, To: creditor.id, Amount: creditor.amount})
			debtor.amount = debtor.amount.Sub(creditor.amount)
			debtors = append([]side{debtor}, debtors...)
		case -1: // credit > debt: debtor fully settled
			transfers = append(transfers, Transfer{From: debtor.id, To: creditor.id, Amount: debtor.amount})
			creditor.amount = creditor.amount.Sub(debtor.amount)
			creditors = append([]side{creditor}, creditors...)
		default: // equal: both settled
			transfers = append(transfers, Transfer{From: debtor.id, To: creditor.id, Amount: debtor.amount})
		}
	}

	for _, tr := range transfers {
		if !tr.Amount.IsPositive() {
			return nil, &InvariantError{
				Op:     "settle",
				Detail: fmt.Sprintf("non-positive transfer %s from %s to %s", tr.Amount, tr.From, tr.To),
			}
		}
		if tr.From == tr.To {
			return nil, &InvariantError{
				Op:     "settle",
				Detail: fmt.Sprintf("self-payment of %s by %s", tr.Amount, tr.From),
			}
		}
	}

	return transfers, nil
}

// sortLargestFirst orders by amount descending, then id ascending.
func sortLargestFirst(s []side) {
	sort.Slice(s, func(i, j int) bool {
		if c := s[i].amount.Cmp(s[j].amount); c != 0 {
			return c > 0
		}
		return s[i].id < s[j].id
	})
}
