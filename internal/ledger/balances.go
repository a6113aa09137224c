// Package ledger implements the balance and settlement math for a group.
// Everything in this package is pure: no I/O, no clock, no store access.
package ledger

import (
	"errors"
	"fmt"

	"github.com/tallybot/tally/internal/money"
)

// ErrNoMembers is returned when a fair share is requested for an empty group.
var ErrNoMembers = errors.New("group has no members")

// InvariantError reports an internal consistency failure. Operations that
// hit one must abort without persisting partial results.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

// halfCent is the worst-case rounding error of a single net balance.
var halfCent = money.MustParse("0.005")

// ResidualTolerance is the acceptable aggregate rounding residual for n
// participants: rounding each net balance independently to the cent can
// leave the sum off by up to half a cent per participant.
func ResidualTolerance(n int) money.Money {
	return halfCent.MulInt(int64(n))
}

// FairShare computes each member's even share of the group total, rounded
// half-up to the cent. This is the only place a derived division result is
// rounded; transaction sums are always exact.
func FairShare(total money.Money, members int) (money.Money, error) {
	if members == 0 {
		return money.Zero, ErrNoMembers
	}
	share, err := total.DivRound(int64(members))
	if err != nil {
		return money.Zero, err
	}
	return share, nil
}

// NetBalances derives each participant's net position from their running
// balance and the fair share: positive means they are owed money, negative
// means they owe. Each net balance is rounded to the cent independently, so
// the values may not sum to exactly zero; callers must tolerate a residual
// within ResidualTolerance(len(balances)).
func NetBalances(balances map[string]money.Money, fairShare money.Money) map[string]money.Money {
	net := make(map[string]money.Money, len(balances))
	for id, paid := range balances {
		net[id] = paid.Sub(fairShare).Round()
	}
	return net
}
