package matching

import (
	"sort"
	"time"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
)

// Match runs the greedy FIFO batch matcher over a set of open orders and
// returns an execution plan with no attestation attached yet.
//
// The walk is single-pass and intentionally not globally optimal: we trade
// clearing quality for throughput and for a circuit that stays cheap to
// run inside the MPC network. The function is pure: same input ordering,
// same fill list, bit for bit.
func Match(orders []domain.Order, now time.Time) (*domain.ExecutionPlan, error) {
	if len(orders) == 0 {
		return nil, domain.NewValidation("no orders provided")
	}

	// Guard: one market per batch. Mixed input means the adapter filter is
	// broken upstream, not a condition to paper over.
	market := orders[0].Market
	for i := range orders {
		if !orders[i].Market.Equals(market) {
			return nil, domain.NewCrossMarket(
				"orders from different markets: " + orders[i].Market.String() + " vs " + market.String())
		}
	}

	open := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status.Matchable() {
			open = append(open, o)
		}
	}

	plan := &domain.ExecutionPlan{
		Market:    market,
		Fills:     []domain.Fill{},
		CreatedAt: now,
	}
	if len(open) == 0 {
		return plan, nil
	}

	var bids, asks []domain.Order
	for _, o := range open {
		if o.Side == domain.SideBid {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	// FIFO by creation time; SliceStable keeps input order on ties so the
	// result stays reproducible.
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].CreatedAt < bids[j].CreatedAt })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].CreatedAt < asks[j].CreatedAt })

	remaining := make(map[orderKey]uint64, len(open))
	for _, o := range open {
		remaining[keyOf(o)] = o.Remaining()
	}

	bidIdx, askIdx := 0, 0
	for bidIdx < len(bids) && askIdx < len(asks) {
		bid := &bids[bidIdx]
		ask := &asks[askIdx]

		remBid := remaining[keyOf(*bid)]
		remAsk := remaining[keyOf(*ask)]
		if remBid == 0 {
			bidIdx++
			continue
		}
		if remAsk == 0 {
			askIdx++
			continue
		}

		matchAmount := min64(remBid, remAsk)

		// The bid's minimum output cannot be met by this counterparty.
		// Skip the bid, don't fail the round. It waits for a later batch.
		if matchAmount < bid.MinAmountOut {
			bidIdx++
			continue
		}

		// Settlement convention of the ledger program: amountIn is the
		// quote the bid hands over (its whole remaining commitment, so no
		// dust stays locked in the vault), amountOut is the base the ask
		// hands over. The bid is therefore always fully consumed by its
		// fill; only asks can end up partially filled.
		plan.Fills = append(plan.Fills, domain.Fill{
			Order:             bid.Pubkey,
			Counterparty:      ask.Pubkey,
			AmountIn:          remBid,      // quote, credited to the ask owner
			AmountOut:         matchAmount, // base, credited to the bid owner
			OrderOwner:        bid.Owner,
			CounterpartyOwner: ask.Owner,
		})

		remaining[keyOf(*bid)] = 0
		remaining[keyOf(*ask)] = remAsk - matchAmount

		bidIdx++
		if remaining[keyOf(*ask)] == 0 {
			askIdx++
		}
	}

	return plan, nil
}

type orderKey [32]byte

func keyOf(o domain.Order) orderKey { return orderKey(o.Pubkey) }

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
