package matching

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
)

var testMarket = solana.NewWallet().PublicKey()

func order(side domain.Side, amountIn, filled, minOut uint64, createdAt int64) domain.Order {
	status := domain.StatusOpen
	if filled > 0 {
		status = domain.StatusPartiallyFilled
	}
	return domain.Order{
		Pubkey:         solana.NewWallet().PublicKey(),
		Owner:          solana.NewWallet().PublicKey(),
		Market:         testMarket,
		Side:           side,
		AmountIn:       amountIn,
		FilledAmountIn: filled,
		MinAmountOut:   minOut,
		Status:         status,
		CreatedAt:      createdAt,
	}
}

func TestMatch_FullSwap(t *testing.T) {
	// bid: 100 quote committed, wants >= 90 base
	// ask: 90 base committed, wants >= 95 quote
	bid := order(domain.SideBid, 100, 0, 90, 1)
	ask := order(domain.SideAsk, 90, 0, 95, 2)

	plan, err := Match([]domain.Order{bid, ask}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(plan.Fills))
	}
	f := plan.Fills[0]
	if f.Order != bid.Pubkey || f.Counterparty != ask.Pubkey {
		t.Fatalf("fill references wrong orders")
	}
	// full consumption: bid hands over all 100 quote, ask hands over 90 base
	if f.AmountIn != 100 {
		t.Fatalf("expected amountIn 100 (quote), got %d", f.AmountIn)
	}
	if f.AmountOut != 90 {
		t.Fatalf("expected amountOut 90 (base), got %d", f.AmountOut)
	}
	if f.OrderOwner != bid.Owner || f.CounterpartyOwner != ask.Owner {
		t.Fatalf("fill lost denormalized owners")
	}
}

func TestMatch_SameSideNeverCrosses(t *testing.T) {
	a := order(domain.SideBid, 100, 0, 1, 1)
	b := order(domain.SideBid, 100, 0, 1, 2)
	b.Owner = a.Owner

	plan, err := Match([]domain.Order{a, b}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Fills) != 0 {
		t.Fatalf("two bids must not cross, got %d fills", len(plan.Fills))
	}
}

func TestMatch_UnsatisfiableMinimum(t *testing.T) {
	// bid wants at least 500 base but only 90 is on the other side
	greedy := order(domain.SideBid, 1000, 0, 500, 1)
	modest := order(domain.SideBid, 50, 0, 10, 2)
	ask := order(domain.SideAsk, 90, 0, 0, 3)

	plan, err := Match([]domain.Order{greedy, modest, ask}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range plan.Fills {
		if f.Order == greedy.Pubkey || f.Counterparty == greedy.Pubkey {
			t.Fatalf("unsatisfiable bid must not appear in any fill")
		}
	}
	// the skip defers the first bid but the second still matches
	if len(plan.Fills) != 1 {
		t.Fatalf("expected the modest bid to fill, got %d fills", len(plan.Fills))
	}
	if plan.Fills[0].Order != modest.Pubkey {
		t.Fatalf("wrong bid filled")
	}
}

func TestMatch_FIFO(t *testing.T) {
	late := order(domain.SideAsk, 50, 0, 0, 200)
	early := order(domain.SideAsk, 50, 0, 0, 100)
	bid := order(domain.SideBid, 40, 0, 1, 150)

	plan, err := Match([]domain.Order{late, early, bid}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(plan.Fills))
	}
	if plan.Fills[0].Counterparty != early.Pubkey {
		t.Fatalf("expected earliest ask to fill first (FIFO)")
	}
}

func TestMatch_PartiallyFilledParticipates(t *testing.T) {
	ask := order(domain.SideAsk, 100, 70, 0, 1) // 30 base left
	bid := order(domain.SideBid, 20, 0, 5, 2)

	plan, err := Match([]domain.Order{ask, bid}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(plan.Fills))
	}
	if got := plan.Fills[0].AmountOut; got != 20 {
		t.Fatalf("expected 20 base from the ask remainder, got %d", got)
	}
}

func TestMatch_FilledAndCancelledExcluded(t *testing.T) {
	done := order(domain.SideAsk, 100, 0, 0, 1)
	done.Status = domain.StatusFilled
	gone := order(domain.SideBid, 100, 0, 0, 2)
	gone.Status = domain.StatusCancelled

	plan, err := Match([]domain.Order{done, gone}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Fills) != 0 {
		t.Fatalf("closed orders must not match")
	}
	if !plan.Empty() {
		t.Fatalf("plan should be empty")
	}
}

func TestMatch_CrossMarketFails(t *testing.T) {
	a := order(domain.SideBid, 100, 0, 1, 1)
	b := order(domain.SideAsk, 100, 0, 1, 2)
	b.Market = solana.NewWallet().PublicKey()

	_, err := Match([]domain.Order{a, b}, time.Now())
	if err == nil {
		t.Fatalf("expected cross-market error")
	}
	if !domain.IsKind(err, domain.KindCrossMarket) {
		t.Fatalf("expected CrossMarketError, got %v", err)
	}
}

func TestMatch_EmptyInput(t *testing.T) {
	_, err := Match(nil, time.Now())
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error on empty input, got %v", err)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	orders := []domain.Order{
		order(domain.SideBid, 120, 0, 10, 5),
		order(domain.SideAsk, 60, 0, 0, 3),
		order(domain.SideAsk, 80, 20, 0, 3), // same createdAt: input order breaks the tie
		order(domain.SideBid, 40, 0, 5, 7),
	}

	now := time.Unix(1700000000, 0)
	first, err := Match(orders, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Match(orders, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Fills) != len(second.Fills) {
		t.Fatalf("fill count differs between runs")
	}
	for i := range first.Fills {
		if first.Fills[i] != second.Fills[i] {
			t.Fatalf("fill %d differs between runs", i)
		}
	}
}

// Conservation: no fill moves more than either participant had left, and
// per-order totals never exceed the order's remainder.
func TestMatch_Conservation(t *testing.T) {
	orders := []domain.Order{
		order(domain.SideBid, 300, 0, 1, 1),
		order(domain.SideBid, 50, 10, 1, 2),
		order(domain.SideAsk, 120, 0, 0, 1),
		order(domain.SideAsk, 200, 150, 0, 4),
		order(domain.SideAsk, 500, 0, 0, 9),
	}

	plan, err := Match(orders, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remaining := map[solana.PublicKey]uint64{}
	for _, o := range orders {
		remaining[o.Pubkey] = o.Remaining()
	}
	var totalQuoteFromBids, totalBaseFromAsks uint64
	var totalQuoteToAsks, totalBaseToBids uint64
	for _, f := range plan.Fills {
		if f.AmountIn == 0 || f.AmountOut == 0 {
			t.Fatalf("zero-amount fill emitted")
		}
		if f.AmountIn > remaining[f.Order] {
			t.Fatalf("fill debits bid %s beyond its remainder", f.Order)
		}
		if f.AmountOut > remaining[f.Counterparty] {
			t.Fatalf("fill debits ask %s beyond its remainder", f.Counterparty)
		}
		remaining[f.Order] -= f.AmountIn
		remaining[f.Counterparty] -= f.AmountOut

		totalQuoteFromBids += f.AmountIn
		totalQuoteToAsks += f.AmountIn
		totalBaseFromAsks += f.AmountOut
		totalBaseToBids += f.AmountOut
	}
	// symmetry: one side's debit equals the other side's credit
	if totalQuoteFromBids != totalQuoteToAsks || totalBaseFromAsks != totalBaseToBids {
		t.Fatalf("conservation violated")
	}
}
