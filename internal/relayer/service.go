// Package relayer wires the order adapter, the matcher, the verifier and
// the settlement builder into one round-based orchestration service and
// exposes it over HTTP.
package relayer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/internal/ledger"
	"github.com/arcsilence/darkpool-relayer/internal/matching"
	"github.com/arcsilence/darkpool-relayer/internal/mpc"
	"github.com/arcsilence/darkpool-relayer/pkg/logger"
	"github.com/arcsilence/darkpool-relayer/pkg/metrics"
)

// Ledger 是 Service 依赖的链上能力面，测试里用桩替换。
type Ledger interface {
	ListOpenOrders(ctx context.Context, market solana.PublicKey) ([]domain.Order, []ledger.SkipRecord, error)
	SettleBatch(ctx context.Context, plan *domain.ExecutionPlan) (solana.Signature, error)
	CleanupFilledOrders(ctx context.Context, market solana.PublicKey, fills []domain.Fill) ledger.CleanupResult
}

// RoundResult 是一轮撮合结算的汇总，handler 直接拿它拼响应。
type RoundResult struct {
	NoOrders        bool
	Plan            *domain.ExecutionPlan
	Receipt         solana.Signature
	Settled         bool
	Cleanup         ledger.CleanupResult
	TotalOrders     int
	ProcessedOrders int
}

type Service struct {
	ledger   Ledger
	verifier mpc.Verifier
	maxBatch int

	mu      sync.Mutex
	markets map[solana.PublicKey]*sync.Mutex
}

func NewService(l Ledger, v mpc.Verifier, maxBatch int) *Service {
	if maxBatch <= 0 {
		maxBatch = 2
	}
	return &Service{
		ledger:   l,
		verifier: v,
		maxBatch: maxBatch,
		markets:  make(map[solana.PublicKey]*sync.Mutex),
	}
}

// marketLock 同一市场的轮次串行执行，不同市场互不阻塞。
func (s *Service) marketLock(market solana.PublicKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.markets[market]
	if !ok {
		l = &sync.Mutex{}
		s.markets[market] = l
	}
	return l
}

// MatchAndSettle 跑完整的一轮：读单、截批、撮合、验证、结算、清理。
// 验证失败绝不进入结算。清理失败不影响本轮结果，只计数。
func (s *Service) MatchAndSettle(ctx context.Context, market solana.PublicKey) (*RoundResult, error) {
	lock := s.marketLock(market)
	lock.Lock()
	defer lock.Unlock()

	mkt := market.String()

	orders, _, err := s.ledger.ListOpenOrders(ctx, market)
	if err != nil {
		metrics.MatchRoundsTotal.WithLabelValues(mkt, "failed").Inc()
		return nil, err
	}
	if len(orders) == 0 {
		metrics.MatchRoundsTotal.WithLabelValues(mkt, "no_orders").Inc()
		return &RoundResult{NoOrders: true}, nil
	}

	batch := capBatch(orders, s.maxBatch)
	logger.Info(ctx, "round started",
		zap.String("market", mkt),
		zap.Int("open_orders", len(orders)),
		zap.Int("batch", len(batch)))

	plan, err := matching.Match(batch, time.Now().UTC())
	if err != nil {
		metrics.MatchRoundsTotal.WithLabelValues(mkt, "failed").Inc()
		return nil, err
	}

	result := &RoundResult{
		Plan:            plan,
		TotalOrders:     len(orders),
		ProcessedOrders: len(batch),
	}
	if len(plan.Fills) == 0 {
		metrics.MatchRoundsTotal.WithLabelValues(mkt, "no_fills").Inc()
		return result, nil
	}

	attestation, err := s.verifier.VerifyPlan(ctx, batch, plan)
	if err != nil {
		metrics.MatchRoundsTotal.WithLabelValues(mkt, "failed").Inc()
		return nil, err
	}
	plan.Attestation = attestation

	receipt, err := s.ledger.SettleBatch(ctx, plan)
	if err != nil {
		metrics.MatchRoundsTotal.WithLabelValues(mkt, "failed").Inc()
		return nil, err
	}
	result.Receipt = receipt
	result.Settled = true

	result.Cleanup = s.ledger.CleanupFilledOrders(ctx, market, plan.Fills)

	metrics.MatchRoundsTotal.WithLabelValues(mkt, "settled").Inc()
	logger.Info(ctx, "round settled",
		zap.String("market", mkt),
		zap.String("tx", receipt.String()),
		zap.Int("fills", len(plan.Fills)),
		zap.Int("cleanup_closed", result.Cleanup.Closed),
		zap.Int("cleanup_failed", result.Cleanup.Failed))
	return result, nil
}

// capBatch 把一轮送进撮合的订单数压到结算交易能装下的规模。
// 预算内优先保证最早的一买一卖各占一席，剩余名额按时间先后补齐。
func capBatch(orders []domain.Order, max int) []domain.Order {
	if len(orders) <= max {
		return orders
	}

	sorted := make([]domain.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})

	batch := make([]domain.Order, 0, max)
	taken := make(map[solana.PublicKey]bool, max)
	for _, side := range []domain.Side{domain.SideBid, domain.SideAsk} {
		if len(batch) == max {
			break
		}
		for _, o := range sorted {
			if o.Side == side {
				batch = append(batch, o)
				taken[o.Pubkey] = true
				break
			}
		}
	}
	for _, o := range sorted {
		if len(batch) == max {
			break
		}
		if !taken[o.Pubkey] {
			batch = append(batch, o)
			taken[o.Pubkey] = true
		}
	}
	return batch
}
