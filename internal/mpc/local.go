package mpc

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/internal/matching"
)

// LocalVerifier re-runs the matcher in plaintext and signs the plan with
// a deterministic digest. It never talks to the network.
type LocalVerifier struct{}

func NewLocalVerifier() *LocalVerifier { return &LocalVerifier{} }

func (v *LocalVerifier) VerifyPlan(ctx context.Context, orders []domain.Order, plan *domain.ExecutionPlan) ([]byte, error) {
	recomputed, err := matching.Match(orders, plan.CreatedAt)
	if err != nil {
		return nil, domain.NewVerification("recompute plan", err)
	}
	if err := assertFillsEqual(plan.Fills, recomputed.Fills); err != nil {
		return nil, err
	}
	return planDigest(plan), nil
}

// planDigest 对计划做规范化哈希：market || 每个 fill 的四元组。
// 同一批订单在两次运行中得到同一个摘要。
func planDigest(plan *domain.ExecutionPlan) []byte {
	h := sha256.New()
	h.Write(plan.Market[:])
	var buf [8]byte
	for _, f := range plan.Fills {
		h.Write(f.Order[:])
		h.Write(f.Counterparty[:])
		binary.LittleEndian.PutUint64(buf[:], f.AmountIn)
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], f.AmountOut)
		h.Write(buf[:])
	}
	return h.Sum(nil)
}

func assertFillsEqual(local, verified []domain.Fill) error {
	if len(local) != len(verified) {
		return domain.NewVerification("fill count mismatch", nil)
	}
	for i := range local {
		a, b := local[i], verified[i]
		if a.Order != b.Order || a.Counterparty != b.Counterparty ||
			a.AmountIn != b.AmountIn || a.AmountOut != b.AmountOut {
			return domain.NewVerification("fill mismatch", nil)
		}
	}
	return nil
}
