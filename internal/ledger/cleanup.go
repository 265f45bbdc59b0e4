package ledger

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/pkg/logger"
	"github.com/arcsilence/darkpool-relayer/pkg/metrics"
)

// CleanupResult 结算后清理的统计
type CleanupResult struct {
	Closed  int `json:"closed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// CleanupFilledOrders 结算后把打满的订单账户关掉，回收租金。
// 尽力而为 + 幂等：单笔失败只计数，重复执行时已关掉的订单按跳过处理。
// cancel_order 只认订单 owner 的签名，所以这里只能回收 admin 自己
// 挂的订单，别人的打满订单记跳过，由 owner 自行撤单收回租金。
func (c *Client) CleanupFilledOrders(ctx context.Context, marketKey solana.PublicKey, fills []domain.Fill) CleanupResult {
	var res CleanupResult
	if len(fills) == 0 {
		return res
	}

	market, err := c.GetMarket(ctx, marketKey)
	if err != nil {
		// 市场都读不到就没法构造关单指令，整批记失败
		logger.Error(ctx, "cleanup: resolve market failed", zap.Error(err))
		res.Failed = len(uniqueOrderKeys(fills))
		metrics.CleanupTotal.WithLabelValues("failed").Add(float64(res.Failed))
		return res
	}

	for _, pubkey := range uniqueOrderKeys(fills) {
		order, err := c.GetOrder(ctx, pubkey)
		switch {
		case errors.Is(err, ErrAccountClosed):
			// 已经被关掉了（上一轮清理或用户自己），幂等跳过
			res.Skipped++
			metrics.CleanupTotal.WithLabelValues("skipped").Inc()
			continue
		case err != nil:
			res.Failed++
			metrics.CleanupTotal.WithLabelValues("failed").Inc()
			logger.Warn(ctx, "cleanup: re-read order failed",
				zap.String("order", pubkey.String()), zap.Error(err))
			continue
		}

		if reason := closeSkipReason(order, c.admin.PublicKey()); reason != "" {
			res.Skipped++
			metrics.CleanupTotal.WithLabelValues("skipped").Inc()
			logger.Info(ctx, "cleanup: order skipped",
				zap.String("order", pubkey.String()), zap.String("reason", reason))
			continue
		}

		instr, err := BuildCloseOrderInstruction(c.programID, market, order)
		if err != nil {
			res.Failed++
			metrics.CleanupTotal.WithLabelValues("failed").Inc()
			logger.Warn(ctx, "cleanup: build close instruction failed",
				zap.String("order", pubkey.String()), zap.Error(err))
			continue
		}
		if _, err := c.sendInstructions(ctx, []solana.Instruction{instr}); err != nil {
			res.Failed++
			metrics.CleanupTotal.WithLabelValues("failed").Inc()
			logger.Warn(ctx, "cleanup: close order rejected",
				zap.String("order", pubkey.String()), zap.Error(err))
			continue
		}

		res.Closed++
		metrics.CleanupTotal.WithLabelValues("closed").Inc()
		logger.Info(ctx, "cleanup: order closed", zap.String("order", pubkey.String()))
	}
	return res
}

// closeSkipReason 判断一笔订单能否由批次权限回收。重新读一遍成交量，
// 只有真打满、而且 owner 就是 admin 自己的才关得掉。
func closeSkipReason(o domain.Order, authority solana.PublicKey) string {
	if o.Remaining() > 0 || o.Status != domain.StatusFilled {
		return "not fully filled"
	}
	if !o.Owner.Equals(authority) {
		return "owner signature required"
	}
	return ""
}

// uniqueOrderKeys 每个订单只处理一次，主单和对手单都算
func uniqueOrderKeys(fills []domain.Fill) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(fills)*2)
	keys := make([]solana.PublicKey, 0, len(fills)*2)
	for _, f := range fills {
		for _, k := range []solana.PublicKey{f.Order, f.Counterparty} {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}
