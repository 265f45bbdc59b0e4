package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/pkg/logger"
	"github.com/arcsilence/darkpool-relayer/pkg/metrics"
)

// SkipRecord 单条没法解码的链上记录：跳过并留痕，不让整批读失败
type SkipRecord struct {
	Pubkey solana.PublicKey `json:"pubkey"`
	Reason string           `json:"reason"`
}

// rawAccount RPC 层和纯解码逻辑之间的解耦，方便测试不走网络
type rawAccount struct {
	Pubkey solana.PublicKey
	Data   []byte
}

// ListOpenOrders 拉取指定市场上还能撮合的订单。
// 过滤条件一半在 RPC（账户长度 + market 字段 memcmp），一半在本地
// （状态 OPEN / PARTIALLY_FILLED）。历史 schema 留下的脏记录进 skipped。
func (c *Client) ListOpenOrders(ctx context.Context, market solana.PublicKey) ([]domain.Order, []SkipRecord, error) {
	out, err := c.rpc.GetProgramAccountsWithOpts(ctx, c.programID, &rpc.GetProgramAccountsOpts{
		Commitment: c.commitment,
		Filters: []rpc.RPCFilter{
			{DataSize: domain.OrderAccountLen},
			{Memcmp: &rpc.RPCFilterMemcmp{
				Offset: domain.OrderMarketOffset,
				Bytes:  solana.Base58(market[:]),
			}},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get program accounts: %w", err)
	}

	raws := make([]rawAccount, 0, len(out))
	for _, acc := range out {
		raws = append(raws, rawAccount{
			Pubkey: acc.Pubkey,
			Data:   acc.Account.Data.GetBinary(),
		})
	}

	orders, skipped := decodeOrderAccounts(market, raws)
	for _, s := range skipped {
		metrics.OrdersSkippedTotal.WithLabelValues("decode").Inc()
		logger.Warn(ctx, "skipping undecodable order record",
			zap.String("pubkey", s.Pubkey.String()),
			zap.String("reason", s.Reason),
		)
	}
	return orders, skipped, nil
}

// decodeOrderAccounts 把原始账户分成 (可用订单, 跳过记录) 两堆
func decodeOrderAccounts(market solana.PublicKey, raws []rawAccount) ([]domain.Order, []SkipRecord) {
	orders := make([]domain.Order, 0, len(raws))
	var skipped []SkipRecord
	for _, raw := range raws {
		o, err := domain.DecodeOrder(raw.Pubkey, raw.Data)
		if err != nil {
			skipped = append(skipped, SkipRecord{Pubkey: raw.Pubkey, Reason: err.Error()})
			continue
		}
		// memcmp 信不过就再查一遍，撮合器那边市场必须干净
		if !o.Market.Equals(market) {
			skipped = append(skipped, SkipRecord{Pubkey: raw.Pubkey, Reason: "market mismatch"})
			continue
		}
		if !o.Status.Matchable() {
			continue
		}
		orders = append(orders, o)
	}
	return orders, skipped
}

// GetMarket 读市场账户（vault 地址等）
func (c *Client) GetMarket(ctx context.Context, market solana.PublicKey) (domain.Market, error) {
	data, err := c.fetchAccountData(ctx, market)
	if err != nil {
		return domain.Market{}, fmt.Errorf("fetch market %s: %w", market, err)
	}
	return domain.DecodeMarket(market, data)
}

// GetOrder 读单个订单账户。账户已被回收时返回 ErrAccountClosed。
func (c *Client) GetOrder(ctx context.Context, pubkey solana.PublicKey) (domain.Order, error) {
	data, err := c.fetchAccountData(ctx, pubkey)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.DecodeOrder(pubkey, data)
}

// ErrAccountClosed 账户不存在（已关闭回收）
var ErrAccountClosed = errors.New("ledger: account closed")

func (c *Client) fetchAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountClosed
		}
		return nil, err
	}
	if res.Value == nil {
		return nil, ErrAccountClosed
	}
	return res.Value.Data.GetBinary(), nil
}
