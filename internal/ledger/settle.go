package ledger

import (
	"bytes"
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/pkg/logger"
	"github.com/arcsilence/darkpool-relayer/pkg/metrics"
)

// fillArg settle_batch 指令参数里的 Fill 线格式
type fillArg struct {
	Order        [32]byte
	Counterparty [32]byte
	AmountIn     uint64
	AmountOut    uint64
}

type settleBatchArgs struct {
	Fills       []fillArg
	Attestation []byte
}

// SettleBatch 把执行计划作为一笔原子交易提交上链。
// 账本拒绝就是 SettlementError，绝不自动重试：重发一个被拒的批次
// 可能导致重复成交。
func (c *Client) SettleBatch(ctx context.Context, plan *domain.ExecutionPlan) (solana.Signature, error) {
	market, err := c.GetMarket(ctx, plan.Market)
	if err != nil {
		return solana.Signature{}, domain.NewSettlement("resolve market account", err)
	}

	instr, err := BuildSettleInstruction(c.programID, c.admin.PublicKey(), market, plan)
	if err != nil {
		return solana.Signature{}, domain.NewSettlement("build settle instruction", err)
	}

	sig, err := c.sendInstructions(ctx, []solana.Instruction{instr})
	if err != nil {
		return solana.Signature{}, domain.NewSettlement("ledger rejected settlement batch", err)
	}

	metrics.FillsSettledTotal.WithLabelValues(plan.Market.String()).Add(float64(len(plan.Fills)))
	logger.Info(ctx, "settlement committed",
		zap.String("market", plan.Market.String()),
		zap.Int("fills", len(plan.Fills)),
		zap.String("signature", sig.String()),
	)
	return sig, nil
}

// BuildSettleInstruction 组装 settle_batch 指令。
// 账户顺序是链上程序写死的：
//
//	命名账户: [config, admin(signer), market]
//	其余账户: [base_vault, quote_vault, market, token_program] 之后
//	每个 fill 依次 6 个:
//	[order, counterparty, order_owner_base, order_owner_quote,
//	 counterparty_owner_base, counterparty_owner_quote]
//
// fill 的顺序必须与 plan.Fills 一致。
func BuildSettleInstruction(
	programID, admin solana.PublicKey,
	market domain.Market,
	plan *domain.ExecutionPlan,
) (solana.Instruction, error) {
	configPDA, err := ConfigPDA(programID)
	if err != nil {
		return nil, fmt.Errorf("derive config pda: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(configPDA),
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(market.Pubkey),
		// remaining accounts 从这里开始
		solana.Meta(market.BaseVault).WRITE(),
		solana.Meta(market.QuoteVault).WRITE(),
		solana.Meta(market.Pubkey),
		solana.Meta(solana.TokenProgramID),
	}

	args := settleBatchArgs{
		Fills:       make([]fillArg, 0, len(plan.Fills)),
		Attestation: plan.Attestation,
	}

	for _, f := range plan.Fills {
		orderBase, err := OwnerTokenAccount(f.OrderOwner, market.BaseMint)
		if err != nil {
			return nil, fmt.Errorf("derive base ata for %s: %w", f.OrderOwner, err)
		}
		orderQuote, err := OwnerTokenAccount(f.OrderOwner, market.QuoteMint)
		if err != nil {
			return nil, fmt.Errorf("derive quote ata for %s: %w", f.OrderOwner, err)
		}
		cpBase, err := OwnerTokenAccount(f.CounterpartyOwner, market.BaseMint)
		if err != nil {
			return nil, fmt.Errorf("derive base ata for %s: %w", f.CounterpartyOwner, err)
		}
		cpQuote, err := OwnerTokenAccount(f.CounterpartyOwner, market.QuoteMint)
		if err != nil {
			return nil, fmt.Errorf("derive quote ata for %s: %w", f.CounterpartyOwner, err)
		}

		accounts = append(accounts,
			solana.Meta(f.Order).WRITE(),
			solana.Meta(f.Counterparty).WRITE(),
			solana.Meta(orderBase).WRITE(),
			solana.Meta(orderQuote).WRITE(),
			solana.Meta(cpBase).WRITE(),
			solana.Meta(cpQuote).WRITE(),
		)

		arg := fillArg{AmountIn: f.AmountIn, AmountOut: f.AmountOut}
		copy(arg.Order[:], f.Order[:])
		copy(arg.Counterparty[:], f.Counterparty[:])
		args.Fills = append(args.Fills, arg)
	}

	data := new(bytes.Buffer)
	data.Write(domain.InstructionDiscriminator("settle_batch"))
	if err := bin.NewBorshEncoder(data).Encode(args); err != nil {
		return nil, fmt.Errorf("encode settle args: %w", err)
	}

	return solana.NewInstruction(programID, accounts, data.Bytes()), nil
}
