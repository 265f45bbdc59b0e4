package ledger

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
)

type placeOrderArgs struct {
	Side         uint8
	AmountIn     uint64
	MinAmountOut uint64
	Nonce        uint64
}

// BuildPlaceOrderInstruction 构造挂单指令。运维脚本和测试网联调用，
// 正常撮合流程里订单都是用户自己挂的。
func BuildPlaceOrderInstruction(
	programID solana.PublicKey,
	market domain.Market,
	owner solana.PublicKey,
	side domain.Side,
	amountIn, minAmountOut, nonce uint64,
) (solana.Instruction, error) {
	orderPDA, err := OrderPDA(programID, market.Pubkey, owner, nonce)
	if err != nil {
		return nil, fmt.Errorf("derive order pda: %w", err)
	}
	ownerBase, err := OwnerTokenAccount(owner, market.BaseMint)
	if err != nil {
		return nil, err
	}
	ownerQuote, err := OwnerTokenAccount(owner, market.QuoteMint)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(orderPDA).WRITE(),
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(market.Pubkey),
		solana.Meta(ownerBase).WRITE(),
		solana.Meta(ownerQuote).WRITE(),
		solana.Meta(market.BaseVault).WRITE(),
		solana.Meta(market.QuoteVault).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
	}

	data := new(bytes.Buffer)
	data.Write(domain.InstructionDiscriminator("place_order"))
	if err := bin.NewBorshEncoder(data).Encode(placeOrderArgs{
		Side:         uint8(side),
		AmountIn:     amountIn,
		MinAmountOut: minAmountOut,
		Nonce:        nonce,
	}); err != nil {
		return nil, fmt.Errorf("encode place_order args: %w", err)
	}

	return solana.NewInstruction(programID, accounts, data.Bytes()), nil
}

// BuildCloseOrderInstruction 构造关单指令（cancel_order 同一条指令，
// 成交后回收已打满的订单账户也走它）。链上程序约束签名方必须是
// 订单 owner 本人，任何代签都会被 Unauthorized 拒绝，所以这里
// 不接受别的签名方。
func BuildCloseOrderInstruction(
	programID solana.PublicKey,
	market domain.Market,
	order domain.Order,
) (solana.Instruction, error) {
	ownerBase, err := OwnerTokenAccount(order.Owner, market.BaseMint)
	if err != nil {
		return nil, err
	}
	ownerQuote, err := OwnerTokenAccount(order.Owner, market.QuoteMint)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(order.Pubkey).WRITE(),
		solana.Meta(order.Owner).WRITE().SIGNER(),
		solana.Meta(market.Pubkey),
		solana.Meta(ownerBase).WRITE(),
		solana.Meta(ownerQuote).WRITE(),
		solana.Meta(market.BaseVault).WRITE(),
		solana.Meta(market.QuoteVault).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}

	data := new(bytes.Buffer)
	data.Write(domain.InstructionDiscriminator("cancel_order"))

	return solana.NewInstruction(programID, accounts, data.Bytes()), nil
}
