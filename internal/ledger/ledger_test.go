package ledger

import (
	"bytes"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
)

func mustEncode(t *testing.T, o domain.Order) []byte {
	t.Helper()
	data, err := domain.EncodeOrder(o)
	require.NoError(t, err)
	return data
}

func TestDecodeOrderAccounts_Partition(t *testing.T) {
	market := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()

	open := domain.Order{
		Pubkey: solana.NewWallet().PublicKey(),
		Owner:  solana.NewWallet().PublicKey(),
		Market: market, Side: domain.SideBid,
		AmountIn: 100, Status: domain.StatusOpen, CreatedAt: 1,
	}
	partial := open
	partial.Pubkey = solana.NewWallet().PublicKey()
	partial.FilledAmountIn = 40
	partial.Status = domain.StatusPartiallyFilled

	filled := open
	filled.Pubkey = solana.NewWallet().PublicKey()
	filled.FilledAmountIn = 100
	filled.Status = domain.StatusFilled

	foreign := open
	foreign.Pubkey = solana.NewWallet().PublicKey()
	foreign.Market = other

	garbagePk := solana.NewWallet().PublicKey()

	raws := []rawAccount{
		{Pubkey: open.Pubkey, Data: mustEncode(t, open)},
		{Pubkey: garbagePk, Data: []byte{0xde, 0xad, 0xbe, 0xef}}, // 老 schema 脏数据
		{Pubkey: partial.Pubkey, Data: mustEncode(t, partial)},
		{Pubkey: filled.Pubkey, Data: mustEncode(t, filled)},
		{Pubkey: foreign.Pubkey, Data: mustEncode(t, foreign)},
	}

	orders, skipped := decodeOrderAccounts(market, raws)

	// FILLED 被状态过滤掉但不算 skip；脏数据和异市场各算一条 skip
	require.Len(t, orders, 2)
	require.Equal(t, open.Pubkey, orders[0].Pubkey)
	require.Equal(t, partial.Pubkey, orders[1].Pubkey)
	require.Len(t, skipped, 2)
	require.Equal(t, garbagePk, skipped[0].Pubkey)
	require.Equal(t, foreign.Pubkey, skipped[1].Pubkey)
}

func TestDecodeOrderAccounts_EmptyIsNotError(t *testing.T) {
	orders, skipped := decodeOrderAccounts(solana.NewWallet().PublicKey(), nil)
	require.Empty(t, orders)
	require.Empty(t, skipped)
}

func TestBuildSettleInstruction_AccountOrder(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	admin := solana.NewWallet().PublicKey()

	market := domain.Market{
		Pubkey:     solana.NewWallet().PublicKey(),
		BaseMint:   solana.NewWallet().PublicKey(),
		QuoteMint:  solana.NewWallet().PublicKey(),
		BaseVault:  solana.NewWallet().PublicKey(),
		QuoteVault: solana.NewWallet().PublicKey(),
	}

	fill := domain.Fill{
		Order:             solana.NewWallet().PublicKey(),
		Counterparty:      solana.NewWallet().PublicKey(),
		AmountIn:          100,
		AmountOut:         90,
		OrderOwner:        solana.NewWallet().PublicKey(),
		CounterpartyOwner: solana.NewWallet().PublicKey(),
	}
	plan := &domain.ExecutionPlan{
		Market:      market.Pubkey,
		Fills:       []domain.Fill{fill},
		CreatedAt:   time.Now(),
		Attestation: []byte("att"),
	}

	instr, err := BuildSettleInstruction(programID, admin, market, plan)
	require.NoError(t, err)
	require.Equal(t, programID, instr.ProgramID())

	accounts := instr.Accounts()
	// 3 named + 4 shared remaining + 6 per fill
	require.Len(t, accounts, 3+4+6)

	configPDA, err := ConfigPDA(programID)
	require.NoError(t, err)
	require.Equal(t, configPDA, accounts[0].PublicKey)
	require.Equal(t, admin, accounts[1].PublicKey)
	require.True(t, accounts[1].IsSigner)
	require.Equal(t, market.Pubkey, accounts[2].PublicKey)

	require.Equal(t, market.BaseVault, accounts[3].PublicKey)
	require.True(t, accounts[3].IsWritable)
	require.Equal(t, market.QuoteVault, accounts[4].PublicKey)
	require.Equal(t, market.Pubkey, accounts[5].PublicKey)
	require.Equal(t, solana.TokenProgramID, accounts[6].PublicKey)

	orderBase, err := OwnerTokenAccount(fill.OrderOwner, market.BaseMint)
	require.NoError(t, err)
	orderQuote, err := OwnerTokenAccount(fill.OrderOwner, market.QuoteMint)
	require.NoError(t, err)
	cpBase, err := OwnerTokenAccount(fill.CounterpartyOwner, market.BaseMint)
	require.NoError(t, err)
	cpQuote, err := OwnerTokenAccount(fill.CounterpartyOwner, market.QuoteMint)
	require.NoError(t, err)

	require.Equal(t, fill.Order, accounts[7].PublicKey)
	require.Equal(t, fill.Counterparty, accounts[8].PublicKey)
	require.Equal(t, orderBase, accounts[9].PublicKey)
	require.Equal(t, orderQuote, accounts[10].PublicKey)
	require.Equal(t, cpBase, accounts[11].PublicKey)
	require.Equal(t, cpQuote, accounts[12].PublicKey)

	data, err := instr.Data()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, domain.InstructionDiscriminator("settle_batch")))
	// disc(8) + vec len(4) + fill(32+32+8+8) + attestation len(4) + "att"(3)
	require.Equal(t, 8+4+80+4+3, len(data))
}

func TestPDADerivation_Deterministic(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	base := solana.NewWallet().PublicKey()
	quote := solana.NewWallet().PublicKey()

	m1, err := MarketPDA(programID, base, quote)
	require.NoError(t, err)
	m2, err := MarketPDA(programID, base, quote)
	require.NoError(t, err)
	require.Equal(t, m1, m2)

	// 反过来是另一个市场
	m3, err := MarketPDA(programID, quote, base)
	require.NoError(t, err)
	require.NotEqual(t, m1, m3)

	bv, err := VaultPDA(programID, true, base, quote)
	require.NoError(t, err)
	qv, err := VaultPDA(programID, false, base, quote)
	require.NoError(t, err)
	require.NotEqual(t, bv, qv)

	owner := solana.NewWallet().PublicKey()
	o1, err := OrderPDA(programID, m1, owner, 7)
	require.NoError(t, err)
	o2, err := OrderPDA(programID, m1, owner, 8)
	require.NoError(t, err)
	require.NotEqual(t, o1, o2)
}

func TestBuildPlaceAndCloseInstructions(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	admin := solana.NewWallet().PublicKey()
	market := domain.Market{
		Pubkey:     solana.NewWallet().PublicKey(),
		BaseMint:   solana.NewWallet().PublicKey(),
		QuoteMint:  solana.NewWallet().PublicKey(),
		BaseVault:  solana.NewWallet().PublicKey(),
		QuoteVault: solana.NewWallet().PublicKey(),
	}

	place, err := BuildPlaceOrderInstruction(programID, market, owner, domain.SideBid, 100, 90, 7)
	require.NoError(t, err)
	orderPDA, err := OrderPDA(programID, market.Pubkey, owner, 7)
	require.NoError(t, err)
	require.Equal(t, orderPDA, place.Accounts()[0].PublicKey)
	require.Equal(t, owner, place.Accounts()[1].PublicKey)
	require.True(t, place.Accounts()[1].IsSigner)

	data, err := place.Data()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, domain.InstructionDiscriminator("place_order")))
	// disc(8) + side(1) + amountIn(8) + minOut(8) + nonce(8)
	require.Equal(t, 33, len(data))

	order := domain.Order{
		Pubkey: orderPDA,
		Owner:  owner,
		Market: market.Pubkey,
		Status: domain.StatusFilled,
	}
	closeIx, err := BuildCloseOrderInstruction(programID, market, order)
	require.NoError(t, err)
	require.Equal(t, order.Pubkey, closeIx.Accounts()[0].PublicKey)
	// 链上程序约束 owner 槽位必须是订单 owner 本人签名，
	// 绝不能落成 admin
	require.Equal(t, order.Owner, closeIx.Accounts()[1].PublicKey)
	require.NotEqual(t, admin, closeIx.Accounts()[1].PublicKey)
	require.True(t, closeIx.Accounts()[1].IsSigner)

	ownerBase, err := OwnerTokenAccount(order.Owner, market.BaseMint)
	require.NoError(t, err)
	require.Equal(t, ownerBase, closeIx.Accounts()[3].PublicKey)

	data, err = closeIx.Data()
	require.NoError(t, err)
	require.Equal(t, domain.InstructionDiscriminator("cancel_order"), data)
}

func TestCloseSkipReason(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	stranger := solana.NewWallet().PublicKey()

	filled := domain.Order{
		Pubkey: solana.NewWallet().PublicKey(),
		Owner:  admin,
		Side:   domain.SideBid,
		AmountIn: 100, FilledAmountIn: 100,
		Status: domain.StatusFilled,
	}
	// admin 自己打满的订单才关得掉
	require.Empty(t, closeSkipReason(filled, admin))

	// 别人的订单没有 owner 签名，关不了，只能跳过
	foreign := filled
	foreign.Owner = stranger
	require.Equal(t, "owner signature required", closeSkipReason(foreign, admin))

	// 没打满的不关
	partial := filled
	partial.FilledAmountIn = 60
	partial.Status = domain.StatusPartiallyFilled
	require.Equal(t, "not fully filled", closeSkipReason(partial, admin))
}

func TestUniqueOrderKeys(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	c := solana.NewWallet().PublicKey()

	fills := []domain.Fill{
		{Order: a, Counterparty: b},
		{Order: c, Counterparty: b}, // b 出现两次
	}
	keys := uniqueOrderKeys(fills)
	require.Equal(t, []solana.PublicKey{a, b, c}, keys)
}
