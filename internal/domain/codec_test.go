package domain

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrder_HandBuiltRecord(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	market := solana.NewWallet().PublicKey()
	pubkey := solana.NewWallet().PublicKey()

	// 按链上布局手工拼一条记录，防止 Encode/Decode 对称地错
	data := make([]byte, 0, OrderAccountLen)
	data = append(data, AccountDiscriminator("Order")...)
	data = append(data, owner[:]...)
	data = append(data, market[:]...)
	data = append(data, byte(SideAsk))
	data = binary.LittleEndian.AppendUint64(data, 10_000_000) // amount_in
	data = binary.LittleEndian.AppendUint64(data, 2_500_000)  // filled
	data = binary.LittleEndian.AppendUint64(data, 95_000_000) // min_amount_out
	data = append(data, byte(StatusPartiallyFilled))
	data = binary.LittleEndian.AppendUint64(data, uint64(1700000123)) // created_at
	data = append(data, 254)                                         // bump
	data = binary.LittleEndian.AppendUint64(data, 42)                // nonce

	o, err := DecodeOrder(pubkey, data)
	require.NoError(t, err)
	require.Equal(t, owner, o.Owner)
	require.Equal(t, market, o.Market)
	require.Equal(t, SideAsk, o.Side)
	require.Equal(t, uint64(10_000_000), o.AmountIn)
	require.Equal(t, uint64(2_500_000), o.FilledAmountIn)
	require.Equal(t, uint64(95_000_000), o.MinAmountOut)
	require.Equal(t, StatusPartiallyFilled, o.Status)
	require.Equal(t, int64(1700000123), o.CreatedAt)
	require.Equal(t, uint64(42), o.Nonce)
	require.Equal(t, uint64(7_500_000), o.Remaining())

	reencoded, err := EncodeOrder(o)
	require.NoError(t, err)
	require.Equal(t, data, reencoded)
}

func TestDecodeOrder_BadInputs(t *testing.T) {
	pk := solana.NewWallet().PublicKey()

	// 太短
	_, err := DecodeOrder(pk, []byte{1, 2, 3})
	require.Error(t, err)
	require.True(t, IsKind(err, KindDecode))

	// discriminator 不对（比如历史 schema 留下来的账户）
	junk := make([]byte, OrderAccountLen)
	_, err = DecodeOrder(pk, junk)
	require.True(t, IsKind(err, KindDecode))

	// side tag 非法
	good, err := EncodeOrder(Order{
		Pubkey: pk, Owner: pk, Market: pk,
		Side: SideBid, AmountIn: 10, Status: StatusOpen,
	})
	require.NoError(t, err)
	good[8+32+32] = 9 // side 字节
	_, err = DecodeOrder(pk, good)
	require.True(t, IsKind(err, KindDecode))

	// filled 超过 committed
	bad, err := EncodeOrder(Order{
		Pubkey: pk, Owner: pk, Market: pk,
		Side: SideBid, AmountIn: 10, FilledAmountIn: 11, Status: StatusOpen,
	})
	require.NoError(t, err)
	_, err = DecodeOrder(pk, bad)
	require.True(t, IsKind(err, KindDecode))
}

func TestDecodeSideStatus_UnknownTags(t *testing.T) {
	if _, err := DecodeSide(2); err == nil {
		t.Fatalf("expected error for side tag 2")
	}
	if _, err := DecodeStatus(4); err == nil {
		t.Fatalf("expected error for status tag 4")
	}
	s, err := DecodeStatus(1)
	require.NoError(t, err)
	require.True(t, s.Matchable())
	require.False(t, StatusFilled.Matchable())
}

func TestRemaining_Clamped(t *testing.T) {
	o := Order{AmountIn: 5, FilledAmountIn: 5}
	require.Equal(t, uint64(0), o.Remaining())
}

func TestMarketCodec_RoundTrip(t *testing.T) {
	m := Market{
		Pubkey:     solana.NewWallet().PublicKey(),
		BaseMint:   solana.NewWallet().PublicKey(),
		QuoteMint:  solana.NewWallet().PublicKey(),
		BaseVault:  solana.NewWallet().PublicKey(),
		QuoteVault: solana.NewWallet().PublicKey(),
		Bump:       253,
	}

	data, err := EncodeMarket(m)
	require.NoError(t, err)
	require.Len(t, data, MarketAccountLen)
	require.Equal(t, AccountDiscriminator("Market"), data[:8])

	got, err := DecodeMarket(m.Pubkey, data)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestDecodeMarket_BadInputs(t *testing.T) {
	pk := solana.NewWallet().PublicKey()

	if _, err := DecodeMarket(pk, make([]byte, MarketAccountLen-1)); err == nil {
		t.Fatalf("expected error for short market data")
	}

	// 判别子对不上说明读错了账户类型
	wrong := make([]byte, MarketAccountLen)
	copy(wrong, AccountDiscriminator("Order"))
	_, err := DecodeMarket(pk, wrong)
	require.Error(t, err)
	require.Equal(t, KindDecode, mustKind(t, err))
}

func mustKind(t *testing.T, err error) Kind {
	t.Helper()
	k, ok := KindOf(err)
	require.True(t, ok)
	return k
}
