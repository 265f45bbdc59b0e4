package domain

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// 链上账户长度：8 字节 Anchor discriminator + 账户体
const (
	OrderAccountLen  = 8 + 32 + 32 + 1 + 8 + 8 + 8 + 1 + 8 + 1 + 8 // 115
	MarketAccountLen = 8 + 32 + 32 + 32 + 32 + 1                   // 137

	// memcmp 过滤 market 字段用的偏移：discriminator(8) + owner(32)
	OrderMarketOffset = 8 + 32
)

// AccountDiscriminator Anchor 账户判别子：sha256("account:<Name>")[0:8]
func AccountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

// InstructionDiscriminator Anchor 指令判别子：sha256("global:<name>")[0:8]
func InstructionDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// orderRecord 与链上 Order 账户体逐字段对齐的 Borsh 线格式
type orderRecord struct {
	Owner          [32]byte
	Market         [32]byte
	Side           uint8
	AmountIn       uint64
	FilledAmountIn uint64
	MinAmountOut   uint64
	Status         uint8
	CreatedAt      int64
	Bump           uint8
	Nonce          uint64
}

// DecodeOrder 解码一条链上订单记录。任何不符合布局的输入都返回
// AdapterDecodeError，由调用方决定跳过还是上抛。
func DecodeOrder(pubkey solana.PublicKey, data []byte) (Order, error) {
	if len(data) < OrderAccountLen {
		return Order{}, NewDecode(
			fmt.Sprintf("order %s: account data too short: %d bytes", pubkey, len(data)), nil)
	}
	if !bytes.Equal(data[:8], AccountDiscriminator("Order")) {
		return Order{}, NewDecode(
			fmt.Sprintf("order %s: discriminator mismatch", pubkey), nil)
	}

	var rec orderRecord
	if err := bin.NewBorshDecoder(data[8:]).Decode(&rec); err != nil {
		return Order{}, NewDecode(fmt.Sprintf("order %s: borsh decode", pubkey), err)
	}

	side, err := DecodeSide(rec.Side)
	if err != nil {
		return Order{}, err
	}
	status, err := DecodeStatus(rec.Status)
	if err != nil {
		return Order{}, err
	}
	if rec.FilledAmountIn > rec.AmountIn {
		return Order{}, NewDecode(
			fmt.Sprintf("order %s: filled %d exceeds committed %d", pubkey, rec.FilledAmountIn, rec.AmountIn), nil)
	}

	return Order{
		Pubkey:         pubkey,
		Owner:          solana.PublicKeyFromBytes(rec.Owner[:]),
		Market:         solana.PublicKeyFromBytes(rec.Market[:]),
		Side:           side,
		AmountIn:       rec.AmountIn,
		FilledAmountIn: rec.FilledAmountIn,
		MinAmountOut:   rec.MinAmountOut,
		Status:         status,
		CreatedAt:      rec.CreatedAt,
		Bump:           rec.Bump,
		Nonce:          rec.Nonce,
	}, nil
}

// EncodeOrder 按链上布局重新编码，测试夹具和本地模拟用
func EncodeOrder(o Order) ([]byte, error) {
	rec := orderRecord{
		Side:           uint8(o.Side),
		AmountIn:       o.AmountIn,
		FilledAmountIn: o.FilledAmountIn,
		MinAmountOut:   o.MinAmountOut,
		Status:         uint8(o.Status),
		CreatedAt:      o.CreatedAt,
		Bump:           o.Bump,
		Nonce:          o.Nonce,
	}
	copy(rec.Owner[:], o.Owner[:])
	copy(rec.Market[:], o.Market[:])

	buf := new(bytes.Buffer)
	buf.Write(AccountDiscriminator("Order"))
	if err := bin.NewBorshEncoder(buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type marketRecord struct {
	BaseMint   [32]byte
	QuoteMint  [32]byte
	BaseVault  [32]byte
	QuoteVault [32]byte
	Bump       uint8
}

// DecodeMarket 解码市场账户
func DecodeMarket(pubkey solana.PublicKey, data []byte) (Market, error) {
	if len(data) < MarketAccountLen {
		return Market{}, NewDecode(
			fmt.Sprintf("market %s: account data too short: %d bytes", pubkey, len(data)), nil)
	}
	if !bytes.Equal(data[:8], AccountDiscriminator("Market")) {
		return Market{}, NewDecode(
			fmt.Sprintf("market %s: discriminator mismatch", pubkey), nil)
	}

	var rec marketRecord
	if err := bin.NewBorshDecoder(data[8:]).Decode(&rec); err != nil {
		return Market{}, NewDecode(fmt.Sprintf("market %s: borsh decode", pubkey), err)
	}

	return Market{
		Pubkey:     pubkey,
		BaseMint:   solana.PublicKeyFromBytes(rec.BaseMint[:]),
		QuoteMint:  solana.PublicKeyFromBytes(rec.QuoteMint[:]),
		BaseVault:  solana.PublicKeyFromBytes(rec.BaseVault[:]),
		QuoteVault: solana.PublicKeyFromBytes(rec.QuoteVault[:]),
		Bump:       rec.Bump,
	}, nil
}

// EncodeMarket 测试夹具用
func EncodeMarket(m Market) ([]byte, error) {
	var rec marketRecord
	copy(rec.BaseMint[:], m.BaseMint[:])
	copy(rec.QuoteMint[:], m.QuoteMint[:])
	copy(rec.BaseVault[:], m.BaseVault[:])
	copy(rec.QuoteVault[:], m.QuoteVault[:])
	rec.Bump = m.Bump

	buf := new(bytes.Buffer)
	buf.Write(AccountDiscriminator("Market"))
	if err := bin.NewBorshEncoder(buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
