package domain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Side 订单方向，与链上程序的枚举 tag 一一对应
type Side uint8

const (
	SideBid Side = 0 // 用 quote 买 base
	SideAsk Side = 1 // 卖 base 换 quote
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "BID"
	case SideAsk:
		return "ASK"
	default:
		return fmt.Sprintf("SIDE(%d)", uint8(s))
	}
}

// DecodeSide 解析链上的 side tag，未知值必须报错，禁止静默兜底
func DecodeSide(tag uint8) (Side, error) {
	switch Side(tag) {
	case SideBid, SideAsk:
		return Side(tag), nil
	default:
		return 0, NewDecode(fmt.Sprintf("unknown order side tag %d", tag), nil)
	}
}

// Status 订单生命周期状态
type Status uint8

const (
	StatusOpen            Status = 0
	StatusPartiallyFilled Status = 1
	StatusFilled          Status = 2
	StatusCancelled       Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("STATUS(%d)", uint8(s))
	}
}

func DecodeStatus(tag uint8) (Status, error) {
	switch Status(tag) {
	case StatusOpen, StatusPartiallyFilled, StatusFilled, StatusCancelled:
		return Status(tag), nil
	default:
		return 0, NewDecode(fmt.Sprintf("unknown order status tag %d", tag), nil)
	}
}

// Matchable 判断该状态是否还能参与撮合
func (s Status) Matchable() bool {
	return s == StatusOpen || s == StatusPartiallyFilled
}

// Order 链上订单记录的领域模型。
// 字段顺序与链上账户布局保持一致：owner, market, side, amount_in,
// filled_amount_in, min_amount_out, status, created_at, bump, nonce。
type Order struct {
	Pubkey         solana.PublicKey `json:"pubkey"`
	Owner          solana.PublicKey `json:"owner"`
	Market         solana.PublicKey `json:"market"`
	Side           Side             `json:"side"`
	AmountIn       uint64           `json:"amountIn"`
	FilledAmountIn uint64           `json:"filledAmountIn"`
	MinAmountOut   uint64           `json:"minAmountOut"`
	Status         Status           `json:"status"`
	CreatedAt      int64            `json:"createdAt"`
	Bump           uint8            `json:"-"`
	Nonce          uint64           `json:"-"`
}

// Remaining 剩余未成交量。链上保证 filled <= amountIn，这里仍然防御下溢。
func (o *Order) Remaining() uint64 {
	if o.FilledAmountIn >= o.AmountIn {
		return 0
	}
	return o.AmountIn - o.FilledAmountIn
}

// Market 市场账户，本服务只读
type Market struct {
	Pubkey     solana.PublicKey
	BaseMint   solana.PublicKey
	QuoteMint  solana.PublicKey
	BaseVault  solana.PublicKey
	QuoteVault solana.PublicKey
	Bump       uint8
}
