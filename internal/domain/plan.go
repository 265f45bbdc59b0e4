package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Fill 一次撮合结果：order 是 bid 方，counterparty 是 ask 方。
// AmountIn 是划给 ask 方的 quote 数量，AmountOut 是划给 bid 方的 base 数量。
// owner 冗余存一份，结算时不用再回链上读订单。
type Fill struct {
	Order             solana.PublicKey `json:"order"`
	Counterparty      solana.PublicKey `json:"counterparty"`
	AmountIn          uint64           `json:"amountIn"`
	AmountOut         uint64           `json:"amountOut"`
	OrderOwner        solana.PublicKey `json:"orderOwner"`
	CounterpartyOwner solana.PublicKey `json:"counterpartyOwner"`
}

// ExecutionPlan 一批等待原子结算的成交
type ExecutionPlan struct {
	Market      solana.PublicKey `json:"market"`
	Fills       []Fill           `json:"fills"`
	CreatedAt   time.Time        `json:"createdAt"`
	Attestation []byte           `json:"attestation,omitempty"`
}

// Empty reports whether the plan settles nothing. A plan with zero fills
// is still a valid plan.
func (p *ExecutionPlan) Empty() bool {
	return p == nil || len(p.Fills) == 0
}
