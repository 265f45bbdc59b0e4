package mpc

import (
	"encoding/binary"
	"fmt"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
)

// 集群电路按"每个标量一个 32 字节域元素"接收输入。订单按
// (index, side, amountIn, filledAmountIn, minAmountOut, createdAt, status)
// 展开为 7 个元素；回调写出的成交记录按
// (orderIndex, counterpartyIndex, amountIn, amountOut) 占 4 个元素。
// 数值小端放在元素低位，高位补零。

const (
	elementSize      = 32
	orderElements    = 7
	fillElements     = 4
	maxClusterOrders = 100
)

// wireFill is a fill as the network reports it, referencing orders by
// their position in the submitted batch rather than by pubkey.
type wireFill struct {
	OrderIndex        uint32
	CounterpartyIndex uint32
	AmountIn          uint64
	AmountOut         uint64
}

func u64Element(v uint64) [elementSize]byte {
	var e [elementSize]byte
	binary.LittleEndian.PutUint64(e[:8], v)
	return e
}

// encodeOrderElements 把订单批展开为域元素序列，顺序即批内下标。
func encodeOrderElements(orders []domain.Order) ([][elementSize]byte, error) {
	if len(orders) > maxClusterOrders {
		return nil, fmt.Errorf("batch of %d exceeds cluster limit %d", len(orders), maxClusterOrders)
	}
	out := make([][elementSize]byte, 0, len(orders)*orderElements)
	for i, o := range orders {
		out = append(out,
			u64Element(uint64(i)),
			u64Element(uint64(o.Side)),
			u64Element(o.AmountIn),
			u64Element(o.FilledAmountIn),
			u64Element(o.MinAmountOut),
			u64Element(uint64(o.CreatedAt)),
			u64Element(uint64(o.Status)),
		)
	}
	return out, nil
}

// decodeWireFills 解析回调账户里的成交列表：前 32 字节是数量元素，
// 其后每 4 个元素为一条成交。
func decodeWireFills(raw []byte) ([]wireFill, error) {
	if len(raw) < elementSize {
		return nil, fmt.Errorf("fill output truncated: %d bytes", len(raw))
	}
	count := binary.LittleEndian.Uint64(raw[:8])
	body := raw[elementSize:]
	need := int(count) * fillElements * elementSize
	if count > maxClusterOrders || len(body) < need {
		return nil, fmt.Errorf("fill output malformed: count=%d len=%d", count, len(body))
	}
	fills := make([]wireFill, 0, count)
	for i := 0; i < int(count); i++ {
		base := i * fillElements * elementSize
		fills = append(fills, wireFill{
			OrderIndex:        uint32(binary.LittleEndian.Uint64(body[base : base+8])),
			CounterpartyIndex: uint32(binary.LittleEndian.Uint64(body[base+elementSize : base+elementSize+8])),
			AmountIn:          binary.LittleEndian.Uint64(body[base+2*elementSize : base+2*elementSize+8]),
			AmountOut:         binary.LittleEndian.Uint64(body[base+3*elementSize : base+3*elementSize+8]),
		})
	}
	return fills, nil
}

// resolveWireFills 把下标引用还原为带 pubkey 的 Fill，
// 下标越界说明网络输出和我们提交的批不一致。
func resolveWireFills(orders []domain.Order, wires []wireFill) ([]domain.Fill, error) {
	fills := make([]domain.Fill, 0, len(wires))
	for _, w := range wires {
		if int(w.OrderIndex) >= len(orders) || int(w.CounterpartyIndex) >= len(orders) {
			return nil, fmt.Errorf("fill references order %d/%d outside batch of %d",
				w.OrderIndex, w.CounterpartyIndex, len(orders))
		}
		o := orders[w.OrderIndex]
		cp := orders[w.CounterpartyIndex]
		fills = append(fills, domain.Fill{
			Order:             o.Pubkey,
			Counterparty:      cp.Pubkey,
			AmountIn:          w.AmountIn,
			AmountOut:         w.AmountOut,
			OrderOwner:        o.Owner,
			CounterpartyOwner: cp.Owner,
		})
	}
	return fills, nil
}
