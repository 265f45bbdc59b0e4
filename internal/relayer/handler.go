package relayer

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/pkg/common"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

type matchAndSettleReq struct {
	MarketAddress string `json:"marketAddress"`
}

// MatchAndSettle 处理 POST /match-and-settle。
// 市场地址不合法直接 400，其余失败一律 500，响应里不带订单明文。
func (h *Handler) MatchAndSettle(c *gin.Context) {
	var req matchAndSettleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailDomain(c, domain.NewValidation("request body must be JSON with marketAddress"))
		return
	}
	if req.MarketAddress == "" {
		common.FailDomain(c, domain.NewValidation("marketAddress is required"))
		return
	}
	market, err := solana.PublicKeyFromBase58(req.MarketAddress)
	if err != nil {
		common.FailDomain(c, domain.NewValidation("marketAddress is not a valid address"))
		return
	}

	result, err := h.svc.MatchAndSettle(c.Request.Context(), market)
	if err != nil {
		common.FailDomain(c, err)
		return
	}
	if result.NoOrders {
		common.OK(c, gin.H{
			"plan":    nil,
			"message": "No open orders for this market",
		})
		return
	}
	if !result.Settled {
		common.OK(c, gin.H{
			"plan":            result.Plan,
			"message":         "No crossing orders in this batch",
			"totalOrders":     result.TotalOrders,
			"processedOrders": result.ProcessedOrders,
		})
		return
	}
	common.OK(c, gin.H{
		"settlementReceipt": result.Receipt.String(),
		"plan":              result.Plan,
		"cleanup": gin.H{
			"closed":  result.Cleanup.Closed,
			"failed":  result.Cleanup.Failed,
			"skipped": result.Cleanup.Skipped,
		},
		"totalOrders":     result.TotalOrders,
		"processedOrders": result.ProcessedOrders,
	})
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{"ok": true})
}
