package relayer

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"

	"github.com/arcsilence/darkpool-relayer/pkg/middleware"
)

func NewRouter(addr string, h *Handler) *http.Server {
	r := gin.New()
	// 监控
	p := ginprom.NewPrometheus("relayer")
	p.Use(r)
	r.Use(
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
	)
	registerRoutes(r, h)

	return &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   120 * time.Second, // 一轮要等链上确认，放宽写超时
		MaxHeaderBytes: 1 << 20,
	}
}

func registerRoutes(r *gin.Engine, h *Handler) {
	r.POST("/match-and-settle", h.MatchAndSettle)
	r.GET("/health", h.Health)
}
