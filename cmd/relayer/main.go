package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/arcsilence/darkpool-relayer/internal/ledger"
	"github.com/arcsilence/darkpool-relayer/internal/mpc"
	"github.com/arcsilence/darkpool-relayer/internal/relayer"
	relayerCfg "github.com/arcsilence/darkpool-relayer/internal/relayer/config"
	"github.com/arcsilence/darkpool-relayer/pkg/config"
	"github.com/arcsilence/darkpool-relayer/pkg/logger"
	"github.com/arcsilence/darkpool-relayer/pkg/metrics"
	"github.com/arcsilence/darkpool-relayer/pkg/safe"
)

func main() {
	// ========= 0) 全局上下文 & 优雅退出 =========
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化配置文件
	var cfg = &relayerCfg.RelayerConfig{}
	if _, err := config.LoadAndWatch("relayer", cfg); err != nil {
		panic(fmt.Sprintf("load config: %+v", err))
	}
	if cfg.Name == "" {
		cfg.Name = "relayer"
	}

	// 初始化日志
	logger.Init(cfg.Name, cfg.Log.Level)
	defer logger.Sync()
	logger.Info(ctx, "relayer starting")

	// 业务指标
	metrics.MustRegister()

	// ========= 1) 链上客户端 =========
	lc, err := ledger.New(ledger.Options{
		RPCURL:     cfg.Solana.RPCURL,
		ProgramID:  cfg.Solana.ProgramID,
		Keypair:    cfg.Solana.AdminKeypair,
		Commitment: cfg.Solana.Commitment,
	})
	if err != nil {
		logger.Fatal(ctx, "build ledger client", zap.Error(err))
	}
	logger.Info(ctx, "ledger client ready",
		zap.String("program", lc.ProgramID().String()),
		zap.String("admin", lc.Admin().String()))

	// ========= 2) 计划验证器 =========
	verifier, err := mpc.New(mpc.Config{
		UseReal:          cfg.MPC.UseReal,
		ProgramID:        cfg.MPC.ProgramID,
		ClusterOffset:    cfg.MPC.ClusterOffset,
		KeyFetchAttempts: cfg.MPC.KeyFetchAttempts,
		KeyFetchInterval: cfg.MPC.KeyFetchInterval,
		FinalizeTimeout:  cfg.MPC.FinalizeTimeout,
		PollInterval:     cfg.MPC.PollInterval,
	}, lc)
	if err != nil {
		logger.Fatal(ctx, "build verifier", zap.Error(err))
	}
	logger.Info(ctx, "verifier ready", zap.Bool("use_real", cfg.MPC.UseReal))

	// ========= 3) HTTP 服务 =========
	svc := relayer.NewService(lc, verifier, cfg.Batch.Cap())
	srv := relayer.NewRouter(cfg.HTTP.Addr, relayer.NewHandler(svc))

	safe.Go(func() {
		logger.Info(ctx, "http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "http server", zap.Error(err))
		}
	})

	<-ctx.Done()
	logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown", zap.Error(err))
	}
	logger.Info(shutdownCtx, "bye")
}
