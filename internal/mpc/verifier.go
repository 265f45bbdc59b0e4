// Package mpc bridges the relayer to the confidential matching network.
// A Verifier takes the plaintext order set and the locally computed plan
// and returns an attestation binding the plan to the computation, or an
// error when the plan cannot be vouched for.
package mpc

import (
	"context"
	"time"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/internal/ledger"
)

// Verifier 对执行计划出具证明。实现方可以是本地桩，也可以是真实的
// MPC 集群。两种模式返回的 attestation 都会原样写入结算指令。
type Verifier interface {
	VerifyPlan(ctx context.Context, orders []domain.Order, plan *domain.ExecutionPlan) ([]byte, error)
}

// Config mirrors the mpc section of the relayer config file.
type Config struct {
	UseReal          bool
	ProgramID        string
	ClusterOffset    uint32
	KeyFetchAttempts int
	KeyFetchInterval time.Duration
	FinalizeTimeout  time.Duration
	PollInterval     time.Duration
}

// New 按配置选择实现。useReal=false 时走本地重算桩，
// 开发与测试环境用这个就够了。
func New(cfg Config, lc *ledger.Client) (Verifier, error) {
	if !cfg.UseReal {
		return NewLocalVerifier(), nil
	}
	return NewClusterVerifier(cfg, lc)
}
