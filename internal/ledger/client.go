package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arcsilence/darkpool-relayer/pkg/logger"
)

// Client 账本适配层：持有一个限速的 RPC 连接和操作员密钥。
// 进程启动时构造一次，按引用传给各组件，不做包级单例。
type Client struct {
	rpc        *rpc.Client
	programID  solana.PublicKey
	admin      solana.PrivateKey
	commitment rpc.CommitmentType
}

type Options struct {
	RPCURL     string
	ProgramID  string
	Keypair    string // 操作员密钥文件路径 (solana-keygen 格式)
	Commitment string // processed / confirmed / finalized
	// 每秒 RPC 请求上限，公共节点默认限得很紧
	RateEvery time.Duration
	RateBurst int
}

func New(opts Options) (*Client, error) {
	programID, err := solana.PublicKeyFromBase58(opts.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", opts.ProgramID, err)
	}
	admin, err := solana.PrivateKeyFromSolanaKeygenFile(opts.Keypair)
	if err != nil {
		return nil, fmt.Errorf("load admin keypair: %w", err)
	}

	every := opts.RateEvery
	if every == 0 {
		every = 200 * time.Millisecond
	}
	burst := opts.RateBurst
	if burst == 0 {
		burst = 5
	}
	rpcClient := rpc.NewWithCustomRPCClient(rpc.NewWithLimiter(
		opts.RPCURL,
		rate.Every(every),
		burst,
	))

	commitment := rpc.CommitmentConfirmed
	switch opts.Commitment {
	case "processed":
		commitment = rpc.CommitmentProcessed
	case "finalized":
		commitment = rpc.CommitmentFinalized
	case "", "confirmed":
	default:
		return nil, fmt.Errorf("unknown commitment %q", opts.Commitment)
	}

	return &Client{
		rpc:        rpcClient,
		programID:  programID,
		admin:      admin,
		commitment: commitment,
	}, nil
}

func (c *Client) ProgramID() solana.PublicKey { return c.programID }
func (c *Client) Admin() solana.PublicKey     { return c.admin.PublicKey() }
func (c *Client) RPC() *rpc.Client            { return c.rpc }

// SendInstructions 以 admin 为付费方签名并发送一笔交易，等待确认。
// 供需要直接上链的协作方使用，例如计算作业的提交。
func (c *Client) SendInstructions(ctx context.Context, instrs ...solana.Instruction) (solana.Signature, error) {
	return c.sendInstructions(ctx, instrs)
}

// sendInstructions 打包、签名并提交一笔交易，等确认后返回签名。
// 这里不做自动重试：上层根据失败语义自己决定（结算批次绝不能重发）。
func (c *Client) sendInstructions(ctx context.Context, instrs []solana.Instruction) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instrs, recent.Value.Blockhash,
		solana.TransactionPayer(c.admin.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.admin.PublicKey()) {
			return &c.admin
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, err
	}

	if err := c.awaitConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// awaitConfirmation 轮询签名状态直到达到目标 commitment 或超时
func (c *Client) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	deadline := time.Now().Add(60 * time.Second)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("transaction %s not confirmed in time", sig)
		}
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction %s failed on ledger: %v", sig, st.Err)
			}
			switch st.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		} else if err != nil {
			logger.Debug(ctx, "signature status poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
