package mpc

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cloudflare/circl/dh/x25519"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/arcsilence/darkpool-relayer/internal/domain"
	"github.com/arcsilence/darkpool-relayer/internal/ledger"
	"github.com/arcsilence/darkpool-relayer/internal/matching"
	"github.com/arcsilence/darkpool-relayer/pkg/logger"
	"github.com/arcsilence/darkpool-relayer/pkg/metrics"
	"github.com/arcsilence/darkpool-relayer/pkg/retry"
)

const (
	defaultKeyFetchAttempts = 20
	defaultKeyFetchInterval = 500 * time.Millisecond
	defaultFinalizeTimeout  = 60 * time.Second
	defaultPollInterval     = 2 * time.Second

	clusterKeyAccountLen = 8 + 32      // discriminator + x25519 公钥
	jobHeaderLen         = 8 + 1 + 64  // discriminator + 状态 + 终结签名
	jobStatusFinalized   = 1
)

// accountReader 只读一个账户的原始数据，账户不存在返回错误。
// 收窄成接口是为了能在测试里替换掉 RPC。
type accountReader interface {
	ReadAccount(ctx context.Context, account solana.PublicKey) ([]byte, error)
}

// jobChain 提交作业交易需要的链上能力面，*ledger.Client 天然满足
type jobChain interface {
	Admin() solana.PublicKey
	SendInstructions(ctx context.Context, instrs ...solana.Instruction) (solana.Signature, error)
}

type rpcAccountReader struct {
	rpc *rpc.Client
}

func (r rpcAccountReader) ReadAccount(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	res, err := r.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("account %s not found", account)
	}
	return res.Value.Data.GetBinary(), nil
}

// ClusterVerifier 把订单批加密后交给 MPC 集群重算，拿回终结签名作为
// 证明。网络输出必须与本地计划完全一致，否则拒绝结算。
type ClusterVerifier struct {
	chain     jobChain
	reader    accountReader
	programID solana.PublicKey
	offset    uint32
	keyPolicy retry.Policy
	finalize  time.Duration
	poll      time.Duration
}

func NewClusterVerifier(cfg Config, lc *ledger.Client) (*ClusterVerifier, error) {
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("parse mpc program id %q: %w", cfg.ProgramID, err)
	}
	v := &ClusterVerifier{
		chain:     lc,
		reader:    rpcAccountReader{rpc: lc.RPC()},
		programID: programID,
		offset:    cfg.ClusterOffset,
		keyPolicy: retry.Policy{
			MaxAttempts: cfg.KeyFetchAttempts,
			Interval:    cfg.KeyFetchInterval,
		},
		finalize: cfg.FinalizeTimeout,
		poll:     cfg.PollInterval,
	}
	if v.keyPolicy.MaxAttempts <= 0 {
		v.keyPolicy.MaxAttempts = defaultKeyFetchAttempts
	}
	if v.keyPolicy.Interval <= 0 {
		v.keyPolicy.Interval = defaultKeyFetchInterval
	}
	if v.finalize <= 0 {
		v.finalize = defaultFinalizeTimeout
	}
	if v.poll <= 0 {
		v.poll = defaultPollInterval
	}
	return v, nil
}

func (v *ClusterVerifier) VerifyPlan(ctx context.Context, orders []domain.Order, plan *domain.ExecutionPlan) ([]byte, error) {
	// 先在本地重算一遍，网络只用来背书，不用来发现新的成交。
	local, err := matching.Match(orders, plan.CreatedAt)
	if err != nil {
		return nil, domain.NewVerification("recompute plan", err)
	}
	if err := assertFillsEqual(plan.Fills, local.Fills); err != nil {
		return nil, err
	}

	clusterKey, err := v.fetchClusterKey(ctx)
	if err != nil {
		return nil, domain.NewVerification("fetch cluster key", err)
	}

	session, err := newSession(clusterKey)
	if err != nil {
		return nil, domain.NewVerification("open mpc session", err)
	}

	elements, err := encodeOrderElements(orders)
	if err != nil {
		return nil, domain.NewVerification("encode orders", err)
	}
	ciphertext, err := session.sealElements(elements)
	if err != nil {
		return nil, domain.NewVerification("encrypt orders", err)
	}

	jobOffset, err := randomOffset()
	if err != nil {
		return nil, domain.NewVerification("pick job offset", err)
	}
	jobAccount, err := jobPDA(v.programID, jobOffset)
	if err != nil {
		return nil, domain.NewVerification("derive job account", err)
	}

	instr, err := v.buildSubmitInstruction(jobOffset, jobAccount, session, uint32(len(orders)), ciphertext)
	if err != nil {
		return nil, domain.NewVerification("build job instruction", err)
	}
	sig, err := v.chain.SendInstructions(ctx, instr)
	if err != nil {
		return nil, domain.NewVerification("submit job", err)
	}
	logger.Info(ctx, "mpc job submitted",
		zap.Uint64("offset", jobOffset),
		zap.String("job", jobAccount.String()),
		zap.String("tx", sig.String()))

	attestation, wires, err := v.awaitFinalization(ctx, jobAccount)
	if err != nil {
		return nil, domain.NewVerification("await finalization", err)
	}

	networkFills, err := resolveWireFills(orders, wires)
	if err != nil {
		return nil, domain.NewVerification("decode network fills", err)
	}
	if err := assertFillsEqual(plan.Fills, networkFills); err != nil {
		return nil, err
	}
	return attestation, nil
}

// fetchClusterKey 读取集群公钥账户。节点轮换期间该账户可能短暂缺失，
// 所以带上限地重试。
func (v *ClusterVerifier) fetchClusterKey(ctx context.Context) (key x25519.Key, err error) {
	account, err := clusterKeyPDA(v.programID, v.offset)
	if err != nil {
		return key, err
	}
	attempt := 0
	err = v.keyPolicy.Do(ctx, func(ctx context.Context) error {
		if attempt++; attempt > 1 {
			metrics.MpcRetriesTotal.Inc()
		}
		data, err := v.reader.ReadAccount(ctx, account)
		if err != nil {
			return err
		}
		if len(data) < clusterKeyAccountLen {
			return fmt.Errorf("cluster key account %s truncated: %d bytes", account, len(data))
		}
		copy(key[:], data[8:40])
		return nil
	})
	return key, err
}

func (v *ClusterVerifier) buildSubmitInstruction(
	offset uint64,
	jobAccount solana.PublicKey,
	session *sessionKeys,
	orderCount uint32,
	ciphertext []byte,
) (solana.Instruction, error) {
	clusterAccount, err := clusterKeyPDA(v.programID, v.offset)
	if err != nil {
		return nil, err
	}

	args := submitJobArgs{
		ComputationOffset: offset,
		Nonce: bin.Uint128{
			Lo: binary.LittleEndian.Uint64(session.Nonce[:8]),
			Hi: binary.LittleEndian.Uint64(session.Nonce[8:]),
		},
		OrderCount: orderCount,
		Ciphertext: ciphertext,
	}
	copy(args.EphemeralKey[:], session.Public[:])

	data := append([]byte{}, domain.InstructionDiscriminator("submit_job")...)
	buf, err := borshBytes(args)
	if err != nil {
		return nil, err
	}
	data = append(data, buf...)

	accounts := solana.AccountMetaSlice{
		solana.Meta(v.chain.Admin()).WRITE().SIGNER(),
		solana.Meta(clusterAccount),
		solana.Meta(jobAccount).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(v.programID, accounts, data), nil
}

// awaitFinalization 轮询作业账户直到回调落账或超时。
func (v *ClusterVerifier) awaitFinalization(ctx context.Context, jobAccount solana.PublicKey) ([]byte, []wireFill, error) {
	ctx, cancel := context.WithTimeout(ctx, v.finalize)
	defer cancel()

	ticker := time.NewTicker(v.poll)
	defer ticker.Stop()

	for {
		data, err := v.reader.ReadAccount(ctx, jobAccount)
		if err == nil {
			if len(data) >= jobHeaderLen && data[8] == jobStatusFinalized {
				attestation := make([]byte, 64)
				copy(attestation, data[9:jobHeaderLen])
				wires, err := decodeWireFills(data[jobHeaderLen:])
				if err != nil {
					return nil, nil, err
				}
				return attestation, wires, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("job %s not finalized: %w", jobAccount, ctx.Err())
		case <-ticker.C:
		}
	}
}

type submitJobArgs struct {
	ComputationOffset uint64
	Nonce             bin.Uint128
	EphemeralKey      [32]byte
	OrderCount        uint32
	Ciphertext        []byte
}

func borshBytes(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func randomOffset() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func clusterKeyPDA(programID solana.PublicKey, offset uint32) (solana.PublicKey, error) {
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], offset)
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("cluster_key"), le[:]}, programID)
	return pda, err
}

func jobPDA(programID solana.PublicKey, offset uint64) (solana.PublicKey, error) {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], offset)
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("job"), le[:]}, programID)
	return pda, err
}
