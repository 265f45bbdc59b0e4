package config

import "time"

// 总配置
type RelayerConfig struct {
	Name   string       `mapstructure:"name" json:"name" yaml:"name"`
	HTTP   HTTPConfig   `mapstructure:"http" json:"http" yaml:"http"`
	Log    LogConfig    `mapstructure:"log" json:"log" yaml:"log"`
	Solana SolanaConfig `mapstructure:"solana" json:"solana" yaml:"solana"`
	MPC    MPCConfig    `mapstructure:"mpc" json:"mpc" yaml:"mpc"`
	Batch  BatchConfig  `mapstructure:"batch" json:"batch" yaml:"batch"`
}

// HTTP 配置
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// 链上接入配置
type SolanaConfig struct {
	RPCURL       string `mapstructure:"rpcUrl" yaml:"rpcUrl"`
	ProgramID    string `mapstructure:"programId" yaml:"programId"`
	AdminKeypair string `mapstructure:"adminKeypair" yaml:"adminKeypair"`
	Commitment   string `mapstructure:"commitment" yaml:"commitment"`
}

// MPC 集群配置。useReal=false 时其余字段可以留空。
type MPCConfig struct {
	UseReal          bool          `mapstructure:"useReal" yaml:"useReal"`
	ProgramID        string        `mapstructure:"programId" yaml:"programId"`
	ClusterOffset    uint32        `mapstructure:"clusterOffset" yaml:"clusterOffset"`
	KeyFetchAttempts int           `mapstructure:"keyFetchAttempts" yaml:"keyFetchAttempts"`
	KeyFetchInterval time.Duration `mapstructure:"keyFetchInterval" yaml:"keyFetchInterval"`
	FinalizeTimeout  time.Duration `mapstructure:"finalizeTimeout" yaml:"finalizeTimeout"`
	PollInterval     time.Duration `mapstructure:"pollInterval" yaml:"pollInterval"`
}

// 撮合批次配置。maxOrders 受限于链上结算交易的账户数上限，
// 默认一买一卖。
type BatchConfig struct {
	MaxOrders int `mapstructure:"maxOrders" yaml:"maxOrders"`
}

const DefaultMaxOrders = 2

func (b BatchConfig) Cap() int {
	if b.MaxOrders <= 0 {
		return DefaultMaxOrders
	}
	return b.MaxOrders
}
