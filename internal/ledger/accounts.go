package ledger

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// PDA 种子与链上程序保持一致：
//   config            = ["config"]
//   market            = ["market", base_mint, quote_mint]
//   vault             = ["vault", "base"|"quote", base_mint, quote_mint]
//   order             = ["order", market, owner, nonce_le8]

func ConfigPDA(programID solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("config")}, programID)
	return pda, err
}

func MarketPDA(programID, baseMint, quoteMint solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("market"), baseMint[:], quoteMint[:]}, programID)
	return pda, err
}

func VaultPDA(programID solana.PublicKey, base bool, baseMint, quoteMint solana.PublicKey) (solana.PublicKey, error) {
	kind := []byte("quote")
	if base {
		kind = []byte("base")
	}
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("vault"), kind, baseMint[:], quoteMint[:]}, programID)
	return pda, err
}

func OrderPDA(programID, market, owner solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], nonce)
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("order"), market[:], owner[:], le[:]}, programID)
	return pda, err
}

// OwnerTokenAccount 推导某个 owner 在某个 mint 下的关联代币账户
func OwnerTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return ata, err
}
