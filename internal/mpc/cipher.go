package mpc

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cloudflare/circl/dh/x25519"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

const nonceSize = 16

// sessionKeys 为一次作业生成一次性密钥材料：临时 x25519 密钥对、
// 与集群公钥协商出的共享密钥，以及随盘发送的随机 nonce。
type sessionKeys struct {
	Public x25519.Key
	Shared x25519.Key
	Nonce  [nonceSize]byte
}

func newSession(clusterKey x25519.Key) (*sessionKeys, error) {
	var secret, public x25519.Key
	if _, err := io.ReadFull(rand.Reader, secret[:]); err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	x25519.KeyGen(&public, &secret)

	s := &sessionKeys{Public: public}
	if ok := x25519.Shared(&s.Shared, &secret, &clusterKey); !ok {
		return nil, fmt.Errorf("x25519 shared secret against low-order cluster key")
	}
	if _, err := io.ReadFull(rand.Reader, s.Nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s, nil
}

// sealElements 加密域元素序列。密钥由共享密钥和 nonce 经 HKDF 派生，
// 每次作业唯一，因此流密码 nonce 取零值即可。
func (s *sessionKeys) sealElements(elements [][elementSize]byte) ([]byte, error) {
	key := make([]byte, chacha20.KeySize)
	kdf := hkdf.New(sha256.New, s.Shared[:], s.Nonce[:], []byte("darkpool-orders"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive job key: %w", err)
	}
	stream, err := chacha20.NewUnauthenticatedCipher(key, make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	buf := make([]byte, 0, len(elements)*elementSize)
	for _, e := range elements {
		buf = append(buf, e[:]...)
	}
	stream.XORKeyStream(buf, buf)
	return buf, nil
}
