package ocb

import (
	"crypto/cipher"

	"github.com/codahale/ocb/internal/mem"
)

const (
	defaultNonceSize = 15
	defaultTagSize   = 16
)

// NewAEAD returns a one-shot [cipher.AEAD] over the given 128-bit block
// cipher with a 15-byte nonce and a 16-byte tag.
func NewAEAD(block cipher.Block) (cipher.AEAD, error) {
	return NewAEADWithNonceAndTagSize(block, defaultNonceSize, defaultTagSize)
}

// NewAEADWithNonceAndTagSize returns a one-shot [cipher.AEAD] over the given
// 128-bit block cipher with the given nonce length (1 to 15 bytes) and tag
// length (4 to 16 bytes).
//
// Each Seal and Open call runs an independent [Session], so the returned
// AEAD is safe for concurrent use as long as the block cipher is.
func NewAEADWithNonceAndTagSize(block cipher.Block, nonceSize, tagSize int) (cipher.AEAD, error) {
	if block.BlockSize() != blockSize {
		return nil, ErrCipherMismatch
	}
	if nonceSize < 1 || nonceSize >= blockSize {
		return nil, ErrInvalidNonce
	}
	if tagSize < 4 || tagSize > blockSize {
		return nil, ErrInvalidTagLength
	}
	return &aead{block: block, nonceSize: nonceSize, tagSize: tagSize}, nil
}

type aead struct {
	block     cipher.Block
	nonceSize int
	tagSize   int
}

func (a *aead) NonceSize() int { return a.nonceSize }

func (a *aead) Overhead() int { return a.tagSize }

func (a *aead) Seal(dst, nonce, plaintext, adata []byte) []byte {
	if len(nonce) != a.nonceSize {
		panic("ocb: incorrect nonce length given to OCB")
	}

	ret, out := mem.SliceForAppend(dst, len(plaintext)+a.tagSize)

	s := a.session(true, nonce, adata)
	n, err := s.Process(out, plaintext)
	if err == nil {
		_, err = s.Final(out[n:])
	}
	if err != nil {
		panic("ocb: " + err.Error())
	}
	s.Clear()
	return ret
}

func (a *aead) Open(dst, nonce, ciphertext, adata []byte) ([]byte, error) {
	if len(nonce) != a.nonceSize {
		panic("ocb: incorrect nonce length given to OCB")
	}
	if len(ciphertext) < a.tagSize {
		return nil, ErrDataTooShort
	}

	ret, out := mem.SliceForAppend(dst, len(ciphertext)-a.tagSize)

	s := a.session(false, nonce, adata)
	n, err := s.Process(out, ciphertext)
	if err == nil {
		_, err = s.Final(out[n:])
	}
	s.Clear()
	if err != nil {
		clear(out)
		return nil, err
	}
	return ret, nil
}

func (a *aead) session(forEncryption bool, nonce, adata []byte) *Session {
	s, err := NewSession(a.block, a.block)
	if err != nil {
		panic("ocb: " + err.Error())
	}
	if err := s.Init(forEncryption, nonce, a.tagSize*8, nil); err != nil {
		panic("ocb: " + err.Error())
	}
	s.WriteAAD(adata)
	return s
}
