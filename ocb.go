// Package ocb implements the OCB authenticated-encryption mode of operation
// (RFC 7253) over an arbitrary 128-bit block cipher.
//
// OCB turns a keyed block cipher into a single-pass AEAD: a [Session] absorbs
// associated data and message bytes in any interleaving and finally either
// appends an authentication tag (encryption) or verifies one in constant time
// (decryption). The one-shot [NewAEAD] facade wraps a Session in the standard
// [cipher.AEAD] interface.
//
// Security considerations (from RFC 7253): a key MUST NOT be used to encrypt
// more than 2^48 blocks, nonces MUST NOT repeat under a key, and tags should
// be at least 12 bytes. OCB is not nonce-misuse resistant; a repeated nonce
// is catastrophic and nothing here attempts recovery.
package ocb

import (
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"math/bits"
	"reflect"
)

// blockSize is the only block size OCB as specified here operates on.
const blockSize = 16

var (
	// ErrCipherMismatch is returned by NewSession when the two block cipher
	// instances are not the same 128-bit algorithm.
	ErrCipherMismatch = errors.New("ocb: block ciphers must be the same 128-bit algorithm")

	// ErrInvalidNonce is returned by Init for nonces outside 1..15 bytes.
	ErrInvalidNonce = errors.New("ocb: nonce must be between 1 and 15 bytes")

	// ErrInvalidTagLength is returned by Init for tag lengths outside 32..128
	// bits or not a multiple of 8.
	ErrInvalidTagLength = errors.New("ocb: tag length must be between 32 and 128 bits and a multiple of 8")

	// ErrBufferTooSmall is returned when a caller-provided output buffer is
	// shorter than the promised worst-case size.
	ErrBufferTooSmall = errors.New("ocb: output buffer too small")

	// ErrDataTooShort is returned by Final on decryption when fewer bytes than
	// the tag length were fed.
	ErrDataTooShort = errors.New("ocb: message shorter than tag")

	// ErrAuthenticationFailed is returned by Final on decryption when the tag
	// does not verify. Any plaintext released by Process before the failure
	// must be discarded.
	ErrAuthenticationFailed = errors.New("ocb: authentication failed")
)

// Session is a streaming OCB encryption or decryption state machine.
//
// A Session is created over a pair of block cipher instances keyed with the
// same key, configured by Init, fed with WriteAAD and Process, and completed
// by Final. After Final (or Reset) it may be reused for another message under
// the same nonce and initial associated data.
//
// A Session carries key-derived secrets and is not safe for concurrent use.
type Session struct {
	hashBlock cipher.Block // forward direction only: AAD, pads, and the tag
	mainBlock cipher.Block // forward on encrypt, inverse on decrypt

	encrypting bool
	tagLen     int
	initAAD    []byte

	ladder ladder

	ktopNonce []byte // formatted nonce whose stretch is cached
	stretch   [24]byte
	offset0   [16]byte

	offsetMain [16]byte
	offsetHash [16]byte
	checksum   [16]byte
	sum        [16]byte

	hashBuf   [16]byte
	hashPos   int
	hashCount uint64

	mainBuf   []byte // blockSize on encrypt, blockSize+tagLen on decrypt
	mainPos   int
	mainCount uint64

	macBlock []byte

	initialized bool
}

// NewSession creates a Session over two instances of the same 128-bit block
// cipher keyed with the same key. hashCipher is only ever used in the forward
// direction (associated data, pad stream, and tag); mainCipher runs forward
// for encryption and inverse for decryption.
func NewSession(hashCipher, mainCipher cipher.Block) (*Session, error) {
	if hashCipher.BlockSize() != blockSize || mainCipher.BlockSize() != blockSize {
		return nil, ErrCipherMismatch
	}
	if reflect.TypeOf(hashCipher) != reflect.TypeOf(mainCipher) {
		return nil, ErrCipherMismatch
	}

	s := &Session{hashBlock: hashCipher, mainBlock: mainCipher}
	s.ladder.init(hashCipher)
	return s, nil
}

// Algorithm returns the session's algorithm name, "<cipher>/OCB". The cipher
// name is taken from the block cipher when it implements
// interface{ Algorithm() string }.
func (s *Session) Algorithm() string {
	if n, ok := s.mainBlock.(interface{ Algorithm() string }); ok {
		return n.Algorithm() + "/OCB"
	}
	return "Cipher/OCB"
}

// Init configures the session for one direction, nonce, and tag length.
// tagBits must be in [32, 128] and a multiple of 8; the nonce must be 1 to 15
// bytes. initialAAD, when non-nil, is absorbed immediately and replayed after
// every Reset and Final.
//
// Init may be called again to rekey the session to a new nonce or direction;
// nonces differing from the previous one only in their low 6 bits reuse the
// cached Ktop and cost no block cipher call.
func (s *Session) Init(forEncryption bool, nonce []byte, tagBits int, initialAAD []byte) error {
	if tagBits < 32 || tagBits > 128 || tagBits%8 != 0 {
		return ErrInvalidTagLength
	}
	if len(nonce) == 0 || len(nonce) >= blockSize {
		return ErrInvalidNonce
	}

	s.encrypting = forEncryption
	s.tagLen = tagBits / 8
	s.initAAD = append(s.initAAD[:0], initialAAD...)

	bufLen := blockSize
	if !forEncryption {
		bufLen += s.tagLen
	}
	if cap(s.mainBuf) < bufLen {
		s.mainBuf = make([]byte, bufLen)
	}
	s.mainBuf = s.mainBuf[:bufLen]

	s.expandNonce(nonce)
	s.initialized = true
	s.macBlock = nil
	s.reset(false)
	return nil
}

// WriteAAD absorbs associated data. It may be called any number of times and
// interleaved freely with Process; the hash and crypt lanes are independent.
func (s *Session) WriteAAD(p []byte) {
	s.mustInit()
	for len(p) > 0 {
		n := copy(s.hashBuf[s.hashPos:], p)
		s.hashPos += n
		p = p[n:]
		if s.hashPos == blockSize {
			s.processHashBlock()
		}
	}
}

func (s *Session) processHashBlock() {
	s.hashCount++
	xorBytesMut(s.offsetHash[:], s.ladder.sub(bits.TrailingZeros64(s.hashCount))[:])
	xorBytesMut(s.hashBuf[:], s.offsetHash[:])
	s.hashBlock.Encrypt(s.hashBuf[:], s.hashBuf[:])
	xorBytesMut(s.sum[:], s.hashBuf[:])
	s.hashPos = 0
}

// finalizeHash folds a trailing partial AAD block into the sum. The partial
// block uses the L_* offset update, not the ntz-indexed one.
func (s *Session) finalizeHash() {
	if s.hashPos == 0 {
		return
	}
	s.hashBuf[s.hashPos] = 0x80
	clear(s.hashBuf[s.hashPos+1:])
	xorBytesMut(s.offsetHash[:], s.ladder.star[:])
	xorBytesMut(s.hashBuf[:], s.offsetHash[:])
	s.hashBlock.Encrypt(s.hashBuf[:], s.hashBuf[:])
	xorBytesMut(s.sum[:], s.hashBuf[:])
	s.hashPos = 0
}

// Process absorbs message bytes (plaintext when encrypting, ciphertext when
// decrypting) and writes any completed output blocks to dst, returning the
// number of bytes written. dst must have room for UpdateOutputSize(len(src))
// bytes. dst and src must not overlap.
//
// When decrypting, the trailing tag-length bytes fed so far are always held
// back as the candidate tag, so output lags input by up to a block plus a
// tag. Plaintext written by Process is unverified until Final succeeds.
func (s *Session) Process(dst, src []byte) (int, error) {
	s.mustInit()
	if len(dst) < s.UpdateOutputSize(len(src)) {
		return 0, ErrBufferTooSmall
	}

	var n int
	for len(src) > 0 {
		c := copy(s.mainBuf[s.mainPos:], src)
		s.mainPos += c
		src = src[c:]
		if s.mainPos == len(s.mainBuf) {
			n += s.processMainBlock(dst[n:])
		}
	}
	return n, nil
}

func (s *Session) processMainBlock(out []byte) int {
	s.mainCount++
	block := s.mainBuf[:blockSize]

	if s.encrypting {
		xorBytesMut(s.checksum[:], block)
	}
	xorBytesMut(s.offsetMain[:], s.ladder.sub(bits.TrailingZeros64(s.mainCount))[:])
	xorBytesMut(block, s.offsetMain[:])
	if s.encrypting {
		s.mainBlock.Encrypt(block, block)
	} else {
		s.mainBlock.Decrypt(block, block)
	}
	xorBytesMut(block, s.offsetMain[:])
	n := copy(out, block)

	if s.encrypting {
		s.mainPos = 0
	} else {
		xorBytesMut(s.checksum[:], block)
		// Slide the retained candidate tag down to the front.
		copy(s.mainBuf, s.mainBuf[blockSize:blockSize+s.tagLen])
		s.mainPos = s.tagLen
	}
	return n
}

// UpdateOutputSize returns the worst-case number of bytes a Process call with
// n input bytes may write.
func (s *Session) UpdateOutputSize(n int) int {
	total := s.mainPos + n
	if !s.encrypting {
		if total < s.tagLen {
			return 0
		}
		total -= s.tagLen
	}
	return total - total%blockSize
}

// FinalOutputSize returns the number of bytes a Process call with n input
// bytes followed by Final will write in total.
func (s *Session) FinalOutputSize(n int) int {
	total := s.mainPos + n
	if s.encrypting {
		return total + s.tagLen
	}
	if total < s.tagLen {
		return 0
	}
	return total - s.tagLen
}

// Final completes the message. When encrypting it writes any remaining
// partial-block ciphertext followed by the tag; when decrypting it verifies
// the tag in constant time, writes the remaining plaintext only on success,
// and returns ErrAuthenticationFailed on mismatch. dst must have room for
// FinalOutputSize(0) bytes.
//
// On success the session resets itself (preserving the computed tag for MAC)
// and is ready for another message under the same nonce and initial AAD.
// After an error the session state is undefined until Reset or Init.
func (s *Session) Final(dst []byte) (int, error) {
	s.mustInit()
	if len(dst) < s.FinalOutputSize(0) {
		return 0, ErrBufferTooSmall
	}

	var tag [16]byte
	if !s.encrypting {
		if s.mainPos < s.tagLen {
			return 0, ErrDataTooShort
		}
		s.mainPos -= s.tagLen
		copy(tag[:], s.mainBuf[s.mainPos:s.mainPos+s.tagLen])
	}

	s.finalizeHash()

	if s.mainPos > 0 {
		if s.encrypting {
			s.mainBuf[s.mainPos] = 0x80
			clear(s.mainBuf[s.mainPos+1 : blockSize])
			xorBytesMut(s.checksum[:], s.mainBuf[:blockSize])
		}
		xorBytesMut(s.offsetMain[:], s.ladder.star[:])

		var pad [16]byte
		s.hashBlock.Encrypt(pad[:], s.offsetMain[:])
		xorBytesMut(s.mainBuf[:blockSize], pad[:])
		if !s.encrypting {
			s.mainBuf[s.mainPos] = 0x80
			clear(s.mainBuf[s.mainPos+1 : blockSize])
			xorBytesMut(s.checksum[:], s.mainBuf[:blockSize])
		}
	}

	xorBytesMut(s.checksum[:], s.offsetMain[:])
	xorBytesMut(s.checksum[:], s.ladder.dollar[:])
	s.hashBlock.Encrypt(s.checksum[:], s.checksum[:])
	xorBytesMut(s.checksum[:], s.sum[:])

	s.macBlock = append(s.macBlock[:0], s.checksum[:s.tagLen]...)

	var n int
	if s.encrypting {
		n = copy(dst, s.mainBuf[:s.mainPos])
		n += copy(dst[n:], s.macBlock)
	} else {
		if subtle.ConstantTimeCompare(s.macBlock, tag[:s.tagLen]) != 1 {
			return 0, ErrAuthenticationFailed
		}
		n = copy(dst, s.mainBuf[:s.mainPos])
	}

	s.reset(true)
	return n, nil
}

// MAC returns a copy of the tag computed by the last Final, or nil if Final
// has not completed since the last Init or Reset.
func (s *Session) MAC() []byte {
	if s.macBlock == nil {
		return nil
	}
	mac := make([]byte, len(s.macBlock))
	copy(mac, s.macBlock)
	return mac
}

// Reset discards the computed tag and any buffered data and returns the
// session to its just-initialized state, replaying the initial AAD.
func (s *Session) Reset() {
	s.mustInit()
	s.macBlock = nil
	s.reset(false)
}

// reset clears the per-message lanes. The ladder, the Ktop cache, and the
// initial offset are key- and nonce-derived and survive.
func (s *Session) reset(preserveMac bool) {
	clear(s.hashBuf[:])
	s.hashPos, s.hashCount = 0, 0
	clear(s.mainBuf)
	s.mainPos, s.mainCount = 0, 0
	clear(s.checksum[:])
	clear(s.sum[:])
	clear(s.offsetHash[:])
	s.offsetMain = s.offset0
	if !preserveMac {
		s.macBlock = nil
	}
	if len(s.initAAD) > 0 {
		s.WriteAAD(s.initAAD)
	}
}

// Clear overwrites all key- and message-derived state with zeros and
// invalidates the session. After Clear, the session must not be used.
func (s *Session) Clear() {
	s.ladder.clear()
	clear(s.ktopNonce)
	s.ktopNonce = nil
	clear(s.stretch[:])
	clear(s.offset0[:])
	clear(s.offsetMain[:])
	clear(s.offsetHash[:])
	clear(s.checksum[:])
	clear(s.sum[:])
	clear(s.hashBuf[:])
	clear(s.mainBuf)
	s.mainBuf = nil
	clear(s.macBlock)
	s.macBlock = nil
	clear(s.initAAD)
	s.initAAD = nil
	s.initialized = false
}

func (s *Session) mustInit() {
	if !s.initialized {
		panic("ocb: session not initialized")
	}
}
