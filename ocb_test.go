package ocb

import (
	"bytes"
	"crypto/aes"
	"testing"
)

func TestDouble(t *testing.T) {
	t.Run("no carry", func(t *testing.T) {
		src := [16]byte{15: 0x01}
		var dst [16]byte
		double(&dst, &src)

		want := [16]byte{15: 0x02}
		if dst != want {
			t.Errorf("double(%x) = %x, want %x", src, dst, want)
		}
	})

	t.Run("carry reduces", func(t *testing.T) {
		src := [16]byte{0: 0x80}
		var dst [16]byte
		double(&dst, &src)

		want := [16]byte{15: 0x87}
		if dst != want {
			t.Errorf("double(%x) = %x, want %x", src, dst, want)
		}
	})

	t.Run("carry propagates across bytes", func(t *testing.T) {
		src := [16]byte{0: 0x80, 1: 0x80, 15: 0x80}
		var dst [16]byte
		double(&dst, &src)

		want := [16]byte{0: 0x01, 14: 0x01, 15: 0x87}
		if dst != want {
			t.Errorf("double(%x) = %x, want %x", src, dst, want)
		}
	})

	t.Run("pure function of input", func(t *testing.T) {
		src := [16]byte{0: 0xDE, 7: 0xAD, 15: 0xBE}
		orig := src
		var a, b [16]byte
		double(&a, &src)
		double(&b, &src)

		if a != b {
			t.Errorf("double not deterministic: %x != %x", a, b)
		}
		if src != orig {
			t.Errorf("double mutated its input: %x", src)
		}
	})
}

func TestLadderGrowth(t *testing.T) {
	block, err := aes.NewCipher(make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}

	var m ladder
	m.init(block)

	// L_$ = double(L_*), L_0 = double(L_$).
	var want [16]byte
	double(&want, &m.star)
	if m.dollar != want {
		t.Errorf("L_$ = %x, want double(L_*) = %x", m.dollar, want)
	}
	double(&want, &m.dollar)
	if *m.sub(0) != want {
		t.Errorf("L_0 = %x, want double(L_$) = %x", *m.sub(0), want)
	}

	// Extending to L_9 materializes every intermediate entry once.
	l9 := *m.sub(9)
	if len(m.l) != 10 {
		t.Errorf("ladder length = %d, want 10", len(m.l))
	}
	for i := 1; i < 10; i++ {
		double(&want, &m.l[i-1])
		if m.l[i] != want {
			t.Errorf("L_%d = %x, want double(L_%d) = %x", i, m.l[i], i-1, want)
		}
	}

	// Old entries survive later growth.
	_ = m.sub(20)
	if *m.sub(9) != l9 {
		t.Error("ladder growth rewrote an existing entry")
	}
}

func TestNonceFormatting(t *testing.T) {
	block, err := aes.NewCipher(make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewSession(block, block)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("separator and tag bits", func(t *testing.T) {
		if err := s.Init(true, bytes.Repeat([]byte{0xFF}, 12), 128, nil); err != nil {
			t.Fatal(err)
		}

		// 12-byte nonce: byte 0 carries taglen<<4 (zero for a full 128-bit
		// tag), byte 3 carries the separator bit, bytes 4..15 are the nonce
		// with the low six bits masked out of the cached copy.
		if got := s.ktopNonce[0]; got != 0 {
			t.Errorf("formatted byte 0 = %#x, want 0", got)
		}
		if got := s.ktopNonce[3]; got != 0x01 {
			t.Errorf("formatted byte 3 = %#x, want 0x01", got)
		}
		if got := s.ktopNonce[15]; got != 0xC0 {
			t.Errorf("formatted byte 15 = %#x, want 0xC0 after masking", got)
		}
	})

	t.Run("ktop cache hit on low six bits", func(t *testing.T) {
		nonce := make([]byte, 12)
		if err := s.Init(true, nonce, 128, nil); err != nil {
			t.Fatal(err)
		}
		stretch := s.stretch

		nonce[11] = 0x3F // differs only in the bottom six bits
		if err := s.Init(true, nonce, 128, nil); err != nil {
			t.Fatal(err)
		}
		if s.stretch != stretch {
			t.Error("stretch recomputed for a nonce sharing its top 122 bits")
		}

		nonce[0] = 0x01 // differs above the bottom six bits
		if err := s.Init(true, nonce, 128, nil); err != nil {
			t.Fatal(err)
		}
		if s.stretch == stretch {
			t.Error("stretch not recomputed for a distinct nonce prefix")
		}
	})

	t.Run("bottom rotation", func(t *testing.T) {
		// bottom = 0 must select the stretch head unshifted.
		nonce := make([]byte, 12)
		if err := s.Init(true, nonce, 128, nil); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(s.offset0[:], s.stretch[:16]) {
			t.Errorf("offset0 with bottom=0 = %x, want stretch[:16] = %x", s.offset0, s.stretch[:16])
		}

		// bottom = 8 must select stretch[1:17] exactly.
		nonce[11] = 0x08
		if err := s.Init(true, nonce, 128, nil); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(s.offset0[:], s.stretch[1:17]) {
			t.Errorf("offset0 with bottom=8 = %x, want stretch[1:17] = %x", s.offset0, s.stretch[1:17])
		}
	})
}
