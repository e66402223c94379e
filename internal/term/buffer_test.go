package term

import (
	"bytes"
	"strings"
	"testing"
)

func TestRingBuffer_KeepsEverythingUnderMax(t *testing.T) {
	rb := NewRingBuffer(64)

	n, err := rb.Write([]byte("hello "))
	if err != nil || n != 6 {
		t.Fatalf("Write = (%d, %v), want (6, nil)", n, err)
	}
	rb.Write([]byte("world"))

	if got := string(rb.Bytes()); got != "hello world" {
		t.Errorf("Bytes = %q, want %q", got, "hello world")
	}
	if rb.Len() != 11 {
		t.Errorf("Len = %d, want 11", rb.Len())
	}
}

func TestRingBuffer_OverflowKeepsTail(t *testing.T) {
	rb := NewRingBuffer(8)

	rb.Write([]byte("abcdef"))
	rb.Write([]byte("ghij"))

	if got := string(rb.Bytes()); got != "cdefghij" {
		t.Errorf("Bytes = %q, want %q", got, "cdefghij")
	}
	if rb.Len() != 8 {
		t.Errorf("Len = %d, want 8", rb.Len())
	}
}

func TestRingBuffer_SingleWriteLargerThanMax(t *testing.T) {
	rb := NewRingBuffer(4)

	n, err := rb.Write([]byte(strings.Repeat("x", 10) + "TAIL"))
	if err != nil || n != 14 {
		t.Fatalf("Write = (%d, %v), want (14, nil)", n, err)
	}

	if got := string(rb.Bytes()); got != "TAIL" {
		t.Errorf("Bytes = %q, want %q", got, "TAIL")
	}
}

func TestRingBuffer_BytesReturnsCopy(t *testing.T) {
	rb := NewRingBuffer(16)
	rb.Write([]byte("data"))

	snapshot := rb.Bytes()
	snapshot[0] = 'X'

	if !bytes.Equal(rb.Bytes(), []byte("data")) {
		t.Error("mutating the returned slice changed the buffer")
	}
}

func TestRingBuffer_ZeroMaxStillWorks(t *testing.T) {
	rb := NewRingBuffer(0)
	rb.Write([]byte("ab"))
	if got := string(rb.Bytes()); got != "b" {
		t.Errorf("Bytes = %q, want %q", got, "b")
	}
}
