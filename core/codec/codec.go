// Package codec implements the fixed-order record layout shared by every
// persisted marketplace record: little-endian fixed-width integers, u32
// length-prefixed text, one-byte presence flags for optional values and an
// 8-byte type discriminator at the front of each record.
package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"limitlesswork/crypto"
)

// DiscriminatorLength is the size of the leading record type tag.
const DiscriminatorLength = 8

// MaxTextLength bounds any decoded text field so corrupt length prefixes
// cannot force large allocations.
const MaxTextLength = 1 << 16

var (
	ErrShortBuffer           = errors.New("codec: short buffer")
	ErrTrailingBytes         = errors.New("codec: trailing bytes")
	ErrInvalidFlag           = errors.New("codec: invalid presence flag")
	ErrDiscriminatorMismatch = errors.New("codec: discriminator mismatch")
)

// Discriminator returns sha256("account:" + name)[:8].
func Discriminator(name string) [DiscriminatorLength]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [DiscriminatorLength]byte
	copy(out[:], sum[:DiscriminatorLength])
	return out
}

// Writer appends fields in order.
type Writer struct {
	buf []byte
}

// NewWriter starts a record of the named type.
func NewWriter(name string) *Writer {
	d := Discriminator(name)
	w := &Writer{buf: make([]byte, 0, 128)}
	w.buf = append(w.buf, d[:]...)
	return w
}

// Bytes returns the encoded record.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

func (w *Writer) U16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *Writer) U64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

func (w *Writer) Address(a crypto.Address) { w.buf = append(w.buf, a[:]...) }

func (w *Writer) RecordAddress(a crypto.RecordAddress) { w.buf = append(w.buf, a[:]...) }

func (w *Writer) Text(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) OptU64(v *uint64) {
	if v == nil {
		w.U8(0)
		return
	}
	w.U8(1)
	w.U64(*v)
}

func (w *Writer) OptI64(v *int64) {
	if v == nil {
		w.U8(0)
		return
	}
	w.U8(1)
	w.I64(*v)
}

func (w *Writer) OptString(v *string) {
	if v == nil {
		w.U8(0)
		return
	}
	w.U8(1)
	w.Text(*v)
}

func (w *Writer) OptAddress(v *crypto.Address) {
	if v == nil {
		w.U8(0)
		return
	}
	w.U8(1)
	w.Address(*v)
}

// Reader consumes fields in the order they were written. The first failure
// sticks; later reads return zero values and Finish reports the error.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader checks the discriminator for the named type and positions the
// reader after it.
func NewReader(name string, data []byte) *Reader {
	r := &Reader{buf: data}
	want := Discriminator(name)
	got := r.take(DiscriminatorLength)
	if r.err == nil && string(got) != string(want[:]) {
		r.err = fmt.Errorf("%w: expected %s record", ErrDiscriminatorMismatch, name)
	}
	return r
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = ErrShortBuffer
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

// Err returns the first decode failure.
func (r *Reader) Err() error { return r.err }

// Finish reports any decode failure and rejects unread bytes.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d unread", ErrTrailingBytes, len(r.buf)-r.off)
	}
	return nil
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool {
	switch r.flag() {
	case 1:
		return true
	default:
		return false
	}
}

func (r *Reader) flag() uint8 {
	v := r.U8()
	if r.err == nil && v > 1 {
		r.err = fmt.Errorf("%w: %d", ErrInvalidFlag, v)
		return 0
	}
	return v
}

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) I64() int64 { return int64(r.U64()) }

func (r *Reader) Address() crypto.Address {
	var out crypto.Address
	copy(out[:], r.take(crypto.AddressLength))
	return out
}

func (r *Reader) RecordAddress() crypto.RecordAddress {
	var out crypto.RecordAddress
	copy(out[:], r.take(len(out)))
	return out
}

func (r *Reader) Text() string {
	n := r.U32()
	if r.err == nil && n > MaxTextLength {
		r.err = fmt.Errorf("codec: text length %d exceeds limit", n)
		return ""
	}
	return string(r.take(int(n)))
}

func (r *Reader) OptU64() *uint64 {
	if r.flag() == 0 || r.err != nil {
		return nil
	}
	v := r.U64()
	return &v
}

func (r *Reader) OptI64() *int64 {
	if r.flag() == 0 || r.err != nil {
		return nil
	}
	v := r.I64()
	return &v
}

func (r *Reader) OptString() *string {
	if r.flag() == 0 || r.err != nil {
		return nil
	}
	v := r.Text()
	return &v
}

func (r *Reader) OptAddress() *crypto.Address {
	if r.flag() == 0 || r.err != nil {
		return nil
	}
	v := r.Address()
	return &v
}
