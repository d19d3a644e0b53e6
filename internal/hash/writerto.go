package hash

import (
	"bytes"
	"encoding/binary"
	"io"
)

// WriterToWithDomain is implemented by values that can be absorbed into a Hash.
// The domain keeps values of different types apart when their encodings coincide.
type WriterToWithDomain interface {
	io.WriterTo
	Domain() string
}

// writeWithDomain absorbs len(domain) ‖ domain ‖ len(data) ‖ data.
func writeWithDomain(w io.Writer, object WriterToWithDomain) error {
	var data bytes.Buffer
	if _, err := object.WriteTo(&data); err != nil {
		return err
	}
	domain := object.Domain()

	frame := make([]byte, 0, 16+len(domain)+data.Len())
	frame = binary.BigEndian.AppendUint64(frame, uint64(len(domain)))
	frame = append(frame, domain...)
	frame = binary.BigEndian.AppendUint64(frame, uint64(data.Len()))
	frame = append(frame, data.Bytes()...)
	_, err := w.Write(frame)
	return err
}

// BytesWithDomain annotates raw bytes with a domain.
type BytesWithDomain struct {
	TheDomain string
	Bytes     []byte
}

func (b BytesWithDomain) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes)
	return int64(n), err
}

func (b BytesWithDomain) Domain() string {
	return b.TheDomain
}

// Uint64WithDomain annotates an integer, such as a threshold, with a domain.
type Uint64WithDomain struct {
	TheDomain string
	Value     uint64
}

func (u Uint64WithDomain) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(binary.BigEndian.AppendUint64(nil, u.Value))
	return int64(n), err
}

func (u Uint64WithDomain) Domain() string {
	return u.TheDomain
}
