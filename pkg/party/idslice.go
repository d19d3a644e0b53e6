package party

import (
	"encoding/binary"
	"io"
	"slices"
	"strings"
)

// IDSlice is a list of indices, kept in increasing order by NewIDSlice.
type IDSlice []ID

// NewIDSlice returns a sorted copy of ids.
func NewIDSlice(ids []ID) IDSlice {
	out := slices.Clone(IDSlice(ids))
	slices.Sort(out)
	return out
}

// Valid holds for strictly increasing slices of non zero indices.
func (s IDSlice) Valid() bool {
	for i, id := range s {
		if !id.Valid() || (i > 0 && s[i-1] >= id) {
			return false
		}
	}
	return true
}

// Contains reports whether every id is in the sorted slice s.
func (s IDSlice) Contains(ids ...ID) bool {
	for _, id := range ids {
		if _, found := slices.BinarySearch(s, id); !found {
			return false
		}
	}
	return true
}

func (s IDSlice) Copy() IDSlice { return slices.Clone(s) }

// Remove returns a copy of s without id.
func (s IDSlice) Remove(id ID) IDSlice {
	out := make(IDSlice, 0, len(s))
	for _, other := range s {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}

// WriteTo writes a uint32 count followed by each index.
func (s IDSlice) WriteTo(w io.Writer) (int64, error) {
	if s == nil {
		return 0, io.ErrUnexpectedEOF
	}
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(s)))
	for _, id := range s {
		buf = binary.BigEndian.AppendUint16(buf, uint16(id))
	}
	n, err := w.Write(buf)
	return int64(n), err
}

func (IDSlice) Domain() string { return "IDSlice" }

func (s IDSlice) String() string {
	parts := make([]string, len(s))
	for i, id := range s {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
