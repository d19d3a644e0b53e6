package bip32

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrHardened is returned for hardened indices, which cannot be derived from a public key.
var ErrHardened = errors.New("bip32: hardened derivation is not supported")

const hardenedBit = uint32(1 << 31)

// Path is a list of non-hardened child indices, such as m/1/2/3/4.
type Path struct {
	indices []uint32
}

func indexFrom(spec string) (uint32, error) {
	if strings.HasSuffix(spec, "'") || strings.HasSuffix(spec, "h") {
		return 0, fmt.Errorf("%w: %q", ErrHardened, spec)
	}

	index, err := strconv.ParseUint(spec, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bip32: invalid index %q: %w", spec, err)
	}
	if uint32(index)&hardenedBit != 0 {
		return 0, fmt.Errorf("%w: %d", ErrHardened, index)
	}
	return uint32(index), nil
}

// PathFrom parses a derivation path. The leading "m" is optional, and an empty
// string or "m" alone denote the root.
func PathFrom(spec string) (Path, error) {
	var indices []uint32

	spec = strings.TrimPrefix(strings.TrimPrefix(spec, "m"), "/")
	if len(spec) == 0 {
		return Path{indices: indices}, nil
	}

	for _, s := range strings.Split(spec, "/") {
		h, err := indexFrom(s)
		if err != nil {
			return Path{}, err
		}

		indices = append(indices, h)
	}

	return Path{indices: indices}, nil
}

// Indices returns a copy of the child indices.
func (p Path) Indices() []uint32 {
	out := make([]uint32, len(p.indices))
	copy(out, p.indices)
	return out
}

// IsRoot reports whether the path has no components.
func (p Path) IsRoot() bool {
	return len(p.indices) == 0
}

func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, i := range p.indices {
		b.WriteString("/")
		b.WriteString(strconv.FormatUint(uint64(i), 10))
	}
	return b.String()
}
