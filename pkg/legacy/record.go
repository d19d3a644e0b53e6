package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// Positions of the fields in a legacy record.
const (
	slotParty = iota
	slotSigning
	slotIndex
	slotCommitments
	slotModuli
	slotPublic
	slotChainCode
)

// byteArray is a byte string written as a JSON array of integers in [0, 255].
type byteArray []byte

func (b *byteArray) UnmarshalJSON(data []byte) error {
	var numbers []json.Number
	if err := strictUnmarshal(data, &numbers); err != nil {
		return fmt.Errorf("byte array: %w", err)
	}
	if numbers == nil {
		return fmt.Errorf("byte array: null")
	}
	out := make([]byte, len(numbers))
	for i, n := range numbers {
		v, err := n.Int64()
		if err != nil || v < 0 || v > 255 {
			return fmt.Errorf("byte array: element %d is not a byte: %s", i, n)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// decimal is a non-negative integer written as a JSON string of base 10 digits.
type decimal struct {
	*big.Int
}

func (d *decimal) UnmarshalJSON(data []byte) error {
	var s string
	if err := strictUnmarshal(data, &s); err != nil {
		return fmt.Errorf("decimal: %w", err)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return fmt.Errorf("decimal: %q is not a non-negative integer", s)
	}
	d.Int = n
	return nil
}

type jsonScalar struct {
	Curve  *string    `json:"curve"`
	Scalar *byteArray `json:"scalar"`
}

type jsonPoint struct {
	Curve *string    `json:"curve"`
	Point *byteArray `json:"point"`
}

type jsonPartyBlock struct {
	U  *jsonScalar `json:"u_i"`
	DK *struct {
		P *decimal `json:"p"`
		Q *decimal `json:"q"`
	} `json:"dk"`
}

type jsonSigningBlock struct {
	X *jsonScalar `json:"x_i"`
}

type jsonVSS struct {
	Commitments []jsonPoint `json:"commitments"`
}

type jsonModulus struct {
	N *decimal `json:"n"`
}

// curveBytes is a scalar or point together with the name of its curve.
type curveBytes struct {
	Curve string
	Bytes []byte
}

// legacyRecord holds the fields of a legacy keystore by name.
// Only parseRecord knows about positions.
type legacyRecord struct {
	BlindingScalar curveBytes
	// P and Q are nil when the record has no decryption key.
	P, Q         *big.Int
	SigningShare curveBytes
	Index        uint64
	// Commitments[j] belongs to party j+1.
	Commitments [][]curveBytes
	// Moduli[j] belongs to party j+1.
	Moduli []*big.Int
	// Public is the aggregate key, if the record has one.
	Public *curveBytes
}

func strictUnmarshal(data []byte, v interface{}) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(v); err != nil {
		return err
	}
	if d.More() {
		return fmt.Errorf("trailing data")
	}
	return nil
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedLegacyRecord, fmt.Sprintf(format, args...))
}

func (s *jsonScalar) project(name string) (curveBytes, error) {
	if s == nil || s.Curve == nil || s.Scalar == nil {
		return curveBytes{}, malformed("%s: missing curve or scalar", name)
	}
	return curveBytes{Curve: *s.Curve, Bytes: *s.Scalar}, nil
}

func (p *jsonPoint) project(name string) (curveBytes, error) {
	if p == nil || p.Curve == nil || p.Point == nil {
		return curveBytes{}, malformed("%s: missing curve or point", name)
	}
	return curveBytes{Curve: *p.Curve, Bytes: *p.Point}, nil
}

func decodeSlot(slots []json.RawMessage, slot int, name string, v interface{}) error {
	if slot >= len(slots) {
		return malformed("missing slot %d (%s)", slot, name)
	}
	if bytes.Equal(bytes.TrimSpace(slots[slot]), []byte("null")) {
		return malformed("slot %d (%s) is null", slot, name)
	}
	if err := strictUnmarshal(slots[slot], v); err != nil {
		return fmt.Errorf("%w: slot %d (%s): %w", ErrMalformedLegacyRecord, slot, name, err)
	}
	return nil
}

// parseRecord maps the positional JSON array onto a legacyRecord.
func parseRecord(data []byte) (*legacyRecord, error) {
	var slots []json.RawMessage
	if err := strictUnmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLegacyRecord, err)
	}

	var (
		record     legacyRecord
		err        error
		partyBlock jsonPartyBlock
		signing    jsonSigningBlock
		index      json.Number
		vss        []jsonVSS
		moduli     []jsonModulus
	)

	if err = decodeSlot(slots, slotParty, "party", &partyBlock); err != nil {
		return nil, err
	}
	if record.BlindingScalar, err = partyBlock.U.project("u_i"); err != nil {
		return nil, err
	}
	if partyBlock.DK != nil {
		if partyBlock.DK.P == nil || partyBlock.DK.Q == nil {
			return nil, malformed("dk: missing p or q")
		}
		record.P, record.Q = partyBlock.DK.P.Int, partyBlock.DK.Q.Int
	}

	if err = decodeSlot(slots, slotSigning, "signing", &signing); err != nil {
		return nil, err
	}
	if record.SigningShare, err = signing.X.project("x_i"); err != nil {
		return nil, err
	}

	if err = decodeSlot(slots, slotIndex, "index", &index); err != nil {
		return nil, err
	}
	idx, err := partyIndex(index)
	if err != nil {
		return nil, err
	}
	record.Index = idx

	if err = decodeSlot(slots, slotCommitments, "commitments", &vss); err != nil {
		return nil, err
	}
	record.Commitments = make([][]curveBytes, 0, len(vss))
	for j, v := range vss {
		if len(v.Commitments) == 0 {
			return nil, malformed("commitments of party %d: empty", j+1)
		}
		points := make([]curveBytes, 0, len(v.Commitments))
		for l := range v.Commitments {
			p, err := v.Commitments[l].project(fmt.Sprintf("commitment %d of party %d", l, j+1))
			if err != nil {
				return nil, err
			}
			points = append(points, p)
		}
		record.Commitments = append(record.Commitments, points)
	}

	if err = decodeSlot(slots, slotModuli, "moduli", &moduli); err != nil {
		return nil, err
	}
	record.Moduli = make([]*big.Int, 0, len(moduli))
	for j, m := range moduli {
		if m.N == nil {
			return nil, malformed("modulus of party %d: missing n", j+1)
		}
		record.Moduli = append(record.Moduli, m.N.Int)
	}

	// the trailing slots are optional
	if slotPublic < len(slots) {
		var public jsonPoint
		if err = decodeSlot(slots, slotPublic, "public", &public); err != nil {
			return nil, err
		}
		p, err := public.project("public")
		if err != nil {
			return nil, err
		}
		record.Public = &p
	}
	if slotChainCode < len(slots) {
		var chainCode byteArray
		if err = decodeSlot(slots, slotChainCode, "chain code", &chainCode); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func partyIndex(n json.Number) (uint64, error) {
	v, err := n.Int64()
	if err != nil || v < 1 || v > 0xffff {
		return 0, malformed("index %q is not a valid party index", n.String())
	}
	return uint64(v), nil
}
