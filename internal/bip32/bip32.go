package bip32

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/taurusgroup/multi-party-keystore/internal/params"
	"github.com/taurusgroup/multi-party-keystore/pkg/math/curve"
	"golang.org/x/crypto/hkdf"
)

var chainCodeInfo = []byte("multi-party-keystore chain code")

// serializeKey returns the 33 byte key used both in the HMAC input and the extended key.
// Edwards points are 32 bytes long and get a zero prefix, as in SLIP-10.
func serializeKey(public curve.Point) ([]byte, error) {
	data, err := public.MarshalBinary()
	if err != nil {
		return nil, err
	}
	switch len(data) {
	case 33:
		return data, nil
	case 32:
		return append([]byte{0}, data...), nil
	default:
		return nil, fmt.Errorf("bip32: unexpected key length %d", len(data))
	}
}

// ChainCode derives the root chain code of an aggregate public key.
//
// Threshold keys have no master seed, so the chain code is a deterministic function
// of the key, and every party computes the same one.
func ChainCode(public curve.Point) ([]byte, error) {
	key, err := serializeKey(public)
	if err != nil {
		return nil, err
	}
	out := make([]byte, params.BytesChainCode)
	if _, err = io.ReadFull(hkdf.New(sha256.New, key, nil, chainCodeInfo), out); err != nil {
		return nil, fmt.Errorf("bip32: chain code: %w", err)
	}
	return out, nil
}

// DeriveScalar uses a public point, chaining value, and index, to derive a scalar and chaining value.
//
// This scalar should be added to the secret key.
//
// If an error is returned, this means that this index will not be useable, and another
// index should be used instead.
//
// This function will panic if an index for a hardened key is used.
//
// See: https://github.com/bitcoin/bips/blob/master/bip-0032.mediawiki
func DeriveScalar(public curve.Point, chaining []byte, i uint32) (curve.Scalar, []byte, error) {
	if i&hardenedBit != 0 {
		panic("DeriveScalar doesn't work with hardened keys.")
	}

	key, err := serializeKey(public)
	if err != nil {
		return nil, nil, err
	}

	h := hmac.New(sha512.New, chaining)
	_, _ = h.Write(key)
	iBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(iBytes, i)
	_, _ = h.Write(iBytes)

	out := h.Sum(nil)
	group := public.Curve()
	var scalar curve.Scalar
	if _, ok := group.(curve.Secp256k1); ok {
		if scalar, err = curve.DecodeScalar(group, out[:32]); err != nil {
			return nil, nil, fmt.Errorf("bad index: %d", i)
		}
	} else {
		scalar = curve.ScalarFromBytesModOrder(group, out[:32])
	}

	return scalar, out[32:], nil
}

// Derive follows path starting at public, and returns the sum of all tweaks,
// the derived public key tweak⋅G + public, and the final chain code.
func Derive(public curve.Point, chainCode []byte, path Path) (curve.Scalar, curve.Point, []byte, error) {
	group := public.Curve()
	tweak := group.NewScalar()
	derived := group.NewPoint().Set(public)
	chain := append([]byte(nil), chainCode...)
	for _, i := range path.indices {
		scalar, next, err := DeriveScalar(derived, chain, i)
		if err != nil {
			return nil, nil, nil, err
		}
		derived = derived.Add(scalar.ActOnBase())
		if derived.IsIdentity() {
			return nil, nil, nil, fmt.Errorf("bad index: %d", i)
		}
		tweak.Add(scalar)
		chain = next
	}
	return tweak, derived, chain, nil
}

// ExtendedPublicKey returns the base58 "xpub" serialization of a root public key.
func ExtendedPublicKey(public curve.Point, chainCode []byte) (string, error) {
	key, err := serializeKey(public)
	if err != nil {
		return "", err
	}
	if len(chainCode) != params.BytesChainCode {
		return "", fmt.Errorf("bip32: invalid chain code length %d", len(chainCode))
	}
	xpub := hdkeychain.NewExtendedKey(chaincfg.MainNetParams.HDPublicKeyID[:], key, chainCode, []byte{0, 0, 0, 0}, 0, 0, false)
	return xpub.String(), nil
}
