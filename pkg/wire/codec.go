// Package wire defines the canonical binary records for keystores and signatures.
//
// Records are CBOR using the core deterministic encoding, so that equal values
// always produce identical bytes.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("wire: cbor encoding options: %v", err))
	}
	if decMode, err = (cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}).DecMode(); err != nil {
		panic(fmt.Sprintf("wire: cbor decoding options: %v", err))
	}
}

// Marshal encodes v with the deterministic encoding used by all records.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v, rejecting duplicate map keys.
func Unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}
