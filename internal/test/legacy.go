package test

import (
	"embed"
	"fmt"
)

//go:embed testdata/*.json
var legacyFiles embed.FS

// Legacy fixture sets: three 2-of-3 keystores each.
const (
	LegacyElGamal   = "elgamal_secp256k1"
	LegacyEd25519   = "schnorr_ed25519"
	LegacyTaproot   = "schnorr_taproot"
	LegacyParties   = 3
	LegacyThreshold = 1
)

// LegacyKeystore returns the legacy JSON record of party i ∈ {1,2,3} in the given set.
func LegacyKeystore(set string, i int) []byte {
	data, err := legacyFiles.ReadFile(fmt.Sprintf("testdata/%s_party%d.json", set, i))
	if err != nil {
		panic(err)
	}
	return data
}

// PartyNames returns n sorted party names "A", "B", ….
func PartyNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	return names
}
