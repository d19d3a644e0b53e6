package params

const (
	SecParam  = 256
	SecBytes  = SecParam / 8
	StatParam = 80

	// BytesScalar is the canonical length of an encoded scalar, for every supported curve.
	BytesScalar = 32

	// BytesPointSecp256k1 is the length of a compressed secp256k1 point.
	BytesPointSecp256k1 = 33
	// BytesPointEd25519 is the length of a compressed edwards25519 point.
	BytesPointEd25519 = 32

	// BytesChainCode is the length of a BIP-32 chain code.
	BytesChainCode = 32

	BitsIntModN  = 8 * SecParam    // = 2048
	BytesIntModN = BitsIntModN / 8 // = 256

	BitsBlumPrime = 4 * SecParam      // = 1024
	BitsPaillier  = 2 * BitsBlumPrime // = 2048

	// MinBitsPaillier is the smallest accepted modulus, since the product of two
	// BitsBlumPrime primes may be one bit short.
	MinBitsPaillier = BitsPaillier - 1

	BytesPaillier   = BitsPaillier / 8  // = 256
	BytesCiphertext = 2 * BytesPaillier // = 512

	// LPrime bounds the additive mask used in the MtA conversion, so that
	// a⋅b + β' never wraps around a Paillier modulus.
	LPrime = 5 * SecParam // = 1280
)
