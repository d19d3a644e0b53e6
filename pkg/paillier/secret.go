package paillier

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-keystore/internal/params"
	"github.com/taurusgroup/multi-party-keystore/pkg/pool"
)

var (
	ErrPrimeBadLength = errors.New("prime factor is not the right length")
	ErrNotPrime       = errors.New("prime factor is not prime")
	ErrPrimeNil       = errors.New("prime is nil")
)

// SecretKey is the secret key corresponding to a Public Paillier Key.
//
// A public key is a modulus N, and the secret key contains the information
// needed to factor N into two primes, P and Q. This allows us to decrypt
// values encrypted using this modulus.
type SecretKey struct {
	*PublicKey
	// p, q such that N = p⋅q
	p, q *saferith.Nat
	// phi = ϕ = (p-1)(q-1)
	phi *saferith.Nat
	// phiInv = ϕ⁻¹ mod N
	phiInv *saferith.Nat
}

// P returns the first of the two factors composing this key.
func (sk *SecretKey) P() *saferith.Nat {
	return new(saferith.Nat).SetNat(sk.p)
}

// Q returns the second of the two factors composing this key.
func (sk *SecretKey) Q() *saferith.Nat {
	return new(saferith.Nat).SetNat(sk.q)
}

// KeyGen samples two primes of params.BitsBlumPrime bits and returns the resulting SecretKey.
func KeyGen(rand io.Reader) (*SecretKey, error) {
	return keyGen(nil, rand)
}

// KeyGenWithPool returns a generator like KeyGen, which samples both primes in parallel on pl.
func KeyGenWithPool(pl *pool.Pool) func(io.Reader) (*SecretKey, error) {
	return func(rand io.Reader) (*SecretKey, error) {
		return keyGen(pl, rand)
	}
}

type primeResult struct {
	p   *big.Int
	err error
}

func keyGen(pl *pool.Pool, r io.Reader) (*SecretKey, error) {
	if r == nil {
		r = rand.Reader
	}
	locked := pool.NewLockedReader(r)
	for {
		primes := pool.Parallelize(pl, 2, func(int) primeResult {
			p, err := randPrime(locked)
			return primeResult{p: p, err: err}
		})
		for _, res := range primes {
			if res.err != nil {
				return nil, res.err
			}
		}
		if primes[0].p.Cmp(primes[1].p) == 0 {
			continue
		}
		return Import(primes[0].p, primes[1].p)
	}
}

func randPrime(r io.Reader) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	p, err := rand.Prime(r, params.BitsBlumPrime)
	if err != nil {
		return nil, fmt.Errorf("paillier: sample prime: %w", err)
	}
	return p, nil
}

// Import validates the primes p and q, and returns the SecretKey for N = p⋅q
// with all precomputed values already set.
func Import(p, q *big.Int) (*SecretKey, error) {
	if err := ValidatePrime(p); err != nil {
		return nil, fmt.Errorf("%w: p: %w", ErrInvalidModulus, err)
	}
	if err := ValidatePrime(q); err != nil {
		return nil, fmt.Errorf("%w: q: %w", ErrInvalidModulus, err)
	}
	if p.Cmp(q) == 0 {
		return nil, fmt.Errorf("%w: p = q", ErrInvalidModulus)
	}
	P := new(saferith.Nat).SetBig(p, p.BitLen())
	Q := new(saferith.Nat).SetBig(q, q.BitLen())
	sk := NewSecretKeyFromPrimes(P, Q)
	if err := ValidateN(sk.n); err != nil {
		return nil, err
	}
	return sk, nil
}

// NewSecretKeyFromPrimes generates a new SecretKey. Assumes that P and Q are prime.
func NewSecretKeyFromPrimes(P, Q *saferith.Nat) *SecretKey {
	oneNat := new(saferith.Nat).SetUint64(1)

	nNat := new(saferith.Nat).Mul(P, Q, -1)
	n := saferith.ModulusFromNat(nNat)

	pMinus1 := new(saferith.Nat).Sub(P, oneNat, -1)
	qMinus1 := new(saferith.Nat).Sub(Q, oneNat, -1)
	phi := new(saferith.Nat).Mul(pMinus1, qMinus1, -1)
	// ϕ⁻¹ mod N
	phiInv := new(saferith.Nat).ModInverse(phi, n)

	return &SecretKey{
		p:         new(saferith.Nat).SetNat(P),
		q:         new(saferith.Nat).SetNat(Q),
		phi:       phi,
		phiInv:    phiInv,
		PublicKey: newPublicKey(n),
	}
}

// Dec decrypts c and returns the plaintext m ∈ [0, N).
// It returns an error if gcd(c, N²) != 1 or if c is not in [1, N²-1].
func (sk *SecretKey) Dec(ct *Ciphertext) (*saferith.Nat, error) {
	oneNat := new(saferith.Nat).SetUint64(1)

	n := sk.PublicKey.n

	if !sk.PublicKey.ValidateCiphertexts(ct) {
		return nil, errors.New("paillier: failed to decrypt invalid ciphertext")
	}

	// r = c^Phi 						(mod N²)
	result := new(saferith.Nat).Exp(ct.c, sk.phi, sk.PublicKey.nSquared)
	// r = c^Phi - 1
	result.Sub(result, oneNat, -1)
	// r = [(c^Phi - 1)/N]
	result.Div(result, n, -1)
	result.Mod(result, n)
	// r = [(c^Phi - 1)/N] • Phi^-1		(mod N)
	result.ModMul(result, sk.phiInv, n)

	return result, nil
}

// Equal returns true if both keys have the same factors.
func (sk *SecretKey) Equal(other *SecretKey) bool {
	if sk == nil || other == nil {
		return sk == other
	}
	return sk.p.Eq(other.p) == 1 && sk.q.Eq(other.q) == 1
}

// ValidatePrime checks whether p is a suitable prime for Paillier.
// Checks:
// - log₂(p) ≡ params.BitsBlumPrime.
// - p is probably prime.
func ValidatePrime(p *big.Int) error {
	if p == nil {
		return ErrPrimeNil
	}
	// check bit lengths
	const bitsWant = params.BitsBlumPrime
	if bits := p.BitLen(); bits != bitsWant {
		return fmt.Errorf("invalid prime size: have: %d, need %d: %w", bits, bitsWant, ErrPrimeBadLength)
	}
	if !p.ProbablyPrime(20) {
		return ErrNotPrime
	}
	return nil
}
