package test

import (
	"errors"
	"io"
	"math/big"
	"sync"

	"github.com/taurusgroup/multi-party-keystore/pkg/paillier"
)

// paillierPrimes are precomputed prime pairs, so that tests do not spend their time sampling primes.
var paillierPrimes = [][2]string{
	{
		"ffadc7f4a7358ddeb1048b8957e359a9a0bbb4c9c85339d76f79af0af9769333de3390c1a6cab04dd27fe3b4ff9b621db4af49e3e82bb9f149553a0dc679bbf611b84219a27067d7a5cc7f6c425cf43add5442c2f0963eb3676b461b59661acff05fecd8e029dadcd083bf2e597f92e53e723d0154c84be3427c586cbc53ae43",
		"ef9e1f59016d2727a33cce4149d88b7ca3e0230936b5b6688220fa4ea1d56785d92771ae7da415dec1b9f8944696f96414ad7ce597cf8a2073637ac21fe2f1ea1529253ee31e588f9f4b65b5159609e40063d92fd375299852110857b8890343920fd0bcf4c39b8f5c5d1a2b5d6c2984b0c33bcbbd519d83cb263e552367874b",
	},
	{
		"eb6ff99a1869ade7f1a9012b026d5856b86a4b74bcf453748f146e832c9b15ff163ff5b5856b9ab33c0cd3710eedd8d38d1eac9d6308464eac8f18407c7b7ec3b1f2b11e12fde3f72ec5958293fc35e189dcb93911b801c0c503f900d501f5fa09bba5b2e0ad4baccd6a7c97c0c0acebeae5f074b54baa4a14951f7c671f0b8f",
		"fda68f004a906bcffa93014c2be9189fa0bc43b4be0c400bd73e693bc2cd372672f17fd5beaef90fde5b824ba1876e0b121f6248fb2f83e5f1244a97ed5b2e9eab1b324ef192c6d326ae74bc6d0b18f26dd90abc0e3c8e32475c2132e786e7701f26a1fcb39c7aebea3a67ac92cdae3b5533358efbfcd65fde00e2feeea6cf39",
	},
	{
		"c0fe7fc107fa520e8156b3ffb81e31327f28a5ffed77d085b95b0bf1fbdca5f21f71ee32898ea6d8fb633abab48d3b03c81a489cf343c77f0a9365bf2fdb3d097b5ca9599bfc2a218a541fe7d2674ede78b0a0d9b1db7fe33a6cebfe327ff682ff09a40d7291eaf6d9a155ffa2b42b6947954d31debc29781d80334344d5b053",
		"f788fdbe2884945ab6516bb0e6cd96459b58dd6082e793573756b8ba452f0cb39c0e1d8f72c111e11924c5d4d6c7f86d2f2bb6a9284fca6dfeba2a3d25a379038208fd57dad5d7faedd5ee6862987921a3befaed3f8cea70df0d1a1d7ab1399ebdcc17b0457d048727c53e75a940b4f14e5269acf310b5e9339df62faa2938df",
	},
	{
		"df8eab06660480cce990f1a01a38613127d5881b0097dcbaf41f6a7d8f2658872037fc1098d6fe4f2558973b13a69f8b3ea7f3d39eade9c3b279cafe3761777b0b12349b0ec79666de5b6cea8119faf230cb30e5d2334b68752b160580085d7fcefd90d2d184e2cec694ab452374f3b9be944f916d0bd32ce14cde49f316e88d",
		"e890d97ce9f0ae5bfca6c6f98457574d3563f538cac5e1eed76f29e44ea61de9427574555975dbf9d3689f3d2338bec6bb796806ddb000160cc2adccfa1669be01c6ad9406b4603e23da12b22300a8bc04dbd1a8a63a2890387cf94d8efb9c48f3d7699006fdabf6e01797a92c979e45adfa6afe66720a970bda701941ce14ed",
	},
	{
		"de6c29a03cca801e3310012e911ccd850735f979ddaacd6573dc89d2c405a1d306b1759ca72275c8354cb351cc4ee7d70523f642024ef003be32b4a011994e50e5f266c93a81e4a0fde98ef916cb229f79bd41392f3332e3663557e7fc1fba8003e0209d33d57e1128a2a3d50b85f23497c9f938ec204066ed815f3a26189c79",
		"c220bbfbad73a0ea403abd2d6e91496a3b04fe2e40295c6a46c935b367b2b4a52a67a440644534529921dc67313052538904277b3758c8ce0b000f76bfc89c0a63dde7b7bea6cf238a756122832af021d679c87ac7dadbb5e6a1f8753cee8ff05a18fc7351ece08f06cbfb5fa681cd944bc3f30294d1d03b124b9c8f4409f385",
	},
	{
		"c63dde45c73663d2b67bf594138a7775de6ca0ac3d20ef96f865cf190651a12840c331eea7b9f789295fc459bc18fb8c28abde22564afb8c7e8d35dee29d0cc56b6a9fbaa2f59459f546fa4118e24a344c6d01a9cdf443efdc303cb8b16390d16bf8627cf50b7854a5fd031cc94caa6585780a707b0a1f15b3147eae8b2a89d5",
		"c7b822e3e944db5ec2c152e695fac3b7d2d3d7db658e068e99294cc090e2e0201af096c043378fa64064d1ad9ff4d54b4e6cfbcc44045452080232572cba00b90499a1a33c5bd60b43f1699eb1618b1e8612d67b0323d808bd8a7e8bb0983e5202f22d0bd59d2f3c895c36849d042a468d521969d9e1feeb14ef22fce38b84fd",
	},
}

// PaillierPool hands out distinct precomputed Paillier keys.
// It can be passed wherever a Paillier key generator is expected.
type PaillierPool struct {
	mtx  sync.Mutex
	next int
}

var ErrPaillierPoolExhausted = errors.New("test: no precomputed paillier keys left")

// KeyGen returns the next precomputed key, ignoring rand.
func (p *PaillierPool) KeyGen(io.Reader) (*paillier.SecretKey, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.next >= len(paillierPrimes) {
		return nil, ErrPaillierPoolExhausted
	}
	pair := paillierPrimes[p.next]
	p.next++
	P, _ := new(big.Int).SetString(pair[0], 16)
	Q, _ := new(big.Int).SetString(pair[1], 16)
	return paillier.Import(P, Q)
}
