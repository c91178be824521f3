// Package commitment computes sealed-bid commitments and keeps a bidder's
// pending bid (amount and nonce) until reveal time.
package commitment

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/namebid/auctiond/lib/auction"
)

// preimageLen is the fixed commitment preimage width:
// amount (32) + nonce (32) + bidder (20), all big-endian.
const preimageLen = 32 + 32 + 20

// GenerateNonce draws a uniform 256-bit nonce from the platform CSPRNG.
// Returns auction.ErrEntropyUnavailable if the RNG cannot be sourced; there
// is deliberately no weaker fallback.
func GenerateNonce() (*big.Int, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", auction.ErrEntropyUnavailable, err)
	}
	return new(big.Int).SetBytes(buf[:]), nil
}

// ComputeCommitment hashes the concatenation of amount, nonce and bidder
// with Keccak-256.
// The byte layout is a wire contract with the on-chain verifier: fixed-width
// big-endian fields, no length prefixes, no ABI-dynamic encoding.
// Amount and nonce must fit in 256 bits; see auction.ValidateAmount.
func ComputeCommitment(amount, nonce *big.Int, bidder common.Address) common.Hash {
	var pre [preimageLen]byte
	amount.FillBytes(pre[:32])
	nonce.FillBytes(pre[32:64])
	copy(pre[64:], bidder[:])
	return crypto.Keccak256Hash(pre[:])
}

// VerifyCommitment recomputes the commitment and compares it to expected.
// The hash is public, so a plain comparison suffices.
func VerifyCommitment(amount, nonce *big.Int, bidder common.Address, expected common.Hash) bool {
	return ComputeCommitment(amount, nonce, bidder) == expected
}
