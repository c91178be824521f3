package commitment

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCommitment(t *testing.T) {
	t.Parallel()
	amount := big.NewInt(500)
	nonce := big.NewInt(12345)
	bidder := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	h1 := ComputeCommitment(amount, nonce, bidder)
	h2 := ComputeCommitment(big.NewInt(500), big.NewInt(12345), bidder)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, common.Hash{}, h1)

	assert.True(t, VerifyCommitment(amount, nonce, bidder, h1))

	// Any field change falsifies the commitment.
	assert.False(t, VerifyCommitment(big.NewInt(501), nonce, bidder, h1))
	assert.False(t, VerifyCommitment(amount, big.NewInt(12346), bidder, h1))
	other := common.HexToAddress("0x00000000000000000000000000000000000000ab")
	assert.False(t, VerifyCommitment(amount, nonce, other, h1))
}

func TestComputeCommitmentZeroAmount(t *testing.T) {
	t.Parallel()
	bidder := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	h := ComputeCommitment(new(big.Int), new(big.Int), bidder)
	assert.True(t, VerifyCommitment(new(big.Int), new(big.Int), bidder, h))
}

func TestGenerateNonce(t *testing.T) {
	t.Parallel()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		n, err := GenerateNonce()
		require.NoError(t, err)
		assert.LessOrEqual(t, n.BitLen(), 256)
		_, dup := seen[n.String()]
		require.False(t, dup)
		seen[n.String()] = struct{}{}
	}
}
