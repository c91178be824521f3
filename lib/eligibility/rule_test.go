package eligibility

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNone(t *testing.T) {
	t.Parallel()
	assert.Equal(t, None{}, Decode(nil))
	assert.Equal(t, None{}, Decode([]byte{}))
	assert.Equal(t, None{}, Decode(make([]byte, 96)))
}

func TestDecodeWhitelist(t *testing.T) {
	t.Parallel()
	list := addrs(3)
	payload, err := EncodeWhitelist(list)
	require.NoError(t, err)

	rule, ok := Decode(payload).(Whitelist)
	require.True(t, ok)
	assert.Equal(t, list, rule.Addresses)
	assert.True(t, rule.Contains(list[1]))
	var outsider common.Address
	outsider[19] = 0xff
	assert.False(t, rule.Contains(outsider))
}

func TestDecodeWhitelistEmpty(t *testing.T) {
	t.Parallel()
	payload, err := EncodeWhitelist(nil)
	require.NoError(t, err)

	// An empty whitelist is a valid rule that admits nobody.
	rule, ok := Decode(payload).(Whitelist)
	require.True(t, ok)
	assert.Empty(t, rule.Addresses)
	assert.False(t, rule.Contains(common.Address{}))
}

func TestDecodeMerkleRule(t *testing.T) {
	t.Parallel()
	in := MerkleRule{
		RuleType:        1,
		MerkleRoot:      common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"),
		Signer:          common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Token:           common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		MinAmount:       big.NewInt(100),
		Expiry:          big.NewInt(1700000000),
		DomainSeparator: common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222"),
	}
	payload, err := EncodeMerkleRule(in)
	require.NoError(t, err)

	rule, ok := Decode(payload).(MerkleRule)
	require.True(t, ok)
	assert.Equal(t, in.RuleType, rule.RuleType)
	assert.Equal(t, in.MerkleRoot, rule.MerkleRoot)
	assert.Equal(t, in.Signer, rule.Signer)
	assert.Equal(t, in.Token, rule.Token)
	assert.Zero(t, in.MinAmount.Cmp(rule.MinAmount))
	assert.Zero(t, in.Expiry.Cmp(rule.Expiry))
	assert.Equal(t, in.DomainSeparator, rule.DomainSeparator)
}

func TestEncodeMerkleRuleNilAmounts(t *testing.T) {
	t.Parallel()
	payload, err := EncodeMerkleRule(MerkleRule{
		RuleType:   1,
		MerkleRoot: common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"),
	})
	require.NoError(t, err)

	rule, ok := Decode(payload).(MerkleRule)
	require.True(t, ok)
	assert.Zero(t, rule.MinAmount.Sign())
	assert.Zero(t, rule.Expiry.Sign())
}

func TestDecodeUnknown(t *testing.T) {
	t.Parallel()
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	rule, ok := Decode(payload).(Unknown)
	require.True(t, ok)
	assert.Equal(t, payload, rule.Raw)

	// The preserved payload is a copy, not an alias.
	payload[0] = 0x00
	assert.Equal(t, byte(0xde), rule.Raw[0])
}

func TestDecodeIdempotent(t *testing.T) {
	t.Parallel()
	whitelistPayload, err := EncodeWhitelist(addrs(2))
	require.NoError(t, err)
	merklePayload, err := EncodeMerkleRule(MerkleRule{RuleType: 1})
	require.NoError(t, err)

	for _, payload := range [][]byte{
		nil,
		whitelistPayload,
		merklePayload,
		{0x01, 0x02},
	} {
		assert.Equal(t, Decode(payload), Decode(payload))
	}
}
