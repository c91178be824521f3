package eligibility

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Rule is one of the closed set of eligibility rule variants: None,
// Whitelist, MerkleRule or Unknown. Rules are immutable once decoded.
type Rule interface {
	isRule()
}

// None means the auction is open to all bidders.
type None struct{}

// Whitelist restricts bidding to an explicit address set.
type Whitelist struct {
	Addresses []common.Address
}

// MerkleRule restricts bidding by Merkle allow-list membership, optionally
// scoped by token holdings and an expiry. Signature validation over the rule
// is the caller's responsibility, not this package's.
type MerkleRule struct {
	RuleType        uint8
	MerkleRoot      common.Hash
	Signer          common.Address
	Token           common.Address
	MinAmount       *big.Int
	Expiry          *big.Int
	DomainSeparator common.Hash
}

// Unknown preserves a non-empty payload that matches no known layout.
// Payload formats may legitimately evolve, so this is not an error.
type Unknown struct {
	Raw []byte
}

func (None) isRule()       {}
func (Whitelist) isRule()  {}
func (MerkleRule) isRule() {}
func (Unknown) isRule()    {}

// Contains reports whether addr is in the whitelist.
func (w Whitelist) Contains(addr common.Address) bool {
	for _, a := range w.Addresses {
		if a == addr {
			return true
		}
	}
	return false
}

var (
	whitelistArgs = abi.Arguments{
		{Type: mustNewType("bool")},
		{Type: mustNewType("address[]")},
	}
	merkleRuleArgs = abi.Arguments{
		{Type: mustNewType("uint8")},
		{Type: mustNewType("bytes32")},
		{Type: mustNewType("address")},
		{Type: mustNewType("address")},
		{Type: mustNewType("uint256")},
		{Type: mustNewType("uint256")},
		{Type: mustNewType("bytes32")},
	}
)

// EncodeWhitelist serializes an explicit address allow-list to the payload
// layout Decode recognizes as Whitelist.
func EncodeWhitelist(addrs []common.Address) ([]byte, error) {
	data, err := whitelistArgs.Pack(true, addrs)
	if err != nil {
		return nil, fmt.Errorf("packing whitelist: %v", err)
	}
	return data, nil
}

// EncodeMerkleRule serializes a Merkle allow-list rule to the payload layout
// Decode recognizes as MerkleRule.
func EncodeMerkleRule(r MerkleRule) ([]byte, error) {
	minAmount := r.MinAmount
	if minAmount == nil {
		minAmount = new(big.Int)
	}
	expiry := r.Expiry
	if expiry == nil {
		expiry = new(big.Int)
	}
	data, err := merkleRuleArgs.Pack(
		r.RuleType,
		[32]byte(r.MerkleRoot),
		r.Signer,
		r.Token,
		minAmount,
		expiry,
		[32]byte(r.DomainSeparator),
	)
	if err != nil {
		return nil, fmt.Errorf("packing merkle rule: %v", err)
	}
	return data, nil
}

// Decode classifies an eligibility payload. It is total: every input maps to
// a variant, and decoding the same payload twice yields the same result.
// Layouts are tried in fixed order; the first structural match wins:
//
//  1. empty or all-zero payload -> None
//  2. (bool isWhitelisted, address[] whitelist) with isWhitelisted -> Whitelist
//  3. (uint8, bytes32, address, address, uint256, uint256, bytes32) -> MerkleRule
//  4. anything else -> Unknown
func Decode(payload []byte) Rule {
	if allZero(payload) {
		return None{}
	}

	if vals, err := whitelistArgs.Unpack(payload); err == nil {
		if ok, valid := vals[0].(bool); valid && ok {
			if addrs, valid := vals[1].([]common.Address); valid {
				return Whitelist{Addresses: addrs}
			}
		}
	}

	if vals, err := merkleRuleArgs.Unpack(payload); err == nil {
		r := MerkleRule{}
		var valid bool
		if r.RuleType, valid = vals[0].(uint8); valid {
			var root, sep [32]byte
			if root, valid = vals[1].([32]byte); valid {
				r.MerkleRoot = root
			}
			if valid {
				r.Signer, valid = vals[2].(common.Address)
			}
			if valid {
				r.Token, valid = vals[3].(common.Address)
			}
			if valid {
				r.MinAmount, valid = vals[4].(*big.Int)
			}
			if valid {
				r.Expiry, valid = vals[5].(*big.Int)
			}
			if valid {
				if sep, valid = vals[6].([32]byte); valid {
					r.DomainSeparator = sep
				}
			}
			if valid {
				return r
			}
		}
	}

	raw := make([]byte, len(payload))
	copy(raw, payload)
	return Unknown{Raw: raw}
}

func allZero(payload []byte) bool {
	for _, b := range payload {
		if b != 0 {
			return false
		}
	}
	return true
}
