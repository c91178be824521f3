// Package eligibility builds Merkle allow-list proofs and classifies opaque
// eligibility payloads into a closed set of rule variants.
package eligibility

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/namebid/auctiond/lib/auction"
)

// BuildProof returns the Merkle proof for target against the tree built from
// whitelist. Leaves are keccak(address); interior nodes hash the
// lexicographically smaller child first, so verification is independent of
// leaf insertion order. Returns auction.ErrNotAMember if target is not in
// whitelist.
func BuildProof(whitelist []common.Address, target common.Address) ([]common.Hash, error) {
	level := leaves(whitelist)
	idx := -1
	for i, a := range whitelist {
		if a == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", auction.ErrNotAMember, target.Hex())
	}

	var proof []common.Hash
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// Odd node is promoted to the next level unchanged.
				next = append(next, level[i])
				continue
			}
			if i == idx || i+1 == idx {
				sibling := level[i]
				if i == idx {
					sibling = level[i+1]
				}
				proof = append(proof, sibling)
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		idx /= 2
		level = next
	}
	return proof, nil
}

// MerkleRoot returns the root of the tree built from whitelist, or the zero
// hash for an empty whitelist.
func MerkleRoot(whitelist []common.Address) common.Hash {
	level := leaves(whitelist)
	if len(level) == 0 {
		return common.Hash{}
	}
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

// VerifyProof reports whether proof proves addr's membership in the tree
// identified by root.
func VerifyProof(root common.Hash, addr common.Address, proof []common.Hash) bool {
	node := leaf(addr)
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}

var proofArgs = abi.Arguments{{Type: mustNewType("bytes32[]")}}

// EncodeProof serializes a proof as an ABI dynamic array of bytes32, the
// layout the on-chain decoder expects.
func EncodeProof(proof []common.Hash) ([]byte, error) {
	vals := make([][32]byte, len(proof))
	for i, h := range proof {
		vals[i] = h
	}
	data, err := proofArgs.Pack(vals)
	if err != nil {
		return nil, fmt.Errorf("packing proof: %v", err)
	}
	return data, nil
}

// DecodeProof parses a proof previously encoded with EncodeProof.
func DecodeProof(data []byte) ([]common.Hash, error) {
	vals, err := proofArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpacking proof: %v", err)
	}
	raw, ok := vals[0].([][32]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected proof element type %T", vals[0])
	}
	proof := make([]common.Hash, len(raw))
	for i, b := range raw {
		proof[i] = b
	}
	return proof, nil
}

func leaf(addr common.Address) common.Hash {
	return crypto.Keccak256Hash(addr.Bytes())
}

func leaves(whitelist []common.Address) []common.Hash {
	ls := make([]common.Hash, len(whitelist))
	for i, a := range whitelist {
		ls[i] = leaf(a)
	}
	return ls
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return crypto.Keccak256Hash(a[:], b[:])
	}
	return crypto.Keccak256Hash(b[:], a[:])
}

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}
