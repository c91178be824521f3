package commitment

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	ds "github.com/ipfs/go-datastore"
	"github.com/namebid/auctiond/lib/auction"
	"github.com/namebid/auctiond/lib/dshelper/txndswrap"
	golog "github.com/textileio/go-log/v2"
)

var (
	log = golog.Logger("auctiond/vault")

	// dsPrefix is the prefix for pending sealed bids.
	// Structure: /commitments/<listing_id>/<bidder> -> Record.
	dsPrefix = ds.NewKey("/commitments")
)

// Record is a bidder's pending sealed bid for one listing. At most one record
// exists per (listing, bidder); a new Put overwrites the prior one.
type Record struct {
	Listing   auction.ListingID
	Bidder    common.Address
	Amount    *big.Int
	Nonce     *big.Int
	CreatedAt time.Time
}

// Vault persists pending sealed bids across process restarts.
//
// Stored payloads are obfuscated with a reversible keyed mask so they are not
// trivially greppable on disk, but they are NOT confidential: anyone with the
// datastore can recover amounts. Treat the vault as a local cache, never as
// secret storage.
type Vault struct {
	store txndswrap.TxnDatastore

	lk sync.Mutex
}

// NewVault returns a new Vault backed by store.
func NewVault(store txndswrap.TxnDatastore) *Vault {
	return &Vault{store: store}
}

// Put saves a pending sealed bid, overwriting any existing record for the
// same (listing, bidder) key.
func (v *Vault) Put(r Record) error {
	if r.Listing == "" {
		return fmt.Errorf("%w: listing id is empty", auction.ErrInvalidInput)
	}
	if err := auction.ValidateAmount(r.Amount); err != nil {
		return fmt.Errorf("%w: %v", auction.ErrInvalidAmount, err)
	}
	if err := auction.ValidateAmount(r.Nonce); err != nil {
		return fmt.Errorf("%w: nonce: %v", auction.ErrInvalidAmount, err)
	}

	v.lk.Lock()
	defer v.lk.Unlock()

	key := recordKey(r.Listing, r.Bidder)
	val, err := encode(&r)
	if err != nil {
		return fmt.Errorf("encoding record: %v", err)
	}
	if err := v.store.Put(key, mask(key, val)); err != nil {
		return fmt.Errorf("%w: putting record: %v", auction.ErrPersistenceUnavailable, err)
	}
	if err := v.store.Sync(key); err != nil {
		return fmt.Errorf("%w: syncing record: %v", auction.ErrPersistenceUnavailable, err)
	}
	log.Debugf("saved pending bid for %s/%s", r.Listing, strings.ToLower(r.Bidder.Hex()))
	return nil
}

// Get returns the pending sealed bid for (listing, bidder), or nil if none
// exists. A stored payload that fails to parse is treated as absent, not
// fatal; it is logged and skipped.
func (v *Vault) Get(listing auction.ListingID, bidder common.Address) (*Record, error) {
	v.lk.Lock()
	defer v.lk.Unlock()

	key := recordKey(listing, bidder)
	val, err := v.store.Get(key)
	if errors.Is(err, ds.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: getting record: %v", auction.ErrPersistenceUnavailable, err)
	}
	r, err := decode(mask(key, val))
	if err != nil {
		log.Warnf("corrupt pending bid at %s, treating as absent: %v", key, err)
		return nil, nil
	}
	return r, nil
}

// Erase removes the pending sealed bid for (listing, bidder). Erasing an
// absent record is not an error.
func (v *Vault) Erase(listing auction.ListingID, bidder common.Address) error {
	v.lk.Lock()
	defer v.lk.Unlock()

	key := recordKey(listing, bidder)
	if err := v.store.Delete(key); err != nil && !errors.Is(err, ds.ErrNotFound) {
		return fmt.Errorf("%w: deleting record: %v", auction.ErrPersistenceUnavailable, err)
	}
	return nil
}

// PrepareBid generates a nonce, computes the commitment for amount, and
// persists the pending bid in one step. It returns the saved record and the
// commit hash the bidder should submit.
func (v *Vault) PrepareBid(
	listing auction.ListingID,
	bidder common.Address,
	amount *big.Int,
	now time.Time,
) (*Record, common.Hash, error) {
	if err := auction.ValidateAmount(amount); err != nil {
		return nil, common.Hash{}, fmt.Errorf("%w: %v", auction.ErrInvalidAmount, err)
	}
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, common.Hash{}, err
	}
	r := Record{
		Listing:   listing,
		Bidder:    bidder,
		Amount:    amount,
		Nonce:     nonce,
		CreatedAt: now,
	}
	if err := v.Put(r); err != nil {
		return nil, common.Hash{}, err
	}
	return &r, ComputeCommitment(amount, nonce, bidder), nil
}

func recordKey(listing auction.ListingID, bidder common.Address) ds.Key {
	return dsPrefix.ChildString(string(listing)).ChildString(strings.ToLower(bidder.Hex()))
}

// mask applies a reversible keyed XOR so payloads are not plain gob on disk.
// It is its own inverse and provides obfuscation only, no confidentiality.
func mask(key ds.Key, payload []byte) []byte {
	pad := crypto.Keccak256([]byte(key.String()))
	out := make([]byte, len(payload))
	for i := range payload {
		out[i] = payload[i] ^ pad[i%len(pad)]
	}
	return out
}

func encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(v []byte) (r *Record, err error) {
	dec := gob.NewDecoder(bytes.NewReader(v))
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	return r, nil
}
