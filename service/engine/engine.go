// Package engine drives the auction state machine: creation, price quoting,
// bidding, commit-reveal and settlement for tokenized domain-name listings.
package engine

import (
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	"github.com/namebid/auctiond/lib/auction"
	"github.com/namebid/auctiond/lib/commitment"
	"github.com/namebid/auctiond/lib/dshelper/txndswrap"
	"github.com/namebid/auctiond/lib/eligibility"
	"github.com/oklog/ulid/v2"
	dsextensions "github.com/textileio/go-datastore-extensions"
	golog "github.com/textileio/go-log/v2"
)

var (
	log = golog.Logger("auctiond/engine")

	// dsPrefix is the prefix for auctions.
	// Structure: /auctions/<auction_id> -> Auction.
	dsPrefix = ds.NewKey("/auctions")
)

const (
	// defaultListLimit is the default list page size.
	defaultListLimit = 10
	// maxListLimit is the max list page size.
	maxListLimit = 1000
)

// Config customizes engine behavior.
type Config struct {
	// ExtensionCap bounds the number of anti-sniping extensions applied to a
	// single auction. Zero means uncapped.
	ExtensionCap int
}

// Engine holds auctions in a datastore and applies all state transitions.
// Per-auction locking serializes writers; time is always supplied by the
// caller so behavior is deterministic and testable.
type Engine struct {
	store txndswrap.TxnDatastore
	vault *commitment.Vault
	conf  Config

	lkMap   sync.Mutex
	locks   map[auction.ID]*sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New returns a new Engine. vault may be nil if the process does not keep
// pending sealed bids locally.
func New(store txndswrap.TxnDatastore, vault *commitment.Vault, conf Config) *Engine {
	return &Engine{
		store: store,
		vault: vault,
		conf:  conf,
		locks: make(map[auction.ID]*sync.Mutex),
	}
}

func (e *Engine) lockFor(id auction.ID) *sync.Mutex {
	e.lkMap.Lock()
	defer e.lkMap.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

func (e *Engine) newID(now time.Time) auction.ID {
	e.lkMap.Lock()
	defer e.lkMap.Unlock()
	if e.entropy == nil {
		e.entropy = ulid.Monotonic(rand.Reader, 0)
	}
	id, err := ulid.New(ulid.Timestamp(now.UTC()), e.entropy)
	if errors.Is(err, ulid.ErrMonotonicOverflow) {
		e.entropy = nil
		id = ulid.MustNew(ulid.Timestamp(now.UTC()), ulid.Monotonic(rand.Reader, 0))
	} else if err != nil {
		panic(fmt.Errorf("generating id: %v", err))
	}
	return auction.ID(strings.ToLower(id.String()))
}

// CreateAuction validates and persists a new auction definition. The initial
// status is derived from now against the configured time windows. If a.ID is
// empty a new id is generated.
func (e *Engine) CreateAuction(a auction.Auction, now time.Time) (*auction.Auction, error) {
	if a.Status != auction.StatusUnspecified {
		return nil, fmt.Errorf("%w: initial status must be unspecified", auction.ErrInvalidInput)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", auction.ErrInvalidInput, err)
	}
	if a.ID == "" {
		a.ID = e.newID(now)
	}
	if a.Commitments == nil {
		a.Commitments = make(map[common.Address]auction.Commitment)
	}
	a.Status = auction.StatusUpcoming
	a.CreatedAt = now
	e.applyTime(&a, now)

	if err := e.saveAuction(e.store, &a, now); err != nil {
		return nil, err
	}
	log.Infof("saved auction %s (%s %s)", a.ID, a.Kind, a.Listing)
	return &a, nil
}

// GetAuction returns an auction by id with its status advanced to now.
// The advanced status is not persisted; reads never write.
func (e *Engine) GetAuction(id auction.ID, now time.Time) (*auction.Auction, error) {
	a, err := getAuction(e.store, id)
	if err != nil {
		return nil, err
	}
	e.applyTime(a, now)
	return a, nil
}

// Query is used to query for auctions.
type Query struct {
	Offset string
	Order  Order
	Limit  int
}

func (q Query) setDefaults() Query {
	if q.Limit == -1 {
		q.Limit = maxListLimit
	} else if q.Limit <= 0 {
		q.Limit = defaultListLimit
	} else if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return q
}

// Order specifies the order of list results.
// Default is descending by time created.
type Order int

const (
	// OrderDescending orders results decending.
	OrderDescending Order = iota
	// OrderAscending orders results ascending.
	OrderAscending
)

// ListAuctions lists auctions by applying a Query. It is a storage view:
// statuses are as last persisted, not advanced to the present. Use GetAuction
// for a time-advanced read.
func (e *Engine) ListAuctions(query Query) ([]*auction.Auction, error) {
	query = query.setDefaults()

	var (
		order dsq.Order
		seek  string
		limit = query.Limit
	)

	if len(query.Offset) != 0 {
		seek = dsPrefix.ChildString(query.Offset).String()
		limit++
	}

	switch query.Order {
	case OrderDescending:
		order = dsq.OrderByKeyDescending{}
		if len(seek) == 0 {
			// Seek to largest possible key and decend from there
			seek = dsPrefix.ChildString(
				strings.ToLower(ulid.MustNew(ulid.MaxTime(), nil).String())).String()
		}
	case OrderAscending:
		order = dsq.OrderByKey{}
	}

	results, err := e.store.QueryExtended(dsextensions.QueryExt{
		Query: dsq.Query{
			Prefix: dsPrefix.String(),
			Orders: []dsq.Order{order},
			Limit:  limit,
		},
		SeekPrefix: seek,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying auctions: %v", auction.ErrPersistenceUnavailable, err)
	}
	defer func() {
		if err := results.Close(); err != nil {
			log.Errorf("closing results: %v", err)
		}
	}()

	var list []*auction.Auction
	for res := range results.Next() {
		if res.Error != nil {
			return nil, fmt.Errorf("%w: getting next result: %v", auction.ErrPersistenceUnavailable, res.Error)
		}
		a, err := decode(res.Value)
		if err != nil {
			return nil, fmt.Errorf("decoding value: %v", err)
		}
		list = append(list, a)
	}

	// Remove seek from list
	if len(query.Offset) != 0 && len(list) > 0 {
		list = list[1:]
	}

	return list, nil
}

// CurrentPrice quotes the Dutch clearing price at now. The quote is pure;
// nothing is persisted.
func (e *Engine) CurrentPrice(id auction.ID, now time.Time) (*big.Int, error) {
	a, err := getAuction(e.store, id)
	if err != nil {
		return nil, err
	}
	e.applyTime(a, now)
	if a.Kind != auction.KindDutch {
		return nil, fmt.Errorf("%w: price quotes are dutch only", auction.ErrWrongKind)
	}
	if a.Status.Terminal() {
		return nil, fmt.Errorf("%w: status %s", auction.ErrAuctionFinalized, a.Status)
	}
	if a.Status != auction.StatusActive {
		return nil, fmt.Errorf("%w: status %s", auction.ErrAuctionNotActive, a.Status)
	}
	return dutchPrice(a.Dutch, now.Sub(a.StartTime)), nil
}

// AcceptDutchBid accepts the first Dutch bid at or above the live clearing
// price and settles the auction immediately. The winner pays the clearing
// price at now, not the offered amount.
func (e *Engine) AcceptDutchBid(
	id auction.ID,
	bidder common.Address,
	offered *big.Int,
	proof []common.Hash,
	now time.Time,
) (*auction.SettlementResult, error) {
	lk := e.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	txn, err := e.store.NewTransaction(false)
	if err != nil {
		return nil, fmt.Errorf("%w: creating txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	defer txn.Discard()

	a, err := getAuction(txn, id)
	if err != nil {
		return nil, err
	}
	e.applyTime(a, now)

	if a.Kind != auction.KindDutch {
		return nil, fmt.Errorf("%w: bids are dutch only", auction.ErrWrongKind)
	}
	if a.Status.Terminal() {
		return nil, fmt.Errorf("%w: status %s", auction.ErrAuctionFinalized, a.Status)
	}
	if a.Status != auction.StatusActive {
		return nil, fmt.Errorf("%w: status %s", auction.ErrAuctionNotActive, a.Status)
	}
	if err := auction.ValidateAmount(offered); err != nil {
		return nil, fmt.Errorf("%w: %v", auction.ErrInvalidAmount, err)
	}
	if err := e.checkEligibility(a, bidder, proof, now); err != nil {
		return nil, err
	}

	price := dutchPrice(a.Dutch, now.Sub(a.StartTime))
	if offered.Cmp(price) < 0 {
		return nil, fmt.Errorf("%w: offered %s, current price %s", auction.ErrBidTooLow, offered, price)
	}

	res := settle(a, &bidder, price, now)
	if err := e.saveAuction(txn, a, now); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	log.Infof("auction %s won by %s at price %s", a.ID, strings.ToLower(bidder.Hex()), price)
	return res, nil
}

// CommitSealedBid records a sealed-bid commitment with its deposit. A second
// commitment from the same bidder overwrites the first; last write wins.
func (e *Engine) CommitSealedBid(
	id auction.ID,
	bidder common.Address,
	commitHash common.Hash,
	deposit *big.Int,
	proof []common.Hash,
	now time.Time,
) error {
	lk := e.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	txn, err := e.store.NewTransaction(false)
	if err != nil {
		return fmt.Errorf("%w: creating txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	defer txn.Discard()

	a, err := getAuction(txn, id)
	if err != nil {
		return err
	}
	e.applyTime(a, now)

	if a.Kind != auction.KindSealed {
		return fmt.Errorf("%w: commitments are sealed only", auction.ErrWrongKind)
	}
	if a.Status.Terminal() {
		return fmt.Errorf("%w: status %s", auction.ErrAuctionFinalized, a.Status)
	}
	if a.Status != auction.StatusActive {
		return fmt.Errorf("%w: status %s", auction.ErrAuctionNotActive, a.Status)
	}
	if err := auction.ValidateAmount(deposit); err != nil {
		return fmt.Errorf("%w: deposit: %v", auction.ErrInvalidAmount, err)
	}
	if deposit.Cmp(a.Sealed.MinDeposit) < 0 {
		return fmt.Errorf("%w: deposit %s, minimum %s", auction.ErrDepositTooLow, deposit, a.Sealed.MinDeposit)
	}
	if err := e.checkEligibility(a, bidder, proof, now); err != nil {
		return err
	}

	a.Commitments[bidder] = auction.Commitment{
		Bidder:      bidder,
		CommitHash:  commitHash,
		Deposit:     new(big.Int).Set(deposit),
		Proof:       proof,
		CommittedAt: now,
	}
	e.maybeExtend(a, now)

	if err := e.saveAuction(txn, a, now); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("%w: committing txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	log.Infof("auction %s: commitment from %s", a.ID, strings.ToLower(bidder.Hex()))
	return nil
}

// RevealSealedBid opens a commitment during the reveal window. The revealed
// amount and nonce must recompute to the stored commit hash; eligibility is
// re-checked with the proof supplied at commit time. On success the local
// vault record for the bidder is erased. If every live commitment is now
// revealed the auction settles early.
func (e *Engine) RevealSealedBid(
	id auction.ID,
	bidder common.Address,
	amount *big.Int,
	nonce *big.Int,
	now time.Time,
) (*auction.Reveal, error) {
	lk := e.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	txn, err := e.store.NewTransaction(false)
	if err != nil {
		return nil, fmt.Errorf("%w: creating txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	defer txn.Discard()

	a, err := getAuction(txn, id)
	if err != nil {
		return nil, err
	}
	e.applyTime(a, now)

	if a.Kind != auction.KindSealed {
		return nil, fmt.Errorf("%w: reveals are sealed only", auction.ErrWrongKind)
	}
	if a.Status.Terminal() {
		return nil, fmt.Errorf("%w: status %s", auction.ErrAuctionFinalized, a.Status)
	}
	if a.Status != auction.StatusReveal {
		return nil, fmt.Errorf("%w: status %s", auction.ErrAuctionNotInReveal, a.Status)
	}
	c, ok := a.Commitments[bidder]
	if !ok {
		return nil, fmt.Errorf("%w: bidder %s", auction.ErrCommitmentNotFound, strings.ToLower(bidder.Hex()))
	}
	if c.Revealed {
		return nil, fmt.Errorf("%w: already revealed", auction.ErrCommitmentNotFound)
	}
	if err := auction.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("%w: %v", auction.ErrInvalidAmount, err)
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", auction.ErrInvalidAmount)
	}
	if err := auction.ValidateAmount(nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", auction.ErrInvalidAmount, err)
	}
	if !commitment.VerifyCommitment(amount, nonce, bidder, c.CommitHash) {
		log.Warnf("auction %s: reveal from %s does not match commitment", a.ID, strings.ToLower(bidder.Hex()))
		return nil, fmt.Errorf("%w: reveal does not open the stored commitment", auction.ErrCommitmentMismatch)
	}
	if err := e.checkEligibility(a, bidder, c.Proof, now); err != nil {
		return nil, err
	}

	r := auction.Reveal{
		Bidder:     bidder,
		Amount:     new(big.Int).Set(amount),
		CommitHash: c.CommitHash,
		RevealTime: now,
	}
	a.Reveals = append(a.Reveals, r)
	c.Revealed = true
	a.Commitments[bidder] = c

	if allRevealed(a) {
		settleSealed(a, now)
	}

	if err := e.saveAuction(txn, a, now); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	// The pending bid is dropped only after the reveal is durably recorded.
	if e.vault != nil {
		if err := e.vault.Erase(a.Listing, bidder); err != nil {
			log.Errorf("auction %s: erasing pending bid for %s: %v", a.ID, strings.ToLower(bidder.Hex()), err)
		}
	}
	log.Infof("auction %s: reveal from %s for %s", a.ID, strings.ToLower(bidder.Hex()), amount)
	return &r, nil
}

// Settle finalizes an auction once its settlement conditions hold at now.
// Settling an already settled auction returns the recorded result unchanged.
func (e *Engine) Settle(id auction.ID, now time.Time) (*auction.SettlementResult, error) {
	lk := e.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	txn, err := e.store.NewTransaction(false)
	if err != nil {
		return nil, fmt.Errorf("%w: creating txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	defer txn.Discard()

	a, err := getAuction(txn, id)
	if err != nil {
		return nil, err
	}
	if a.Status == auction.StatusCanceled {
		return nil, fmt.Errorf("%w: auction canceled", auction.ErrAuctionFinalized)
	}
	if a.Status == auction.StatusSettled {
		return resultOf(a), nil
	}

	e.applyTime(a, now)
	if a.Status != auction.StatusSettled {
		return nil, fmt.Errorf("%w: status %s", auction.ErrSettlementNotDue, a.Status)
	}

	if err := e.saveAuction(txn, a, now); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	res := resultOf(a)
	if res.NoWinner() {
		log.Infof("auction %s settled with no winner", a.ID)
	} else {
		log.Infof("auction %s settled: winner %s amount %s", a.ID, strings.ToLower(res.Winner.Hex()), res.FinalAmount)
	}
	return res, nil
}

// CancelAuction cancels an auction that has not settled. Cancellation is
// terminal; any live commitments are simply released with the auction.
func (e *Engine) CancelAuction(id auction.ID, now time.Time) error {
	lk := e.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	txn, err := e.store.NewTransaction(false)
	if err != nil {
		return fmt.Errorf("%w: creating txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	defer txn.Discard()

	a, err := getAuction(txn, id)
	if err != nil {
		return err
	}
	e.applyTime(a, now)
	if a.Status.Terminal() {
		return fmt.Errorf("%w: status %s", auction.ErrAuctionFinalized, a.Status)
	}

	a.Status = auction.StatusCanceled
	if err := e.saveAuction(txn, a, now); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("%w: committing txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	log.Infof("auction %s canceled", a.ID)
	return nil
}

// HealthCheck checks that the underlying datastore is responsive.
func (e *Engine) HealthCheck() error {
	txn, err := e.store.NewTransaction(true)
	if err != nil {
		return fmt.Errorf("%w: creating txn: %v", auction.ErrPersistenceUnavailable, err)
	}
	defer txn.Discard()
	if _, err := txn.Has(dsPrefix); err != nil {
		return fmt.Errorf("%w: querying datastore: %v", auction.ErrPersistenceUnavailable, err)
	}
	return nil
}

// applyTime advances the auction's status to what it should be at now,
// settling when settlement conditions hold. It reports whether anything
// changed. Time only moves forward; terminal statuses never change.
func (e *Engine) applyTime(a *auction.Auction, now time.Time) bool {
	if a.Status.Terminal() {
		return false
	}
	changed := false
	if a.Status == auction.StatusUpcoming && !now.Before(a.StartTime) {
		a.Status = auction.StatusActive
		changed = true
	}
	if a.Status == auction.StatusActive && !now.Before(a.EndTime) {
		switch a.Kind {
		case auction.KindDutch:
			// Expired with no accepted bid.
			settle(a, nil, nil, now)
		case auction.KindSealed:
			a.Status = auction.StatusReveal
		}
		changed = true
	}
	if a.Status == auction.StatusReveal && (!now.Before(a.RevealEnd) || allRevealed(a)) {
		settleSealed(a, now)
		changed = true
	}
	return changed
}

// maybeExtend pushes the auction deadline when a qualifying bid lands inside
// the anti-sniping window. Every late bid restarts the clock; for sealed
// auctions the reveal window shifts by the same delta so its length is
// preserved.
func (e *Engine) maybeExtend(a *auction.Auction, now time.Time) bool {
	if a.AntiSnipingExtension <= 0 {
		return false
	}
	if e.conf.ExtensionCap > 0 && a.Extensions >= e.conf.ExtensionCap {
		return false
	}
	if now.Before(a.EndTime) && a.EndTime.Sub(now) < a.AntiSnipingExtension {
		delta := now.Add(a.AntiSnipingExtension).Sub(a.EndTime)
		a.EndTime = a.EndTime.Add(delta)
		if a.Kind == auction.KindSealed {
			a.RevealStart = a.RevealStart.Add(delta)
			a.RevealEnd = a.RevealEnd.Add(delta)
		}
		a.Extensions++
		log.Debugf("auction %s: deadline extended by %s (%d total)", a.ID, delta, a.Extensions)
		return true
	}
	return false
}

func (e *Engine) checkEligibility(a *auction.Auction, bidder common.Address, proof []common.Hash, now time.Time) error {
	switch rule := eligibility.Decode(a.Eligibility).(type) {
	case eligibility.None:
		return nil
	case eligibility.Whitelist:
		if !rule.Contains(bidder) {
			return fmt.Errorf("%w: %s is not whitelisted", auction.ErrNotEligible, strings.ToLower(bidder.Hex()))
		}
		return nil
	case eligibility.MerkleRule:
		if rule.Expiry != nil && rule.Expiry.Sign() > 0 &&
			big.NewInt(now.Unix()).Cmp(rule.Expiry) > 0 {
			return fmt.Errorf("%w: eligibility rule expired", auction.ErrNotEligible)
		}
		if !eligibility.VerifyProof(rule.MerkleRoot, bidder, proof) {
			log.Warnf("auction %s: invalid proof from %s", a.ID, strings.ToLower(bidder.Hex()))
			return fmt.Errorf("%w: proof does not verify against allow-list root", auction.ErrInvalidProof)
		}
		return nil
	case eligibility.Unknown:
		// Fail closed on payloads this version cannot interpret.
		return fmt.Errorf("%w: unrecognized eligibility payload", auction.ErrNotEligible)
	default:
		return fmt.Errorf("%w: unhandled eligibility rule %T", auction.ErrNotEligible, rule)
	}
}

// allRevealed reports whether every live commitment has been opened.
func allRevealed(a *auction.Auction) bool {
	for _, c := range a.Commitments {
		if !c.Revealed {
			return false
		}
	}
	return true
}

// settle marks the auction settled. winner is nil for a no-winner outcome;
// otherwise amount is what the winner pays and fees are carved from it.
func settle(a *auction.Auction, winner *common.Address, amount *big.Int, now time.Time) *auction.SettlementResult {
	a.Status = auction.StatusSettled
	a.SettledAt = now
	if winner != nil {
		w := *winner
		a.Winner = &w
		a.FinalAmount = new(big.Int).Set(amount)
		a.ProtocolFee, a.CreatorFee = feesOf(amount, a.Fees)
	}
	return resultOf(a)
}

// settleSealed settles a sealed auction from its reveals. The highest amount
// wins; ties go to the earliest reveal. Zero reveals settle with no winner.
func settleSealed(a *auction.Auction, now time.Time) *auction.SettlementResult {
	var best *auction.Reveal
	for i := range a.Reveals {
		r := &a.Reveals[i]
		if best == nil || r.Amount.Cmp(best.Amount) > 0 {
			best = r
		}
	}
	if best == nil {
		return settle(a, nil, nil, now)
	}
	return settle(a, &best.Bidder, best.Amount, now)
}

// feesOf splits amount into protocol and creator fees, each rounded down.
// The seller keeps the remainder, so rounding dust always favors the seller.
func feesOf(amount *big.Int, fees auction.Fees) (protocol, creator *big.Int) {
	bps := big.NewInt(10000)
	protocol = new(big.Int).Mul(amount, new(big.Int).SetUint64(fees.ProtocolBps))
	protocol.Div(protocol, bps)
	creator = new(big.Int).Mul(amount, new(big.Int).SetUint64(fees.CreatorBps))
	creator.Div(creator, bps)
	return protocol, creator
}

func resultOf(a *auction.Auction) *auction.SettlementResult {
	return &auction.SettlementResult{
		Winner:      a.Winner,
		FinalAmount: a.FinalAmount,
		ProtocolFee: a.ProtocolFee,
		CreatorFee:  a.CreatorFee,
	}
}

func (e *Engine) saveAuction(writer ds.Write, a *auction.Auction, now time.Time) error {
	a.UpdatedAt = now
	val, err := encode(a)
	if err != nil {
		return fmt.Errorf("encoding auction: %v", err)
	}
	if err := writer.Put(dsPrefix.ChildString(string(a.ID)), val); err != nil {
		return fmt.Errorf("%w: putting auction: %v", auction.ErrPersistenceUnavailable, err)
	}
	return nil
}

func getAuction(reader ds.Read, id auction.ID) (*auction.Auction, error) {
	val, err := reader.Get(dsPrefix.ChildString(string(id)))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", auction.ErrAuctionNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("%w: getting key: %v", auction.ErrPersistenceUnavailable, err)
	}
	a, err := decode(val)
	if err != nil {
		return nil, fmt.Errorf("decoding value: %v", err)
	}
	return a, nil
}

func encode(a *auction.Auction) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(v []byte) (a *auction.Auction, err error) {
	dec := gob.NewDecoder(bytes.NewReader(v))
	if err := dec.Decode(&a); err != nil {
		return nil, err
	}
	if a.Commitments == nil {
		a.Commitments = make(map[common.Address]auction.Commitment)
	}
	return a, nil
}
