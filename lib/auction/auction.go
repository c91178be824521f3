package auction

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ID is a unique identifier for an Auction.
type ID string

// ListingID identifies the tokenized domain-name listing an auction sells.
type ListingID string

// MaxAmountBits is the wire width of every amount and nonce.
const MaxAmountBits = 256

// Kind is the auction mechanism.
type Kind int

const (
	// KindUnspecified indicates an invalid auction kind.
	KindUnspecified Kind = iota
	// KindDutch is a continuous-descending price auction; the first bid at or
	// above the live price wins.
	KindDutch
	// KindSealed is a commit-reveal auction; the highest valid reveal wins.
	KindSealed
)

var kindStrings = map[Kind]string{
	KindUnspecified: "unspecified",
	KindDutch:       "dutch",
	KindSealed:      "sealed",
}

var kindByString map[string]Kind

// String returns a string-encoded kind.
func (k Kind) String() string {
	if s, exists := kindStrings[k]; exists {
		return s
	}
	return "invalid"
}

// KindByString finds a kind by its string representation, or errors if the
// kind does not exist.
func KindByString(s string) (Kind, error) {
	if k, exists := kindByString[s]; exists {
		return k, nil
	}
	return -1, errors.New("invalid auction kind")
}

// Curve selects the Dutch price interpolation shape.
type Curve int

const (
	// CurveLinear descends at a constant rate from start to floor.
	CurveLinear Curve = iota
	// CurveQuadratic is a quadratic ease-out; it descends fast early and
	// flattens toward the floor, hitting the same endpoints as linear.
	CurveQuadratic
)

var curveStrings = map[Curve]string{
	CurveLinear:    "linear",
	CurveQuadratic: "quadratic",
}

var curveByString map[string]Curve

// String returns a string-encoded curve.
func (c Curve) String() string {
	if s, exists := curveStrings[c]; exists {
		return s
	}
	return "invalid"
}

// CurveByString finds a curve by its string representation, or errors if the
// curve does not exist.
func CurveByString(s string) (Curve, error) {
	if c, exists := curveByString[s]; exists {
		return c, nil
	}
	return -1, errors.New("invalid price curve")
}

// Status is the lifecycle status of an Auction.
type Status int

const (
	// StatusUnspecified indicates the initial or invalid status of an auction.
	StatusUnspecified Status = iota
	// StatusUpcoming indicates the auction has not opened for bidding yet.
	StatusUpcoming
	// StatusActive indicates the auction is open for bids (Dutch) or
	// commitments (sealed).
	StatusActive
	// StatusReveal indicates a sealed auction is in its reveal window.
	StatusReveal
	// StatusSettled indicates the auction is final; a winner may or may not exist.
	StatusSettled
	// StatusCanceled indicates an operator canceled the auction before settlement.
	StatusCanceled
)

var statusStrings = map[Status]string{
	StatusUnspecified: "unspecified",
	StatusUpcoming:    "upcoming",
	StatusActive:      "active",
	StatusReveal:      "reveal",
	StatusSettled:     "settled",
	StatusCanceled:    "canceled",
}

var statusByString map[string]Status

func init() {
	statusByString = make(map[string]Status)
	for st, s := range statusStrings {
		statusByString[s] = st
	}
	kindByString = make(map[string]Kind)
	for k, s := range kindStrings {
		kindByString[s] = k
	}
	curveByString = make(map[string]Curve)
	for c, s := range curveStrings {
		curveByString[s] = c
	}
}

// String returns a string-encoded status.
func (as Status) String() string {
	if s, exists := statusStrings[as]; exists {
		return s
	}
	return "invalid"
}

// StatusByString finds a status by its string representation, or errors if
// the status does not exist.
func StatusByString(s string) (Status, error) {
	if st, exists := statusByString[s]; exists {
		return st, nil
	}
	return -1, errors.New("invalid auction status")
}

// Terminal reports whether the status admits no further transitions.
func (as Status) Terminal() bool {
	return as == StatusSettled || as == StatusCanceled
}

// DutchParams configures a continuous-descending price auction.
type DutchParams struct {
	// StartPrice in the smallest currency unit.
	StartPrice *big.Int
	// FloorPrice in the smallest currency unit. The price never descends below it.
	FloorPrice *big.Int
	// Duration of the descent from StartPrice to FloorPrice.
	Duration time.Duration
	// Curve is the interpolation shape between the two endpoints.
	Curve Curve
}

// Validate ensures DutchParams are valid.
func (p *DutchParams) Validate() error {
	if err := ValidateAmount(p.StartPrice); err != nil {
		return fmt.Errorf("start price: %v", err)
	}
	if err := ValidateAmount(p.FloorPrice); err != nil {
		return fmt.Errorf("floor price: %v", err)
	}
	if p.StartPrice.Cmp(p.FloorPrice) < 0 {
		return errors.New("start price must be greater than or equal to floor price")
	}
	if p.Duration <= 0 {
		return errors.New("duration must be greater than zero")
	}
	if p.Curve != CurveLinear && p.Curve != CurveQuadratic {
		return errors.New("invalid curve")
	}
	return nil
}

// SealedParams configures a commit-reveal auction.
type SealedParams struct {
	// MinDeposit is the smallest deposit accepted with a commitment.
	MinDeposit *big.Int
	// MinIncrementBps is the minimum increment over prior visible bids in
	// open formats. It is carried for interoperability but not enforced at
	// reveal time; sealed reveals only guard against non-positive amounts.
	MinIncrementBps uint64
}

// Validate ensures SealedParams are valid.
func (p *SealedParams) Validate() error {
	if err := ValidateAmount(p.MinDeposit); err != nil {
		return fmt.Errorf("min deposit: %v", err)
	}
	return nil
}

// Fees are protocol and creator fees in basis points of the final amount.
type Fees struct {
	ProtocolBps uint64
	CreatorBps  uint64
}

// Commitment is a sealed-bid commitment recorded by the engine. The amount
// stays hidden until reveal; only its hash binds the bidder.
type Commitment struct {
	Bidder     common.Address
	CommitHash common.Hash
	Deposit    *big.Int
	// Proof is the whitelist proof supplied at commit time. It is replayed
	// for the eligibility re-check at reveal.
	Proof       []common.Hash
	CommittedAt time.Time
	Revealed    bool
}

// Reveal is a successfully opened sealed-bid commitment. IsWinning is not
// stored here; it is derived at settlement.
type Reveal struct {
	Bidder     common.Address
	Amount     *big.Int
	CommitHash common.Hash
	RevealTime time.Time
}

// SettlementResult is the outcome of settling an auction. Winner is nil when
// the auction settled without a winner.
type SettlementResult struct {
	Winner      *common.Address
	FinalAmount *big.Int
	ProtocolFee *big.Int
	CreatorFee  *big.Int
}

// NoWinner reports whether settlement completed without a winner.
func (r *SettlementResult) NoWinner() bool {
	return r.Winner == nil
}

// Auction defines the core auction model.
type Auction struct {
	ID      ID
	Listing ListingID
	Kind    Kind
	Status  Status
	Seller  common.Address

	StartTime time.Time
	EndTime   time.Time
	// RevealStart and RevealEnd bound the reveal window (sealed only).
	// RevealStart equals EndTime at creation and both shift together under
	// anti-sniping extensions.
	RevealStart time.Time
	RevealEnd   time.Time

	// AntiSnipingExtension pushes EndTime forward when a qualifying bid
	// lands within that duration of the deadline. Zero disables extensions.
	AntiSnipingExtension time.Duration
	// Extensions counts anti-sniping extensions applied so far.
	Extensions int

	Fees Fees
	// Eligibility is the raw eligibility payload; empty means open to all.
	Eligibility []byte

	// Exactly one of Dutch and Sealed is populated, matching Kind.
	Dutch  *DutchParams
	Sealed *SealedParams

	// Commitments are live sealed-bid commitments keyed by bidder.
	Commitments map[common.Address]Commitment
	// Reveals are successfully opened commitments in reveal order.
	Reveals []Reveal

	// Settlement fields, populated once Status is StatusSettled.
	Winner      *common.Address
	FinalAmount *big.Int
	ProtocolFee *big.Int
	CreatorFee  *big.Int
	SettledAt   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate ensures the auction definition is well formed.
func (a *Auction) Validate() error {
	if a.Listing == "" {
		return errors.New("listing id is empty")
	}
	if a.Kind != KindDutch && a.Kind != KindSealed {
		return errors.New("invalid auction kind")
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return errors.New("start and end times must be set")
	}
	if !a.EndTime.After(a.StartTime) {
		return errors.New("end time must be after start time")
	}
	if a.AntiSnipingExtension < 0 {
		return errors.New("anti-sniping extension must not be negative")
	}
	if a.Fees.ProtocolBps+a.Fees.CreatorBps > 10000 {
		return errors.New("combined fees exceed 10000 bps")
	}
	switch a.Kind {
	case KindDutch:
		if a.Dutch == nil || a.Sealed != nil {
			return errors.New("dutch auction requires exactly the dutch parameter set")
		}
		if err := a.Dutch.Validate(); err != nil {
			return fmt.Errorf("invalid dutch parameters: %v", err)
		}
		if a.EndTime.Sub(a.StartTime) != a.Dutch.Duration {
			return errors.New("dutch duration must equal end time minus start time")
		}
	case KindSealed:
		if a.Sealed == nil || a.Dutch != nil {
			return errors.New("sealed auction requires exactly the sealed parameter set")
		}
		if err := a.Sealed.Validate(); err != nil {
			return fmt.Errorf("invalid sealed parameters: %v", err)
		}
		if !a.RevealStart.Equal(a.EndTime) {
			return errors.New("reveal start must equal end time")
		}
		if !a.RevealEnd.After(a.RevealStart) {
			return errors.New("reveal end must be after reveal start")
		}
	}
	return nil
}

// ValidateAmount ensures an amount is present, non-negative and fits the
// 256-bit wire width.
func ValidateAmount(amount *big.Int) error {
	if amount == nil {
		return errors.New("amount is nil")
	}
	if amount.Sign() < 0 {
		return errors.New("amount must not be negative")
	}
	if amount.BitLen() > MaxAmountBits {
		return errors.New("amount exceeds 256 bits")
	}
	return nil
}

// ParseAmount parses a base-10 amount in the smallest currency unit.
func ParseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parsing amount %q", s)
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// ParseAddress parses a 20-byte address from its case-insensitive hex string
// form, canonicalizing to the byte representation used everywhere else.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("parsing address %q", s)
	}
	return common.HexToAddress(s), nil
}
