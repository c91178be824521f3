// Package service runs the auction operator daemon: it hosts the engine,
// announces auctions over libp2p pubsub, handles bid messages and drives
// time-based settlement.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	core "github.com/libp2p/go-libp2p-core/peer"
	"github.com/namebid/auctiond/lib/auction"
	"github.com/namebid/auctiond/lib/commitment"
	"github.com/namebid/auctiond/lib/dshelper/txndswrap"
	"github.com/namebid/auctiond/lib/finalizer"
	"github.com/namebid/auctiond/service/engine"
	rpc "github.com/textileio/go-libp2p-pubsub-rpc"
	"github.com/textileio/go-libp2p-pubsub-rpc/peer"
	golog "github.com/textileio/go-log/v2"
	"golang.org/x/sync/semaphore"
)

var (
	log = golog.Logger("auctiond/service")

	// publishTimeout bounds how long event publishing may block a handler.
	publishTimeout = time.Second * 10

	// defaultTickInterval is how often the settlement clock fires when the
	// config leaves it unset.
	defaultTickInterval = time.Second * 10
)

// Bid message types carried on an auction's bids topic.
const (
	// MessageDutchBid offers to buy at or above the live Dutch price.
	MessageDutchBid = "dutch_bid"
	// MessageCommit submits a sealed-bid commitment with a deposit.
	MessageCommit = "commit"
	// MessageReveal opens a previously submitted commitment.
	MessageReveal = "reveal"
)

// BidMessage is the JSON envelope bidders publish on an auction's bids topic.
// Amounts are base-10 strings in the smallest currency unit; hashes and
// addresses are 0x-prefixed hex.
type BidMessage struct {
	Type       string   `json:"type"`
	AuctionID  string   `json:"auction_id"`
	Bidder     string   `json:"bidder"`
	Amount     string   `json:"amount,omitempty"`
	Deposit    string   `json:"deposit,omitempty"`
	Nonce      string   `json:"nonce,omitempty"`
	CommitHash string   `json:"commit_hash,omitempty"`
	Proof      []string `json:"proof,omitempty"`
}

// AuctionMessage announces a new auction on the global auctions topic.
type AuctionMessage struct {
	ID          string `json:"id"`
	Listing     string `json:"listing"`
	Kind        string `json:"kind"`
	Seller      string `json:"seller"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	RevealEnd   string `json:"reveal_end,omitempty"`
	StartPrice  string `json:"start_price,omitempty"`
	FloorPrice  string `json:"floor_price,omitempty"`
	Curve       string `json:"curve,omitempty"`
	MinDeposit  string `json:"min_deposit,omitempty"`
	ProtocolBps uint64 `json:"protocol_bps"`
	CreatorBps  uint64 `json:"creator_bps"`
}

// EventMessage reports a settlement or cancellation on the operator's events
// topic. Winner is empty for a no-winner settlement.
type EventMessage struct {
	Type        string `json:"type"`
	AuctionID   string `json:"auction_id"`
	Winner      string `json:"winner,omitempty"`
	FinalAmount string `json:"final_amount,omitempty"`
	ProtocolFee string `json:"protocol_fee,omitempty"`
	CreatorFee  string `json:"creator_fee,omitempty"`
}

// Config defines params for Service configuration.
type Config struct {
	Peer peer.Config
	// TickInterval is the settlement clock period.
	TickInterval time.Duration
	// ExtensionCap bounds anti-sniping extensions per auction; zero is uncapped.
	ExtensionCap int
	// ConcurrentSettlements bounds settlements processed per tick.
	ConcurrentSettlements int
}

// Service is the auction operator daemon.
type Service struct {
	peer       *peer.Peer
	engine     *engine.Engine
	vault      *commitment.Vault
	subscribed bool

	auctionsTopic *rpc.Topic
	eventsTopic   *rpc.Topic

	tickInterval time.Duration
	semSettle    *semaphore.Weighted

	ctx       context.Context
	finalizer *finalizer.Finalizer
	lk        sync.Mutex

	topicsLk  sync.Mutex
	bidTopics map[auction.ID]*rpc.Topic
}

// New returns a new Service backed by store.
func New(conf Config, store txndswrap.TxnDatastore) (*Service, error) {
	fin := finalizer.NewFinalizer()
	ctx, cancel := context.WithCancel(context.Background())
	fin.Add(finalizer.NewContextCloser(cancel))

	p, err := peer.New(conf.Peer)
	if err != nil {
		return nil, fin.Cleanupf("creating peer: %v", err)
	}
	fin.Add(p)

	if conf.TickInterval <= 0 {
		conf.TickInterval = defaultTickInterval
	}
	if conf.ConcurrentSettlements <= 0 {
		conf.ConcurrentSettlements = 8
	}

	vault := commitment.NewVault(store)
	eng := engine.New(store, vault, engine.Config{ExtensionCap: conf.ExtensionCap})

	srv := &Service{
		peer:         p,
		engine:       eng,
		vault:        vault,
		tickInterval: conf.TickInterval,
		semSettle:    semaphore.NewWeighted(int64(conf.ConcurrentSettlements)),
		ctx:          ctx,
		finalizer:    fin,
		bidTopics:    make(map[auction.ID]*rpc.Topic),
	}
	go srv.run()
	log.Info("service started")
	return srv, nil
}

// Close the service.
func (s *Service) Close() error {
	log.Info("service was shutdown")
	return s.finalizer.Cleanup(nil)
}

// Subscribe joins the operator's pubsub topics and re-joins the bids topic of
// every open auction. If bootstrap is true, the peer will dial the configured
// bootstrap addresses first.
func (s *Service) Subscribe(bootstrap bool) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if s.subscribed {
		return nil
	}

	if bootstrap {
		s.peer.Bootstrap()
	}

	// The global auctions topic carries our announcements; we publish only.
	auctions, err := s.peer.NewTopic(s.ctx, auction.Topic, false)
	if err != nil {
		return fmt.Errorf("creating auctions topic: %v", err)
	}
	auctions.SetEventHandler(s.eventHandler)

	events, err := s.peer.NewTopic(s.ctx, auction.EventsTopic(s.peer.Host().ID()), false)
	if err != nil {
		if err := auctions.Close(); err != nil {
			log.Errorf("closing auctions topic: %v", err)
		}
		return fmt.Errorf("creating events topic: %v", err)
	}
	events.SetEventHandler(s.eventHandler)

	s.auctionsTopic = auctions
	s.eventsTopic = events
	s.finalizer.Add(auctions, events)
	s.finalizer.AddFn(s.closeBidTopics)

	// Rejoin bids topics for auctions that were open at last shutdown.
	list, err := s.engine.ListAuctions(engine.Query{Limit: -1, Order: engine.OrderAscending})
	if err != nil {
		return fmt.Errorf("listing auctions: %v", err)
	}
	for _, a := range list {
		if a.Status.Terminal() {
			continue
		}
		if err := s.joinBidsTopic(a.ID); err != nil {
			return fmt.Errorf("joining bids topic for %s: %v", a.ID, err)
		}
	}

	log.Info("subscribed to the auction feed")
	s.subscribed = true
	return nil
}

// PeerInfo returns the public information of the operator peer.
func (s *Service) PeerInfo() (*peer.Info, error) {
	return s.peer.Info()
}

// CreateAuction validates and stores a new auction, joins its bids topic and
// announces it on the global auctions topic.
func (s *Service) CreateAuction(a auction.Auction) (*auction.Auction, error) {
	saved, err := s.engine.CreateAuction(a, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.joinBidsTopic(saved.ID); err != nil {
		log.Errorf("joining bids topic for %s: %v", saved.ID, err)
	}
	s.announce(saved)
	return saved, nil
}

// GetAuction returns an auction by id.
func (s *Service) GetAuction(id auction.ID) (*auction.Auction, error) {
	return s.engine.GetAuction(id, time.Now())
}

// ListAuctions lists auctions by applying an engine.Query.
func (s *Service) ListAuctions(query engine.Query) ([]*auction.Auction, error) {
	return s.engine.ListAuctions(query)
}

// CurrentPrice quotes the live Dutch price of an auction.
func (s *Service) CurrentPrice(id auction.ID) (*big.Int, error) {
	return s.engine.CurrentPrice(id, time.Now())
}

// CancelAuction cancels an auction that has not settled and publishes a
// cancellation event.
func (s *Service) CancelAuction(id auction.ID) error {
	if err := s.engine.CancelAuction(id, time.Now()); err != nil {
		return err
	}
	s.publishEvent(EventMessage{Type: "canceled", AuctionID: string(id)})
	s.leaveBidsTopic(id)
	return nil
}

// Settle attempts settlement of an auction now.
func (s *Service) Settle(id auction.ID) (*auction.SettlementResult, error) {
	res, err := s.engine.Settle(id, time.Now())
	if err != nil {
		return nil, err
	}
	s.publishSettled(id, res)
	s.leaveBidsTopic(id)
	return res, nil
}

// PrepareBid generates a nonce for a sealed bid, stores the pending bid in
// the local vault and returns the commit hash to submit.
func (s *Service) PrepareBid(
	listing auction.ListingID,
	bidder common.Address,
	amount *big.Int,
) (*commitment.Record, common.Hash, error) {
	return s.vault.PrepareBid(listing, bidder, amount, time.Now())
}

// RevealStored opens a commitment using the pending bid kept in the local
// vault for the auction's listing.
func (s *Service) RevealStored(id auction.ID, bidder common.Address) (*auction.Reveal, error) {
	a, err := s.engine.GetAuction(id, time.Now())
	if err != nil {
		return nil, err
	}
	r, err := s.vault.Get(a.Listing, bidder)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: no pending bid for %s", auction.ErrCommitmentNotFound, a.Listing)
	}
	return s.engine.RevealSealedBid(id, bidder, r.Amount, r.Nonce, time.Now())
}

// HealthCheck checks the engine's datastore.
func (s *Service) HealthCheck() error {
	return s.engine.HealthCheck()
}

func (s *Service) eventHandler(from core.ID, topic string, msg []byte) {
	log.Debugf("%s peer event: %s %s", topic, from, msg)
}

// bidsHandler dispatches a bid message to the engine and acks with the
// operation result. Rejections are returned to the publisher as errors.
func (s *Service) bidsHandler(from core.ID, topic string, msg []byte) ([]byte, error) {
	log.Debugf("%s received bid message from %s", topic, from)

	var m BidMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling message: %v", err)
	}
	id := auction.ID(m.AuctionID)
	bidder, err := auction.ParseAddress(m.Bidder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auction.ErrInvalidAmount, err)
	}
	proof := make([]common.Hash, len(m.Proof))
	for i, p := range m.Proof {
		proof[i] = common.HexToHash(p)
	}
	now := time.Now()

	switch m.Type {
	case MessageDutchBid:
		amount, err := auction.ParseAmount(m.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", auction.ErrInvalidAmount, err)
		}
		res, err := s.engine.AcceptDutchBid(id, bidder, amount, proof, now)
		if err != nil {
			logRejected(id, m.Type, from, err)
			return nil, err
		}
		s.publishSettled(id, res)
		s.leaveBidsTopic(id)
		return json.Marshal(res)
	case MessageCommit:
		deposit, err := auction.ParseAmount(m.Deposit)
		if err != nil {
			return nil, fmt.Errorf("%w: deposit: %v", auction.ErrInvalidAmount, err)
		}
		if err := s.engine.CommitSealedBid(id, bidder, common.HexToHash(m.CommitHash), deposit, proof, now); err != nil {
			logRejected(id, m.Type, from, err)
			return nil, err
		}
		return []byte(m.CommitHash), nil
	case MessageReveal:
		amount, err := auction.ParseAmount(m.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", auction.ErrInvalidAmount, err)
		}
		nonce, err := auction.ParseAmount(m.Nonce)
		if err != nil {
			return nil, fmt.Errorf("%w: nonce: %v", auction.ErrInvalidAmount, err)
		}
		r, err := s.engine.RevealSealedBid(id, bidder, amount, nonce, now)
		if err != nil {
			logRejected(id, m.Type, from, err)
			return nil, err
		}
		if a, err := s.engine.GetAuction(id, now); err == nil && a.Status == auction.StatusSettled {
			s.publishSettled(id, resultFrom(a))
			s.leaveBidsTopic(id)
		}
		return json.Marshal(r)
	default:
		return nil, fmt.Errorf("unknown bid message type %q", m.Type)
	}
}

func logRejected(id auction.ID, typ string, from core.ID, err error) {
	log.Warnf("auction %s: %s from %s rejected (%s): %v", id, typ, from, auction.ErrorClassOf(err), err)
}

func (s *Service) joinBidsTopic(id auction.ID) error {
	s.topicsLk.Lock()
	defer s.topicsLk.Unlock()
	if _, ok := s.bidTopics[id]; ok {
		return nil
	}
	topic, err := s.peer.NewTopic(s.ctx, auction.BidsTopic(id), true)
	if err != nil {
		return err
	}
	topic.SetEventHandler(s.eventHandler)
	topic.SetMessageHandler(s.bidsHandler)
	s.bidTopics[id] = topic
	return nil
}

func (s *Service) leaveBidsTopic(id auction.ID) {
	s.topicsLk.Lock()
	defer s.topicsLk.Unlock()
	topic, ok := s.bidTopics[id]
	if !ok {
		return
	}
	delete(s.bidTopics, id)
	if err := topic.Close(); err != nil {
		log.Errorf("closing bids topic for %s: %v", id, err)
	}
}

func (s *Service) closeBidTopics() {
	s.topicsLk.Lock()
	defer s.topicsLk.Unlock()
	for id, topic := range s.bidTopics {
		if err := topic.Close(); err != nil {
			log.Errorf("closing bids topic for %s: %v", id, err)
		}
	}
	s.bidTopics = make(map[auction.ID]*rpc.Topic)
}

// announce publishes a new auction on the global auctions topic. Best effort;
// an auction with no listeners is still a valid auction.
func (s *Service) announce(a *auction.Auction) {
	s.lk.Lock()
	topic := s.auctionsTopic
	s.lk.Unlock()
	if topic == nil {
		return
	}
	m := AuctionMessage{
		ID:          string(a.ID),
		Listing:     string(a.Listing),
		Kind:        a.Kind.String(),
		Seller:      strings.ToLower(a.Seller.Hex()),
		StartTime:   a.StartTime.UTC().Format(time.RFC3339),
		EndTime:     a.EndTime.UTC().Format(time.RFC3339),
		ProtocolBps: a.Fees.ProtocolBps,
		CreatorBps:  a.Fees.CreatorBps,
	}
	switch a.Kind {
	case auction.KindDutch:
		m.StartPrice = a.Dutch.StartPrice.String()
		m.FloorPrice = a.Dutch.FloorPrice.String()
		m.Curve = a.Dutch.Curve.String()
	case auction.KindSealed:
		m.RevealEnd = a.RevealEnd.UTC().Format(time.RFC3339)
		m.MinDeposit = a.Sealed.MinDeposit.String()
	}
	msg, err := json.Marshal(m)
	if err != nil {
		log.Errorf("marshaling announcement: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, publishTimeout)
	defer cancel()
	if _, err := topic.Publish(ctx, msg, rpc.WithRepublishing(true), rpc.WithIgnoreResponse(true)); err != nil {
		log.Errorf("publishing announcement for %s: %v", a.ID, err)
	}
}

func (s *Service) publishSettled(id auction.ID, res *auction.SettlementResult) {
	m := EventMessage{Type: "settled", AuctionID: string(id)}
	if !res.NoWinner() {
		m.Winner = strings.ToLower(res.Winner.Hex())
		m.FinalAmount = res.FinalAmount.String()
		m.ProtocolFee = res.ProtocolFee.String()
		m.CreatorFee = res.CreatorFee.String()
	}
	s.publishEvent(m)
}

func (s *Service) publishEvent(m EventMessage) {
	s.lk.Lock()
	topic := s.eventsTopic
	s.lk.Unlock()
	if topic == nil {
		return
	}
	msg, err := json.Marshal(m)
	if err != nil {
		log.Errorf("marshaling event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, publishTimeout)
	defer cancel()
	if _, err := topic.Publish(ctx, msg, rpc.WithIgnoreResponse(true)); err != nil {
		log.Errorf("publishing event for %s: %v", m.AuctionID, err)
	}
}

// run drives the settlement clock until the service closes.
func (s *Service) run() {
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.tick()
		}
	}
}

// tick settles every auction whose settlement conditions hold. Not-due and
// already-final auctions are skipped quietly.
func (s *Service) tick() {
	list, err := s.engine.ListAuctions(engine.Query{Limit: -1, Order: engine.OrderAscending})
	if err != nil {
		log.Errorf("listing auctions: %v", err)
		return
	}
	var wg sync.WaitGroup
	for _, a := range list {
		if a.Status.Terminal() {
			s.leaveBidsTopic(a.ID)
			continue
		}
		if err := s.semSettle.Acquire(s.ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		id := a.ID
		go func() {
			defer wg.Done()
			defer s.semSettle.Release(1)
			res, err := s.engine.Settle(id, time.Now())
			if errors.Is(err, auction.ErrSettlementNotDue) || errors.Is(err, auction.ErrAuctionFinalized) {
				return
			}
			if err != nil {
				log.Errorf("settling %s: %v", id, err)
				return
			}
			s.publishSettled(id, res)
			s.leaveBidsTopic(id)
		}()
	}
	wg.Wait()
}

func resultFrom(a *auction.Auction) *auction.SettlementResult {
	return &auction.SettlementResult{
		Winner:      a.Winner,
		FinalAmount: a.FinalAmount,
		ProtocolFee: a.ProtocolFee,
		CreatorFee:  a.CreatorFee,
	}
}
