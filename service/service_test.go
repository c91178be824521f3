package service_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/namebid/auctiond/lib/auction"
	"github.com/namebid/auctiond/lib/dshelper"
	"github.com/namebid/auctiond/lib/dshelper/txndswrap"
	"github.com/namebid/auctiond/service"
	"github.com/namebid/auctiond/service/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rpc "github.com/textileio/go-libp2p-pubsub-rpc"
	rpcpeer "github.com/textileio/go-libp2p-pubsub-rpc/peer"
	golog "github.com/textileio/go-log/v2"
)

func init() {
	if err := golog.SetLogLevels(map[string]golog.LogLevel{
		"auctiond/service": golog.LevelDebug,
		"auctiond/engine":  golog.LevelDebug,
		"psrpc/peer":       golog.LevelDebug,
	}); err != nil {
		panic(err)
	}
}

func newPeerConfig(t *testing.T) (rpcpeer.Config, string) {
	dir := t.TempDir()
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	return rpcpeer.Config{
		PrivKey:    priv,
		RepoPath:   dir,
		EnableMDNS: true,
	}, dir
}

func validConfig(t *testing.T) (service.Config, txndswrap.TxnDatastore) {
	peerConfig, dir := newPeerConfig(t)
	config := service.Config{
		Peer:         peerConfig,
		TickInterval: time.Second,
	}
	store, err := dshelper.NewBadgerTxnDatastore(filepath.Join(dir, "auctionstore"))
	require.NoError(t, err)
	return config, store
}

func newService(t *testing.T) *service.Service {
	config, store := validConfig(t)
	s, err := service.New(config, store)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		require.NoError(t, store.Close())
	})
	return s
}

func ethAddr(t *testing.T, s string) ethcommon.Address {
	addr, err := auction.ParseAddress(s)
	require.NoError(t, err)
	return addr
}

func dutchAuction(base time.Time) auction.Auction {
	return auction.Auction{
		Listing:   "example.eth",
		Kind:      auction.KindDutch,
		StartTime: base,
		EndTime:   base.Add(time.Hour),
		Dutch: &auction.DutchParams{
			StartPrice: big.NewInt(1000),
			FloorPrice: big.NewInt(100),
			Duration:   time.Hour,
			Curve:      auction.CurveLinear,
		},
	}
}

func sealedAuction(base time.Time, commitWindow time.Duration) auction.Auction {
	return auction.Auction{
		Listing:     "example.eth",
		Kind:        auction.KindSealed,
		StartTime:   base,
		EndTime:     base.Add(commitWindow),
		RevealStart: base.Add(commitWindow),
		RevealEnd:   base.Add(commitWindow + time.Hour),
		Sealed:      &auction.SealedParams{MinDeposit: big.NewInt(0)},
	}
}

func TestNew(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.Subscribe(false))
	// Subscribing twice is a no-op.
	require.NoError(t, s.Subscribe(false))
	require.NoError(t, s.HealthCheck())

	info, err := s.PeerInfo()
	require.NoError(t, err)
	require.NotNil(t, info)
}

func TestCreateGetList(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.Subscribe(false))

	saved, err := s.CreateAuction(dutchAuction(time.Now()))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := s.GetAuction(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusActive, got.Status)

	price, err := s.CurrentPrice(saved.ID)
	require.NoError(t, err)
	assert.True(t, price.Cmp(big.NewInt(100)) >= 0)
	assert.True(t, price.Cmp(big.NewInt(1000)) <= 0)

	list, err := s.ListAuctions(engine.Query{Limit: -1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	require.NoError(t, s.CancelAuction(saved.ID))
	got, err = s.GetAuction(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusCanceled, got.Status)
}

func TestDutchBidOverPubsub(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}
	s := newService(t)
	require.NoError(t, s.Subscribe(true))

	peerConfig, _ := newPeerConfig(t)
	bidder, err := rpcpeer.New(peerConfig)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, bidder.Close()) })
	bidder.Bootstrap()

	saved, err := s.CreateAuction(dutchAuction(time.Now()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	bids, err := bidder.NewTopic(ctx, auction.BidsTopic(saved.ID), false)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, bids.Close()) })

	msg, err := json.Marshal(service.BidMessage{
		Type:      service.MessageDutchBid,
		AuctionID: string(saved.ID),
		Bidder:    "0x00000000000000000000000000000000000000aa",
		Amount:    "1000",
	})
	require.NoError(t, err)
	resp, err := bids.Publish(ctx, msg, rpc.WithRepublishing(true))
	require.NoError(t, err)
	r := <-resp
	require.NoError(t, r.Err)

	var res auction.SettlementResult
	require.NoError(t, json.Unmarshal(r.Data, &res))
	require.NotNil(t, res.Winner)

	got, err := s.GetAuction(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusSettled, got.Status)
}

func TestSealedFlowOverPubsub(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}
	s := newService(t)
	require.NoError(t, s.Subscribe(true))

	peerConfig, _ := newPeerConfig(t)
	bidderPeer, err := rpcpeer.New(peerConfig)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, bidderPeer.Close()) })
	bidderPeer.Bootstrap()

	commitWindow := 8 * time.Second
	saved, err := s.CreateAuction(sealedAuction(time.Now(), commitWindow))
	require.NoError(t, err)

	bidder := "0x00000000000000000000000000000000000000aa"
	amount := big.NewInt(500)
	rec, hash, err := s.PrepareBid(saved.Listing, ethAddr(t, bidder), amount)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	bids, err := bidderPeer.NewTopic(ctx, auction.BidsTopic(saved.ID), false)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, bids.Close()) })

	msg, err := json.Marshal(service.BidMessage{
		Type:       service.MessageCommit,
		AuctionID:  string(saved.ID),
		Bidder:     bidder,
		Deposit:    "0",
		CommitHash: hash.Hex(),
	})
	require.NoError(t, err)
	resp, err := bids.Publish(ctx, msg, rpc.WithRepublishing(true))
	require.NoError(t, err)
	r := <-resp
	require.NoError(t, r.Err)

	// Wait for the reveal window to open.
	time.Sleep(commitWindow + time.Second)

	msg, err = json.Marshal(service.BidMessage{
		Type:      service.MessageReveal,
		AuctionID: string(saved.ID),
		Bidder:    bidder,
		Amount:    amount.String(),
		Nonce:     rec.Nonce.String(),
	})
	require.NoError(t, err)
	resp, err = bids.Publish(ctx, msg, rpc.WithRepublishing(true))
	require.NoError(t, err)
	r = <-resp
	require.NoError(t, r.Err)

	got, err := s.GetAuction(saved.ID)
	require.NoError(t, err)
	require.Equal(t, auction.StatusSettled, got.Status)
	require.NotNil(t, got.Winner)
	assert.Equal(t, ethAddr(t, bidder), *got.Winner)
	assert.Equal(t, int64(500), got.FinalAmount.Int64())
}

func TestRevealStored(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.Subscribe(false))

	a, err := s.CreateAuction(sealedAuction(time.Now(), time.Hour))
	require.NoError(t, err)

	bidder := ethAddr(t, "0x00000000000000000000000000000000000000aa")
	_, _, err = s.PrepareBid(a.Listing, bidder, big.NewInt(500))
	require.NoError(t, err)

	// No commitment recorded on the auction yet, and the reveal window has not
	// opened, so revealing the stored bid must fail.
	_, err = s.RevealStored(a.ID, bidder)
	require.Error(t, err)
}
