package auction

import (
	"path"

	"github.com/libp2p/go-libp2p-core/peer"
)

// Topic is used by auction daemons to announce domain auctions and by bidders
// to discover them.
const Topic string = "/namebid/auction/0.0.1"

// BidsTopic is used by bidders to submit Dutch bids and sealed commitments
// or reveals for one auction.
// "/namebid/auction/0.0.1/<auction_id>/bids".
func BidsTopic(auctionID ID) string {
	return path.Join(Topic, string(auctionID), "bids")
}

// EventsTopic is used by an auction daemon to publish lifecycle events
// (created, extended, settled, canceled).
// "/namebid/auction/0.0.1/<peer_id>/events".
func EventsTopic(pid peer.ID) string {
	return path.Join(Topic, pid.String(), "events")
}
