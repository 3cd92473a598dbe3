package coordination

import (
	"sync"
)

// Auction types understood by the bidding protocol. Resolution is currently
// highest-bid-wins for all of them.
const (
	AuctionFirstPriceSealedBid  = "first_price_sealed_bid"
	AuctionSecondPriceSealedBid = "second_price_sealed_bid"
	AuctionEnglish              = "english"
	AuctionDutch                = "dutch"
)

// Bid is one agent's offer in an auction.
type Bid struct {
	Amount  float64
	Content any
}

// BiddingProtocol runs a single auction for task allocation or resource
// distribution. A repeat bid from the same agent replaces the earlier one.
type BiddingProtocol struct {
	mu          sync.Mutex
	auctionType string
	bids        map[string]Bid
	active      bool
}

// NewBiddingProtocol opens an auction of the given type. An empty type
// defaults to a first-price sealed bid.
func NewBiddingProtocol(auctionType string) *BiddingProtocol {
	if auctionType == "" {
		auctionType = AuctionFirstPriceSealedBid
	}
	return &BiddingProtocol{
		auctionType: auctionType,
		bids:        map[string]Bid{},
		active:      true,
	}
}

// Type returns the auction type.
func (b *BiddingProtocol) Type() string {
	return b.auctionType
}

// SubmitBid records a bid. It returns false once the auction has closed.
func (b *BiddingProtocol) SubmitBid(agentID string, amount float64, content any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return false
	}
	b.bids[agentID] = Bid{Amount: amount, Content: content}
	return true
}

// Resolve closes the auction and returns the winner: the highest bid, ties
// broken by the lower agent ID. An auction with no bids resolves to "".
func (b *BiddingProtocol) Resolve() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bids) == 0 {
		return ""
	}

	winner := ""
	for agentID, bid := range b.bids {
		if winner == "" {
			winner = agentID
			continue
		}
		best := b.bids[winner]
		if bid.Amount > best.Amount || (bid.Amount == best.Amount && agentID < winner) {
			winner = agentID
		}
	}
	b.active = false
	return winner
}

// Active reports whether the auction still accepts bids.
func (b *BiddingProtocol) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// BidFrom returns an agent's current bid.
func (b *BiddingProtocol) BidFrom(agentID string) (Bid, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid, ok := b.bids[agentID]
	return bid, ok
}
