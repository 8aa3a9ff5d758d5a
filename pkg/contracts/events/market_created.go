package events

import "time"

// Evento emitido pelo reconciler-worker quando o mercado existe nas duas chains.
type MarketCreated struct {
	TweetID        string    `json:"tweetId"`
	MarketID       string    `json:"marketId"`
	ChainBMarketID string    `json:"chainbMarketId"`
	ChainBTxHash   string    `json:"chainbTxHash"`
	ShareURL       string    `json:"shareUrl"`
	Ts             time.Time `json:"ts"`
}
