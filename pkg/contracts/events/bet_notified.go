package events

import "time"

// Evento emitido após a resposta ao tweet original ser publicada.
type BetNotified struct {
	TweetID  string    `json:"tweetId"`
	MarketID string    `json:"marketId"`
	PostID   string    `json:"postId"`
	Ts       time.Time `json:"ts"`
}
