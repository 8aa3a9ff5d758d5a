package events

import "time"

// Evento emitido pelo mention-ingest-worker quando um tweet vira registro pendente.
type BetPending struct {
	TweetID  string    `json:"tweetId"`
	Question string    `json:"question"`
	RefURL   string    `json:"refUrl,omitempty"`
	Ts       time.Time `json:"ts"`
}
