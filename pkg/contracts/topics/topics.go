package topics

const (
	// Ciclo de vida dos registros de aposta
	BetRecordsPending = "bet_records_pending"
	BetMarketsCreated = "bet_markets_created"
	BetRepliesSent    = "bet_replies_sent"
)
