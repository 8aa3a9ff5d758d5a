package repo

import (
	"database/sql"
	"time"
)

// BetRecord é o registro de processamento de uma menção, persistido no Postgres.
// Os campos anuláveis marcam o progresso do workflow: cada estágio concluído
// preenche seu grupo de campos e nunca mais volta atrás.
type BetRecord struct {
	TweetID        string
	Question       string
	RefURL         string
	MarketID       sql.NullString // atribuído uma única vez, na criação em chain A
	ChainBMarketID sql.NullString
	ChainBTxHash   sql.NullString
	ShareURL       sql.NullString
	Notified       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
