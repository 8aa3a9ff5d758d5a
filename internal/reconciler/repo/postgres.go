package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrStageAlreadySet indica que o campo do estágio já tinha valor persistido.
// Protege o invariante de atribuição única (market_id nunca muda depois de setado).
var ErrStageAlreadySet = errors.New("stage field already set")

// Postgres implementa a persistência dos registros de aposta (bet_records)
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de registros
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria a tabela bet_records se ainda não existir
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bet_records (
			tweet_id         TEXT PRIMARY KEY,
			question         TEXT NOT NULL,
			ref_url          TEXT NOT NULL DEFAULT '',
			market_id        TEXT,
			chainb_market_id TEXT,
			chainb_tx_hash   TEXT,
			share_url        TEXT,
			notified         BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure bet_records schema: %w", err)
	}
	return nil
}

// InsertPending insere um registro pendente para o tweet, se ainda não existir.
// Retorna true quando a linha foi de fato inserida (menção inédita).
func (p *Postgres) InsertPending(ctx context.Context, tweetID, question, refURL string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO bet_records (tweet_id, question, ref_url)
		VALUES ($1,$2,$3)
		ON CONFLICT (tweet_id) DO NOTHING`,
		tweetID, question, refURL,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUnnotified retorna todos os registros ainda não concluídos (notified = FALSE)
// na ordem de criação. É o lote de trabalho de cada tick do reconciler.
func (p *Postgres) ListUnnotified(ctx context.Context) ([]BetRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT tweet_id, question, ref_url, market_id, chainb_market_id,
		       chainb_tx_hash, share_url, notified, created_at, updated_at
		FROM bet_records
		WHERE notified = FALSE
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BetRecord
	for rows.Next() {
		var r BetRecord
		if err := rows.Scan(
			&r.TweetID, &r.Question, &r.RefURL, &r.MarketID, &r.ChainBMarketID,
			&r.ChainBTxHash, &r.ShareURL, &r.Notified, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetByTweetID retorna o registro de um tweet específico
func (p *Postgres) GetByTweetID(ctx context.Context, tweetID string) (*BetRecord, error) {
	var r BetRecord
	err := p.db.QueryRowContext(ctx, `
		SELECT tweet_id, question, ref_url, market_id, chainb_market_id,
		       chainb_tx_hash, share_url, notified, created_at, updated_at
		FROM bet_records
		WHERE tweet_id = $1`, tweetID,
	).Scan(
		&r.TweetID, &r.Question, &r.RefURL, &r.MarketID, &r.ChainBMarketID,
		&r.ChainBTxHash, &r.ShareURL, &r.Notified, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetMarketID persiste o market_id gerado na criação em chain A.
// O guard `market_id IS NULL` garante atribuição única mesmo em corrida.
func (p *Postgres) SetMarketID(ctx context.Context, tweetID, marketID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bet_records
		SET market_id = $1, updated_at = NOW()
		WHERE tweet_id = $2 AND market_id IS NULL`,
		marketID, tweetID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetChainBResult persiste o resultado da criação em chain B e o link de compartilhamento
func (p *Postgres) SetChainBResult(ctx context.Context, tweetID, chainBMarketID, chainBTxHash, shareURL string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bet_records
		SET chainb_market_id = $1, chainb_tx_hash = $2, share_url = $3, updated_at = NOW()
		WHERE tweet_id = $4 AND chainb_market_id IS NULL`,
		chainBMarketID, chainBTxHash, shareURL, tweetID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkNotified marca o registro como concluído após a resposta ser publicada
func (p *Postgres) MarkNotified(ctx context.Context, tweetID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bet_records
		SET notified = TRUE, updated_at = NOW()
		WHERE tweet_id = $1 AND notified = FALSE`,
		tweetID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStageAlreadySet
	}
	return nil
}
