package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/robet-bot-poc/internal/shared/kafka"
	"github.com/radieske/robet-bot-poc/internal/twitter"
	ev "github.com/radieske/robet-bot-poc/pkg/contracts/events"
)

// MentionSource busca menções recentes (implementado pelo twitter.Client)
type MentionSource interface {
	SearchRecentMentions(ctx context.Context, query, sinceID string) (tweets []twitter.Tweet, newestID string, err error)
}

// RecordInserter insere registros pendentes (implementado pelo repo.Postgres)
type RecordInserter interface {
	InsertPending(ctx context.Context, tweetID, question, refURL string) (inserted bool, err error)
}

// Cursor persiste a posição da última busca (implementado pelo RedisCursor)
type Cursor interface {
	Last(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
}

// Ingestor transforma menções cruas em registros pendentes no store.
// Menções que não casam com a gramática são descartadas em silêncio; menções
// repetidas viram no-op pelo ON CONFLICT do insert.
type Ingestor struct {
	Log    *zap.Logger
	Source MentionSource
	Store  RecordInserter
	Cursor Cursor

	Query   string // query de busca, ex: "@robet_ai"
	Keyword string // palavra-chave da gramática, ex: "ROBET"

	// Writer do evento BetPending (opcional; nil desliga a publicação)
	Events *kafkago.Writer

	OnMatched func() // métricas (counter++)
	OnStored  func() // métricas
	OnSkipped func() // métricas (já conhecida ou sem match)
}

// Ingest roda uma passada completa: busca, parseia e insere.
// Retorna quantos registros novos foram armazenados.
func (i *Ingestor) Ingest(ctx context.Context) (int, error) {
	sinceID, err := i.Cursor.Last(ctx)
	if err != nil {
		// cursor indisponível não bloqueia a ingestão, só alarga a janela
		i.Log.Warn("cursor read failed, searching full window", zap.Error(err))
		sinceID = ""
	}

	tweets, newestID, err := i.Source.SearchRecentMentions(ctx, i.Query, sinceID)
	if err != nil {
		return 0, fmt.Errorf("search mentions: %w", err)
	}

	stored := 0
	for _, t := range tweets {
		m, ok := ParseMention(i.Keyword, t.Text)
		if !ok {
			if i.OnSkipped != nil {
				i.OnSkipped()
			}
			continue
		}
		if i.OnMatched != nil {
			i.OnMatched()
		}

		inserted, err := i.Store.InsertPending(ctx, t.ID, m.Question, m.RefURL)
		if err != nil {
			// falha num tweet não derruba a passada; a próxima busca o revê
			i.Log.Error("insert pending record", zap.String("tweet_id", t.ID), zap.Error(err))
			continue
		}
		if !inserted {
			if i.OnSkipped != nil {
				i.OnSkipped()
			}
			continue
		}

		stored++
		if i.OnStored != nil {
			i.OnStored()
		}
		i.Log.Info("mention stored",
			zap.String("tweet_id", t.ID),
			zap.String("question", m.Question),
		)
		i.publish(ctx, t.ID, m)
	}

	if newestID != "" {
		if err := i.Cursor.Save(ctx, newestID); err != nil {
			i.Log.Warn("cursor save failed", zap.Error(err))
		}
	}
	return stored, nil
}

func (i *Ingestor) publish(ctx context.Context, tweetID string, m Mention) {
	if i.Events == nil {
		return
	}
	b, _ := json.Marshal(ev.BetPending{
		TweetID:  tweetID,
		Question: m.Question,
		RefURL:   m.RefURL,
		Ts:       time.Now(),
	})
	if err := kafka.WriteJSON(ctx, i.Events, tweetID, b); err != nil {
		i.Log.Warn("bet_pending publish failed", zap.String("tweet_id", tweetID), zap.Error(err))
	}
}
