package ingest

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const cursorKey = "mention_ingest:last_tweet_id"

// RedisCursor guarda o newest_id da última busca de menções no Redis.
// É só economia de tráfego na API: a ingestão continua idempotente sem ele
// (o insert é ON CONFLICT DO NOTHING), então perder a chave não corrompe nada.
type RedisCursor struct {
	Client *redis.Client
}

func NewRedisCursor(c *redis.Client) *RedisCursor {
	return &RedisCursor{Client: c}
}

// Last retorna o cursor atual; vazio quando nunca houve busca
func (r *RedisCursor) Last(ctx context.Context) (string, error) {
	v, err := r.Client.Get(ctx, cursorKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// Save persiste o cursor da próxima busca (sem TTL)
func (r *RedisCursor) Save(ctx context.Context, id string) error {
	return r.Client.Set(ctx, cursorKey, id, 0).Err()
}
