package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/robet-bot-poc/internal/reconciler/repo"
)

const replyTemplate = "🎲 Your prediction has been turned into a bet!\n\nJoin and place your bets at %s"

// ReplyPoster publica uma resposta a um tweet (implementado pelo twitter.Client)
type ReplyPoster interface {
	Reply(ctx context.Context, tweetID, text string) (postID string, err error)
}

// ReplyChecker relê o registro antes do envio (implementado pelo repo.Postgres)
type ReplyChecker interface {
	GetByTweetID(ctx context.Context, tweetID string) (*repo.BetRecord, error)
}

// TwitterNotifier responde ao tweet original com o link do mercado.
// Antes de postar, relê o registro: se a flag notified já estiver persistida
// (outra tentativa pode ter enviado e falhado só na escrita), não posta de novo.
type TwitterNotifier struct {
	Log    *zap.Logger
	Poster ReplyPoster
	Store  ReplyChecker
}

// Reply envia a resposta e retorna o id do post. postID vazio com erro nil
// significa que o registro já estava respondido e nada foi enviado.
func (n *TwitterNotifier) Reply(ctx context.Context, rec *repo.BetRecord) (string, error) {
	fresh, err := n.Store.GetByTweetID(ctx, rec.TweetID)
	if err != nil {
		return "", fmt.Errorf("reread record before reply: %w", err)
	}
	if fresh.Notified {
		n.Log.Info("tweet already replied, skipping", zap.String("tweet_id", rec.TweetID))
		return "", nil
	}
	if !fresh.ShareURL.Valid || fresh.ShareURL.String == "" {
		return "", errors.New("record has no share url")
	}

	text := fmt.Sprintf(replyTemplate, fresh.ShareURL.String)
	postID, err := n.Poster.Reply(ctx, rec.TweetID, text)
	if err != nil {
		return "", err
	}

	n.Log.Info("replied to tweet",
		zap.String("tweet_id", rec.TweetID),
		zap.String("post_id", postID),
	)
	return postID, nil
}
