package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/robet-bot-poc/internal/chaina"
	"github.com/radieske/robet-bot-poc/internal/reconciler/repo"
	"github.com/radieske/robet-bot-poc/internal/shared/kafka"
	ev "github.com/radieske/robet-bot-poc/pkg/contracts/events"
)

// Stage é o estado de um registro dentro do workflow.
// A ordem é estrita e sem retorno: PENDING -> CHAIN_A_CREATED -> CHAIN_B_CREATED -> DONE.
type Stage string

const (
	StagePending       Stage = "PENDING"
	StageChainACreated Stage = "CHAIN_A_CREATED"
	StageChainBCreated Stage = "CHAIN_B_CREATED"
	StageDone          Stage = "DONE"
)

// StageResult descreve o que aconteceu com um registro durante um tick.
// Falha de um registro nunca derruba o lote: o erro fica aqui e o loop segue.
type StageResult struct {
	TweetID string
	From    Stage
	To      Stage
	Err     error
}

// RecordStore é a visão que o engine precisa da persistência dos registros
type RecordStore interface {
	ListUnnotified(ctx context.Context) ([]repo.BetRecord, error)
	SetMarketID(ctx context.Context, tweetID, marketID string) error
	SetChainBResult(ctx context.Context, tweetID, chainBMarketID, chainBTxHash, shareURL string) error
	MarkNotified(ctx context.Context, tweetID string) error
}

// ChainAGateway cria o mercado no programa Solana (endereçamento determinístico por PDA)
type ChainAGateway interface {
	CreateMarket(ctx context.Context, marketID, question string) (txSignature string, err error)
}

// ChainBGateway cria o mercado no contrato CosmWasm via bridge REST
type ChainBGateway interface {
	CreateMarket(ctx context.Context, description string, endTime time.Time) (marketID, txHash string, err error)
}

// Notifier publica a resposta ao tweet original com o link do mercado
type Notifier interface {
	Reply(ctx context.Context, rec *repo.BetRecord) (postID string, err error)
}

// Engine avança os registros pendentes pelo workflow, um estágio por tick.
// Cada transição é persistida logo após a chamada externa ter sucesso; a
// conclusão de um estágio é julgada pelo campo persistido, nunca por re-invocar
// o gateway. Callbacks de métricas podem ser usadas para monitoramento.
type Engine struct {
	Log      *zap.Logger
	Store    RecordStore
	ChainA   ChainAGateway
	ChainB   ChainBGateway
	Notifier Notifier

	// Writers de eventos de ciclo de vida (opcionais; nil desliga a publicação)
	MarketEvents *kafkago.Writer
	NotifyEvents *kafkago.Writer

	BlinkBaseURL   string
	MarketDuration time.Duration // janela de apostas do mercado em chain B
	CallTimeout    time.Duration // limite de cada chamada externa

	Now         func() time.Time // troca de relógio em testes
	NewMarketID func() string    // troca de gerador de id em testes

	OnAdvanced func(stage string) // métricas (counter++ por estágio concluído)
	OnFailed   func(stage string) // métricas por estágio que falhou
}

// RunTick processa um lote completo: carrega todos os registros não concluídos
// e tenta avançar cada um, em sequência, no máximo um estágio. Nenhum erro
// atravessa a fronteira do tick.
func (e *Engine) RunTick(ctx context.Context) []StageResult {
	recs, err := e.Store.ListUnnotified(ctx)
	if err != nil {
		e.Log.Error("list unnotified records", zap.Error(err))
		e.failed("list")
		return nil
	}
	if len(recs) == 0 {
		return nil
	}
	e.Log.Info("tick started", zap.Int("records", len(recs)))

	results := make([]StageResult, 0, len(recs))
	for i := range recs {
		res := e.advance(ctx, &recs[i])
		if res.Err != nil {
			e.Log.Error("advance record",
				zap.String("tweet_id", res.TweetID),
				zap.String("stage", string(res.From)),
				zap.Error(res.Err),
			)
			e.failed(string(res.From))
		} else if res.To != res.From {
			e.Log.Info("record advanced",
				zap.String("tweet_id", res.TweetID),
				zap.String("from", string(res.From)),
				zap.String("to", string(res.To)),
			)
			if e.OnAdvanced != nil {
				e.OnAdvanced(string(res.To))
			}
		}
		results = append(results, res)
	}
	return results
}

// advance executa no máximo UM estágio do registro e persiste o progresso.
// Falhou a chamada externa: o registro fica onde está e tenta de novo no próximo tick.
func (e *Engine) advance(ctx context.Context, rec *repo.BetRecord) StageResult {
	from := stageOf(rec)
	res := StageResult{TweetID: rec.TweetID, From: from, To: from}

	switch from {
	case StagePending:
		res.Err = e.createOnChainA(ctx, rec)
		if res.Err == nil {
			res.To = StageChainACreated
		}
	case StageChainACreated:
		res.Err = e.createOnChainB(ctx, rec)
		if res.Err == nil {
			res.To = StageChainBCreated
		}
	case StageChainBCreated:
		res.Err = e.notify(ctx, rec)
		if res.Err == nil {
			res.To = StageDone
		}
	}
	return res
}

// createOnChainA gera o market id (token curto aleatório) e cria o mercado no
// programa Solana. "already in use" num id recém-gerado quase certamente é uma
// tentativa anterior que caiu entre o sucesso on-chain e o persist; tratamos
// como sucesso e deixamos registrado como anomalia pra revisão do operador.
func (e *Engine) createOnChainA(ctx context.Context, rec *repo.BetRecord) error {
	marketID := e.newMarketID()

	cctx, cancel := e.callCtx(ctx)
	sig, err := e.ChainA.CreateMarket(cctx, marketID, rec.Question)
	cancel()
	if errors.Is(err, chaina.ErrMarketExists) {
		e.Log.Warn("market address already in use, persisting anyway",
			zap.String("tweet_id", rec.TweetID),
			zap.String("market_id", marketID),
		)
	} else if err != nil {
		return err
	} else {
		e.Log.Info("market created on chain A",
			zap.String("tweet_id", rec.TweetID),
			zap.String("market_id", marketID),
			zap.String("tx", sig),
		)
	}

	return e.Store.SetMarketID(ctx, rec.TweetID, marketID)
}

// createOnChainB cria o mercado no contrato CosmWasm e persiste também o link
// de compartilhamento, derivado do market id sem nenhuma chamada externa.
func (e *Engine) createOnChainB(ctx context.Context, rec *repo.BetRecord) error {
	endTime := e.now().Add(e.MarketDuration)

	cctx, cancel := e.callCtx(ctx)
	chainBID, txHash, err := e.ChainB.CreateMarket(cctx, rec.Question, endTime)
	cancel()
	if err != nil {
		return err
	}

	shareURL := e.BlinkBaseURL + "?marketId=" + rec.MarketID.String
	if err := e.Store.SetChainBResult(ctx, rec.TweetID, chainBID, txHash, shareURL); err != nil {
		return err
	}

	e.publish(ctx, e.MarketEvents, rec.TweetID, ev.MarketCreated{
		TweetID:        rec.TweetID,
		MarketID:       rec.MarketID.String,
		ChainBMarketID: chainBID,
		ChainBTxHash:   txHash,
		ShareURL:       shareURL,
		Ts:             e.now(),
	})
	return nil
}

func (e *Engine) notify(ctx context.Context, rec *repo.BetRecord) error {
	cctx, cancel := e.callCtx(ctx)
	postID, err := e.Notifier.Reply(cctx, rec)
	cancel()
	if err != nil {
		return err
	}

	if err := e.Store.MarkNotified(ctx, rec.TweetID); err != nil {
		return err
	}

	e.publish(ctx, e.NotifyEvents, rec.TweetID, ev.BetNotified{
		TweetID:  rec.TweetID,
		MarketID: rec.MarketID.String,
		PostID:   postID,
		Ts:       e.now(),
	})
	return nil
}

// publish envia o evento de ciclo de vida; falha aqui não trava o workflow
func (e *Engine) publish(ctx context.Context, w *kafkago.Writer, key string, payload any) {
	if w == nil {
		return
	}
	b, _ := json.Marshal(payload)
	if err := kafka.WriteJSON(ctx, w, key, b); err != nil {
		e.Log.Warn("lifecycle event publish failed", zap.String("tweet_id", key), zap.Error(err))
	}
}

func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newMarketID() string {
	if e.NewMarketID != nil {
		return e.NewMarketID()
	}
	// primeiro segmento de um uuid v4: token curto o suficiente pra seed de PDA
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func (e *Engine) failed(stage string) {
	if e.OnFailed != nil {
		e.OnFailed(stage)
	}
}

// stageOf deriva o estágio atual do registro a partir dos campos persistidos
func stageOf(r *repo.BetRecord) Stage {
	switch {
	case !r.MarketID.Valid:
		return StagePending
	case !r.ChainBMarketID.Valid:
		return StageChainACreated
	case !r.Notified:
		return StageChainBCreated
	default:
		return StageDone
	}
}
