package reconciler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Scheduler dispara ticks em intervalo fixo, com exclusão mútua entre ticks:
// se um tick ainda está em andamento quando o próximo gatilho chega, o novo é
// pulado por inteiro. Isso é requisito de correção: dois ticks concorrentes
// poderiam mutar o mesmo registro e duplicar chamadas on-chain.
type Scheduler struct {
	Log      *zap.Logger
	Interval time.Duration
	Tick     func(ctx context.Context)
	OnSkip   func() // métricas (tick pulado por overlap)

	inFlight atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

// Start inicia o loop de agendamento numa goroutine própria.
// Os ticks rodam sequencialmente dentro do loop; o ctx é repassado a cada tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce executa um único tick, respeitando o guard de exclusão mútua.
// Retorna false quando o tick foi pulado porque outro ainda estava em voo.
// Exposto também pra disparo manual e pra testes (sem depender de relógio).
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.Log.Warn("tick skipped, previous still in flight")
		if s.OnSkip != nil {
			s.OnSkip()
		}
		return false
	}
	defer s.inFlight.Store(false)

	s.Tick(ctx)
	return true
}

// Stop interrompe a emissão de novos ticks e espera o tick em voo terminar.
// Nunca aborta um tick no meio: o disciplinamento persist-após-sucesso só
// funciona se o estágio corrente puder concluir sua escrita.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
}
