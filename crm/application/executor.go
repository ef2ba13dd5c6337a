package application

import (
	"context"

	"github.com/AzielCF/az-crm/crm/domain"
)

// KeyedExecutor ejecuta fn sin solaparse con otras llamadas de la misma clave.
// Lo implementa msgworker.KeyedPool.
type KeyedExecutor interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// directExecutor ejecuta en el goroutine del llamador; se usa cuando no hay pool
type directExecutor struct{}

func (directExecutor) Do(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func executorOrDirect(exec KeyedExecutor) KeyedExecutor {
	if exec == nil {
		return directExecutor{}
	}
	return exec
}

// noopNotifier descarta eventos cuando no hay hub conectado
type noopNotifier struct{}

func (noopNotifier) Broadcast(string, domain.Event) {}
func (noopNotifier) BroadcastAll(domain.Event)      {}

func notifierOrNoop(n domain.Notifier) domain.Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
