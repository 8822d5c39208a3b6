package store

import (
	"sync"
	"time"

	"github.com/viktsys/tdingest/models"
)

type naturalKey struct {
	tituloID int
	ano      int
	mes      int
	acao     models.Action
}

func keyOf(m models.Movement) naturalKey {
	return naturalKey{tituloID: m.TituloID, ano: m.Ano, mes: m.Mes, acao: m.Acao}
}

func (k naturalKey) periodo() time.Time {
	return models.PeriodOf(k.ano, k.mes)
}

// keyLocks hands out one mutex per natural key. The key space is small
// (instruments x months x actions) so mutexes are never released.
type keyLocks struct {
	mu    sync.Mutex
	locks map[naturalKey]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[naturalKey]*sync.Mutex)}
}

func (k *keyLocks) lock(key naturalKey) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = new(sync.Mutex)
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
