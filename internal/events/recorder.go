package events

import (
	"context"
	"sync"
)

// Recorder guarda los eventos en memoria. Útil en tests y en el comando login.
type Recorder struct {
	mu     sync.Mutex
	events []LoginFailed
}

func (r *Recorder) LoginFailed(_ context.Context, ev LoginFailed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events retorna una copia de lo recibido.
func (r *Recorder) Events() []LoginFailed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LoginFailed(nil), r.events...)
}
