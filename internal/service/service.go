// Package service implements the relay's message routing on top of the
// session directory and the conversation store.
package service

import (
	"time"

	"github.com/jaylordlagud2022/affiliate-portal/internal/hub"
	"github.com/jaylordlagud2022/affiliate-portal/internal/store"
)

// Service owns the session directory and the conversation store. Both are
// shared by every connection handler.
type Service struct {
	hub   *hub.Hub
	store store.Store
	now   func() time.Time
}

func New(h *hub.Hub, st store.Store) *Service {
	return &Service{
		hub:   h,
		store: st,
		now:   time.Now,
	}
}

// Hub exposes the directory to the transport for connection bookkeeping.
func (s *Service) Hub() *hub.Hub {
	return s.hub
}
