package service

import "readiness-sync/internal/domain"

// SyncContext is the active working set. It is owned by the Submitter and
// handed to each component call that needs the current venture.
type SyncContext struct {
	Venture *domain.Venture
}

func NewSyncContext() *SyncContext {
	return &SyncContext{}
}

func (sc *SyncContext) Active() bool {
	return sc != nil && sc.Venture != nil
}

func (sc *SyncContext) Clear() {
	sc.Venture = nil
}
