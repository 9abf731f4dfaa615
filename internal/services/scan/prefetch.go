package scan

import (
	"time"

	"github.com/TheMichaelB/totescan/internal/models"
)

// Prefetch warms the cache for id without touching the state store. Its
// failure is logged and otherwise ignored.
func (s *Service) Prefetch(id string) {
	id = models.NormalizeToteID(id)
	if id == "" || !s.useCache {
		return
	}

	h, hit := s.fetches.Get(id, true)
	if hit {
		return
	}

	logger := s.logger.WithField("tote_id", id)
	logger.Debug("Prefetching tote")

	go func() {
		<-h.Done()
		if _, err := h.Result(); err != nil {
			logger.WithError(err).Debug("Prefetch failed")
		}
	}()
}

// Typing reports the operator's current partial input. Once the input has
// been stable for the debounce window and passes the input checks, the tote
// is prefetched. Each call restarts the window.
func (s *Service) Typing(candidate string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.typingSeq++
	seq := s.typingSeq

	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		current := seq == s.typingSeq
		s.mu.Unlock()
		if !current {
			return
		}
		s.typed(candidate)
	})
}

func (s *Service) typed(candidate string) {
	id := models.NormalizeToteID(candidate)
	if !s.validator.MeetsMinLength(id) {
		return
	}
	if !s.validator.Validate(id).Valid {
		return
	}
	s.Prefetch(id)
}
