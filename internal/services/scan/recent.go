package scan

// AddRecent puts barcode at the front of list, removing an earlier copy and
// keeping at most limit entries. list is not modified.
func AddRecent(list []string, barcode string, limit int) []string {
	out := make([]string, 0, limit)
	out = append(out, barcode)
	for _, b := range list {
		if len(out) >= limit {
			break
		}
		if b != barcode {
			out = append(out, b)
		}
	}
	return out
}

// RecentBarcodes returns the submitted barcodes, newest first.
func (s *Service) RecentBarcodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.recentBarcodes...)
}

func (s *Service) addRecent(barcode string) {
	s.mu.Lock()
	s.recentBarcodes = AddRecent(s.recentBarcodes, barcode, s.recentLimit)
	list := append([]string{}, s.recentBarcodes...)
	s.mu.Unlock()

	s.saveRecent(list)
}

func (s *Service) loadRecent() {
	if s.recent == nil {
		return
	}

	list, err := s.recent.Load()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load recent barcodes")
		return
	}
	if len(list) > s.recentLimit {
		list = list[:s.recentLimit]
	}

	s.mu.Lock()
	s.recentBarcodes = append([]string{}, list...)
	s.mu.Unlock()

	s.logger.WithField("count", len(list)).Debug("Loaded recent barcodes")
}

func (s *Service) saveRecent(list []string) {
	if s.recent == nil {
		return
	}
	if err := s.recent.Save(list); err != nil {
		s.logger.WithError(err).Warn("Failed to save recent barcodes")
	}
}
