package roster

import (
	"slices"
	"strings"

	"github.com/cleared-dev/runbal/internal/model"
)

// Service provides in-memory lookup over the consumers table.
type Service struct {
	consumers []model.Consumer
	byID      map[string]struct{}
}

// NewService creates a Service from a slice of consumers. Blank and repeated
// IDs are ignored.
func NewService(consumers []model.Consumer) *Service {
	byID := make(map[string]struct{}, len(consumers))
	kept := make([]model.Consumer, 0, len(consumers))
	for _, c := range consumers {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = struct{}{}
		kept = append(kept, model.Consumer{ID: id})
	}
	return &Service{consumers: kept, byID: byID}
}

// Len returns the number of distinct consumers.
func (s *Service) Len() int {
	return len(s.consumers)
}

// Exists reports whether a consumer ID is on the roster.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// IDs returns the consumer IDs, sorted.
func (s *Service) IDs() []string {
	ids := make([]string, len(s.consumers))
	for i, c := range s.consumers {
		ids[i] = c.ID
	}
	slices.Sort(ids)
	return ids
}
