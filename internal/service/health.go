package service

import (
	"context"
	"fmt"
	"sort"
)

// HealthService checks the health of every registered backend
type HealthService struct {
	probes map[string]Pinger
}

// NewHealthService creates a health checker over named probes
func NewHealthService(probes map[string]Pinger) *HealthService {
	return &HealthService{probes: probes}
}

// Check pings each backend in name order and stops at the first failure
func (s *HealthService) Check(ctx context.Context) error {
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.probes[name].Ping(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", name, err)
		}
	}
	return nil
}
