package service

import (
	"context"
	"fmt"
	"time"
)

// AgentStats returns the number of endpoints in use for each installed agent.
func (s *Service) AgentStats(ctx context.Context) (map[string]int, error) {
	counts, err := s.store.EndpointCountsByAgent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute agent stats: %w", err)
	}
	return counts, nil
}

// EndpointCommunicationStats returns the combined sent/received message count
// per endpoint.
func (s *Service) EndpointCommunicationStats(ctx context.Context) (map[string]int, error) {
	counts, err := s.store.MessageCountsByEndpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute endpoint stats: %w", err)
	}
	return counts, nil
}

// RecentMessageStats bins the last 24 hours of messages by hours-ago. Index 0
// is the most recent hour; missing buckets are zero.
func (s *Service) RecentMessageStats(ctx context.Context) ([]int, error) {
	counts, err := s.store.MessageCountsByHour(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to compute message stats: %w", err)
	}
	bins := make([]int, 24)
	for bucket, count := range counts {
		if bucket >= 0 && bucket < 24 {
			bins[bucket] = count
		}
	}
	return bins, nil
}

// TaskStats returns running/completed/total task counts.
func (s *Service) TaskStats(ctx context.Context) (map[string]int, error) {
	counts, err := s.store.TaskStatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute task stats: %w", err)
	}
	return counts, nil
}
