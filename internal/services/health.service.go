package services

import (
	"context"
	"fmt"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService reports the first dependency that does not answer a ping.
type HealthService struct {
	deps    map[string]Pinger
	order   []string
	timeout time.Duration
}

func NewHealthService() *HealthService {
	return &HealthService{
		deps:    map[string]Pinger{},
		timeout: 2 * time.Second,
	}
}

func (s *HealthService) Register(name string, p Pinger) *HealthService {
	if _, ok := s.deps[name]; !ok {
		s.order = append(s.order, name)
	}
	s.deps[name] = p
	return s
}

func (s *HealthService) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	for _, name := range s.order {
		if err := s.deps[name].Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
