package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// RefreshWindow is how close to expiry an access token gets refreshed.
const RefreshWindow = 15 * time.Minute

// Task represents a scheduled task
type Task struct {
	Name        string
	Description string
	Schedule    string
	Enabled     bool
	Handler     func(ctx context.Context) error `json:"-"`
}

// OAuthMaintenanceTasks returns the tasks keeping OAuth state and tokens fresh
func OAuthMaintenanceTasks(s *SchedulerService) []Task {
	return []Task{
		{
			Name:        "expire_oauth_states",
			Description: "Drop abandoned OAuth handshake states",
			Schedule:    "*/5 * * * *",
			Enabled:     true,
			Handler: func(ctx context.Context) error {
				cleared, err := s.integrations.Store.ExpireOAuthStates(ctx, s.now().Add(-s.stateTTL))
				if err != nil {
					return err
				}
				if cleared > 0 {
					log.Printf("Expired %d OAuth handshake states", cleared)
				}
				return nil
			},
		},
		{
			Name:        "refresh_oauth_tokens",
			Description: "Refresh access tokens that expire soon",
			Schedule:    "*/10 * * * *",
			Enabled:     true,
			Handler: func(ctx context.Context) error {
				records, err := s.integrations.Store.ExpiringTokens(ctx, s.now().Add(RefreshWindow))
				if err != nil {
					return err
				}

				var errs []error
				for _, record := range records {
					if _, err := s.integrations.OAuth.Refresh(ctx, record.Provider); err != nil {
						errs = append(errs, fmt.Errorf("refresh %s: %w", record.Provider, err))
						continue
					}
					log.Printf("Refreshed %s access token", record.Provider)
				}
				return errors.Join(errs...)
			},
		},
	}
}
