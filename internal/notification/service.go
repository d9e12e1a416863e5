// Package notification delivers analysis run reports.
package notification

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

// Service fans notifications out to every configured channel
type Service struct {
	discord *DiscordService
}

// NewService creates a notification service. An empty webhook URL disables Discord.
func NewService(log zerolog.Logger, webhookURL string) domain.NotificationService {
	var discord *DiscordService
	if webhookURL != "" {
		discord = NewDiscordService(log, webhookURL)
	}

	return &Service{
		discord: discord,
	}
}

func (s *Service) SendSuccess(ctx context.Context, run domain.AnalysisRun) error {
	if s.discord != nil {
		if err := s.discord.SendSuccess(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) SendError(ctx context.Context, url string, err error) error {
	if s.discord != nil {
		if err := s.discord.SendError(ctx, url, err); err != nil {
			return err
		}
	}
	return nil
}
