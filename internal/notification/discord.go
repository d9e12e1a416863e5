package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/shinkrosrc/internal/domain"
)

// DiscordService implements NotificationService for Discord webhooks
type DiscordService struct {
	log        zerolog.Logger
	webhookURL string
	httpClient *http.Client
}

// NewDiscordService creates a new Discord notification service
func NewDiscordService(log zerolog.Logger, webhookURL string) *DiscordService {
	return &DiscordService{
		log:        log.With().Str("module", "notification").Str("type", "discord").Logger(),
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendSuccess reports a finished analysis run
func (s *DiscordService) SendSuccess(ctx context.Context, run domain.AnalysisRun) error {
	if s.webhookURL == "" {
		return nil
	}

	validation := "skipped"
	if run.Validated {
		validation = "failed"
		if run.Valid {
			validation = "passed"
		}
	}

	saved := "no"
	if run.Saved {
		saved = "yes"
	}

	embed := discordEmbed{
		Title:       "Provider Analysis Completed",
		Description: fmt.Sprintf("Analyzed %s", run.URL),
		Color:       0x00ff00,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []discordField{
			{Name: "Provider", Value: run.Slug, Inline: true},
			{Name: "Template", Value: fmt.Sprintf("%s (score %d)", run.TemplateID, run.Score), Inline: true},
			{Name: "Validation", Value: validation, Inline: true},
			{Name: "Saved", Value: saved, Inline: true},
			{Name: "Duration", Value: run.Duration.Round(time.Millisecond).String(), Inline: true},
		},
	}

	return s.sendWebhook(ctx, discordWebhook{Embeds: []discordEmbed{embed}})
}

// SendError reports a failed analysis of url
func (s *DiscordService) SendError(ctx context.Context, url string, err error) error {
	if s.webhookURL == "" {
		return nil
	}

	embed := discordEmbed{
		Title:       "Provider Analysis Failed",
		Description: fmt.Sprintf("Analysis of %s failed with error:\n```%s```", url, err.Error()),
		Color:       0xff0000,
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	return s.sendWebhook(ctx, discordWebhook{Embeds: []discordEmbed{embed}})
}

func (s *DiscordService) sendWebhook(ctx context.Context, payload discordWebhook) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to create webhook request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send webhook request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	s.log.Debug().Msg("Discord notification sent successfully")
	return nil
}

type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}
