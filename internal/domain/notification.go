package domain

import "context"

// NotificationService defines the interface for notification services
type NotificationService interface {
	// SendSuccess sends a notification for a completed analysis run
	SendSuccess(ctx context.Context, run AnalysisRun) error

	// SendError sends an error notification with error details
	SendError(ctx context.Context, url string, err error) error
}
