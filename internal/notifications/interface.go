package notifications

import (
	"context"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// Notifier defines the contract for notification services
type Notifier interface {
	SendTicketAlert(ctx context.Context, tickets []models.Ticket) error
	SendDigest(ctx context.Context, digest *models.Digest) error
}
