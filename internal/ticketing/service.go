package ticketing

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/notifications"
)

// ErrTicketing is the only error a failed batch reports
var ErrTicketing = errors.New("failed to raise tickets; no tickets were created")

// ticketStore is the part of the mention store ticketing needs
type ticketStore interface {
	RaiseTickets(ctx context.Context) ([]models.Ticket, error)
}

// Service converts negative, unresolved mentions into tickets
type Service struct {
	store    ticketStore
	notifier notifications.Notifier
}

// NewService creates a ticketing service. notifier may be nil.
func NewService(store ticketStore, notifier notifications.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// RaiseTicketsForNegativeUnresolved creates tickets for every negative mention
// without one. The batch is all-or-nothing; new tickets are announced best-effort.
func (s *Service) RaiseTicketsForNegativeUnresolved(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := s.store.RaiseTickets(ctx)
	if err != nil {
		logrus.Errorf("Ticket batch rolled back: %v", err)
		return nil, ErrTicketing
	}

	if len(tickets) > 0 && s.notifier != nil {
		if err := s.notifier.SendTicketAlert(ctx, tickets); err != nil {
			logrus.Warnf("Failed to announce %d new tickets: %v", len(tickets), err)
		}
	}
	return tickets, nil
}
