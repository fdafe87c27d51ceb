package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

// TicketID derives the stable ticket id for a mention
func TicketID(m models.MentionPost) string {
	return fmt.Sprintf("TICKET_%s_%d", m.ID, m.CreatedAt.Unix())
}

// ResolveTicket marks a negative mention's follow-up as done. Mentions that
// are missing return ErrNotFound, non-negative ones ErrInvalidState, and
// neither case writes anything.
func (s *Store) ResolveTicket(ctx context.Context, mentionID string) (*models.MentionPost, error) {
	var mention models.MentionPost
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&mention, "id = ?", mentionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !mention.HasSentiment(models.SentimentNegative) {
			return fmt.Errorf("%w: only negative sentiment mentions can be resolved", ErrInvalidState)
		}

		if err := tx.Model(&mention).Update("ticket_resolved", true).Error; err != nil {
			return err
		}

		now := s.now()
		return tx.Model(&models.Ticket{}).
			Where("mention_post_id = ? AND resolved_at IS NULL", mentionID).
			Update("resolved_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	mention.TicketResolved = true
	return &mention, nil
}

// RaiseTickets creates a ticket for every negative mention whose follow-up is
// still open and flags the mention. All rows commit together or not at all.
func (s *Store) RaiseTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.MentionPost
		if err := tx.
			Where("LOWER(sentiment) = ? AND ticket_resolved = ?", models.SentimentNegative, false).
			Order("created_at ASC").
			Find(&pending).Error; err != nil {
			return err
		}

		now := s.now()
		for _, m := range pending {
			ticket := models.Ticket{
				ID:            TicketID(m),
				MentionPostID: m.ID,
				UserID:        m.UserID,
				PlatformID:    m.PlatformID,
				Priority:      m.Priority,
				CreatedAt:     now,
			}
			if err := tx.Create(&ticket).Error; err != nil {
				return fmt.Errorf("failed to create ticket for mention %s: %w", m.ID, err)
			}
			if err := tx.Model(&models.MentionPost{}).
				Where("id = ?", m.ID).
				Update("ticket_resolved", true).Error; err != nil {
				return fmt.Errorf("failed to flag mention %s: %w", m.ID, err)
			}
			tickets = append(tickets, ticket)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(tickets) > 0 {
		logrus.WithField("count", len(tickets)).Info("Raised tickets for negative mentions")
	}
	return tickets, nil
}

// ListTickets returns the most recent tickets, newest first
func (s *Store) ListTickets(ctx context.Context, limit int) ([]models.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	var tickets []models.Ticket
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&tickets).Error
	return tickets, err
}
