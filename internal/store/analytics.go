package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

func (s *Store) window(days int) models.TimePeriod {
	end := s.now()
	return models.TimePeriod{Start: end.AddDate(0, 0, -days), End: end}
}

// SentimentCounts counts classified mentions created in the last days, grouping labels case-insensitively
func (s *Store) SentimentCounts(ctx context.Context, days int) (*models.SentimentStats, error) {
	period := s.window(days)

	var rows []struct {
		Label string
		Count int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.MentionPost{}).
		Select("LOWER(sentiment) AS label, COUNT(*) AS count").
		Where("created_at BETWEEN ? AND ? AND sentiment IS NOT NULL", period.Start, period.End).
		Group("LOWER(sentiment)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &models.SentimentStats{TimePeriod: period}
	for _, r := range rows {
		switch r.Label {
		case models.SentimentPositive:
			stats.Positive = r.Count
		case models.SentimentNegative:
			stats.Negative = r.Count
		case models.SentimentNeutral:
			stats.Neutral = r.Count
		}
		stats.Total += r.Count
	}
	return stats, nil
}

// TicketStats summarizes follow-up of negative mentions created in the last days
func (s *Store) TicketStats(ctx context.Context, days int) (*models.TicketStats, error) {
	period := s.window(days)

	base := func() *gorm.DB {
		return s.db.WithContext(ctx).
			Model(&models.MentionPost{}).
			Where("created_at BETWEEN ? AND ? AND LOWER(sentiment) = ?", period.Start, period.End, models.SentimentNegative)
	}

	stats := &models.TicketStats{TimePeriod: period}
	if err := base().Count(&stats.TotalTickets).Error; err != nil {
		return nil, err
	}
	if err := base().Where("ticket_resolved = ?", true).Count(&stats.Resolved).Error; err != nil {
		return nil, err
	}
	stats.Pending = stats.TotalTickets - stats.Resolved
	if stats.TotalTickets > 0 {
		stats.ResolutionRate = float64(stats.Resolved) / float64(stats.TotalTickets) * 100
	}
	return stats, nil
}

// ReplyAnalytics counts replies sent for mentions created in the last days
func (s *Store) ReplyAnalytics(ctx context.Context, days int) (*models.ReplyStats, error) {
	period := s.window(days)

	base := func() *gorm.DB {
		return s.db.WithContext(ctx).
			Model(&models.MentionPost{}).
			Where("created_at BETWEEN ? AND ? AND is_reply = ? AND reply_message IS NOT NULL", period.Start, period.End, true)
	}

	stats := &models.ReplyStats{TimePeriod: period, ByPlatform: map[string]int64{}}
	if err := base().Count(&stats.TotalReplies).Error; err != nil {
		return nil, err
	}
	if err := base().Distinct("user_id").Count(&stats.UniqueUsersReplied).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		PlatformID string
		Count      int64
	}
	if err := base().
		Select("platform_id, COUNT(*) AS count").
		Group("platform_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByPlatform[r.PlatformID] = r.Count
	}
	return stats, nil
}

// UserHistory returns the user's answered mentions, most recent first
func (s *Store) UserHistory(ctx context.Context, userID string, limit int) ([]models.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}

	var mentions []models.MentionPost
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND reply_message IS NOT NULL", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&mentions).Error
	if err != nil {
		return nil, err
	}

	history := make([]models.Interaction, 0, len(mentions))
	for _, m := range mentions {
		in := models.Interaction{
			UserPost:  m.Text,
			Platform:  m.PlatformID,
			CreatedAt: m.CreatedAt,
		}
		if m.ReplyMessage != nil {
			in.Reply = *m.ReplyMessage
		}
		if m.Sentiment != nil {
			in.Sentiment = *m.Sentiment
		}
		history = append(history, in)
	}
	return history, nil
}
