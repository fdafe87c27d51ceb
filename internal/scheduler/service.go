package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/notifications"
)

// digestDays is the analytics window covered by one digest
const digestDays = 1

// AnalyticsSource provides the figures summarized in a digest
type AnalyticsSource interface {
	SentimentCounts(ctx context.Context, days int) (*models.SentimentStats, error)
	TicketStats(ctx context.Context, days int) (*models.TicketStats, error)
	ReplyAnalytics(ctx context.Context, days int) (*models.ReplyStats, error)
}

// Service sends the analytics digest on a cron schedule
type Service struct {
	schedule  string
	analytics AnalyticsSource
	notifier  notifications.Notifier
	cron      *cron.Cron
}

// NewService creates a digest scheduler. An empty schedule disables it.
func NewService(schedule string, analytics AnalyticsSource, notifier notifications.Notifier) *Service {
	return &Service{
		schedule:  schedule,
		analytics: analytics,
		notifier:  notifier,
		cron:      cron.New(cron.WithSeconds()),
	}
}

// Start registers the digest job and starts the cron loop
func (s *Service) Start() error {
	if s.schedule == "" || s.notifier == nil {
		logrus.Info("Analytics digest disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		logrus.Info("Starting scheduled analytics digest")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.SendDigest(ctx); err != nil {
			logrus.Errorf("Scheduled digest failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	logrus.Infof("Digest scheduler started with schedule %q", s.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running job
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Digest scheduler stopped")
	}
}

// BuildDigest collects the analytics for the last day
func (s *Service) BuildDigest(ctx context.Context) (*models.Digest, error) {
	sentiment, err := s.analytics.SentimentCounts(ctx, digestDays)
	if err != nil {
		return nil, fmt.Errorf("failed to count sentiment: %w", err)
	}
	tickets, err := s.analytics.TicketStats(ctx, digestDays)
	if err != nil {
		return nil, fmt.Errorf("failed to compute ticket stats: %w", err)
	}
	replies, err := s.analytics.ReplyAnalytics(ctx, digestDays)
	if err != nil {
		return nil, fmt.Errorf("failed to compute reply analytics: %w", err)
	}

	return &models.Digest{
		GeneratedAt: time.Now().UTC(),
		Sentiment:   *sentiment,
		Tickets:     *tickets,
		Replies:     *replies,
	}, nil
}

// SendDigest builds and sends one digest
func (s *Service) SendDigest(ctx context.Context) error {
	digest, err := s.BuildDigest(ctx)
	if err != nil {
		return err
	}
	return s.notifier.SendDigest(ctx, digest)
}
