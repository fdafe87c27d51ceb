package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/brandpulse/social-mentions-bot/internal/metrics"
	"github.com/brandpulse/social-mentions-bot/internal/models"
	"github.com/brandpulse/social-mentions-bot/internal/sentiment"
	"github.com/brandpulse/social-mentions-bot/internal/sources"
	"github.com/brandpulse/social-mentions-bot/internal/storage"
	"github.com/brandpulse/social-mentions-bot/internal/store"
)

// ErrAlreadyReplied is reported when a mention was answered since it was listed
var ErrAlreadyReplied = errors.New("mention already replied")

// ErrUnknownPlatform is returned for platform codes with no registered client
var ErrUnknownPlatform = errors.New("unknown platform")

// TicketRaiser converts negative mentions into tickets
type TicketRaiser interface {
	RaiseTicketsForNegativeUnresolved(ctx context.Context) ([]models.Ticket, error)
}

// Service runs the fetch, classify, reply and ticket steps of a cycle
type Service struct {
	store      store.MentionStore
	sources    *sources.Set
	classifier sentiment.Classifier
	tickets    TicketRaiser
	archive    *storage.ReportArchive

	now  func() time.Time
	mu   sync.RWMutex
	last *models.CycleReport
}

// NewService creates a monitoring service. archive may be nil.
func NewService(st store.MentionStore, srcs *sources.Set, classifier sentiment.Classifier, tickets TicketRaiser, archive *storage.ReportArchive) *Service {
	return &Service{
		store:      st,
		sources:    srcs,
		classifier: classifier,
		tickets:    tickets,
		archive:    archive,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Sources exposes the platform clients
func (s *Service) Sources() *sources.Set {
	return s.sources
}

func (s *Service) source(platform string) (sources.Source, error) {
	src, ok := s.sources.Get(platform)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return src, nil
}

// FetchPlatform pulls mentions from one platform and persists the new ones
func (s *Service) FetchPlatform(ctx context.Context, platform string, creds sources.Credentials) ([]models.RawPost, int, error) {
	src, err := s.source(platform)
	if err != nil {
		return nil, 0, err
	}

	posts, err := src.FetchMentions(ctx, creds)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(platform).Inc()
		return nil, 0, err
	}
	metrics.MentionsFetched.WithLabelValues(platform).Add(float64(len(posts)))

	inserted, err := s.store.UpsertIfNew(ctx, posts, platform)
	if err != nil {
		return posts, 0, fmt.Errorf("failed to store %s mentions: %w", platform, err)
	}
	metrics.MentionsInserted.WithLabelValues(platform).Add(float64(inserted))
	return posts, inserted, nil
}

// FetchAll fetches every enabled platform concurrently. A failing platform is
// recorded in its outcome and never aborts the others.
func (s *Service) FetchAll(ctx context.Context) []models.PlatformOutcome {
	enabled := s.sources.Enabled()
	outcomes := make([]models.PlatformOutcome, len(enabled))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range enabled {
		g.Go(func() error {
			name := src.GetName()
			outcome := models.PlatformOutcome{Platform: name}

			posts, inserted, err := s.FetchPlatform(gctx, name, sources.Credentials{})
			outcome.Fetched = len(posts)
			outcome.Inserted = inserted
			if err != nil {
				logrus.WithField("platform", name).Errorf("Error fetching mentions: %v", err)
				outcome.Error = err.Error()
			} else {
				logrus.WithField("platform", name).Infof("Fetched %d mentions, %d new", len(posts), inserted)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// ProcessUnreplied classifies and answers every unreplied mention in order
// of creation. Each mention gets its own outcome.
func (s *Service) ProcessUnreplied(ctx context.Context) ([]models.MentionOutcome, error) {
	mentions, err := s.store.ListUnreplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreplied mentions: %w", err)
	}
	if len(mentions) == 0 {
		logrus.Info("No unreplied mentions found")
		return nil, nil
	}

	var outcomes []models.MentionOutcome
	for _, m := range mentions {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome, err := s.ProcessMention(ctx, m.ID)
		if errors.Is(err, ErrAlreadyReplied) {
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// ProcessMention drafts and sends the reply for one mention. The sentiment is
// recorded even when the reply cannot be delivered.
func (s *Service) ProcessMention(ctx context.Context, mentionID string) (models.MentionOutcome, error) {
	outcome := models.MentionOutcome{MentionID: mentionID}
	fail := func(err error) (models.MentionOutcome, error) {
		outcome.Error = err.Error()
		metrics.Replies.WithLabelValues(outcome.Platform, "failed").Inc()
		logrus.WithFields(logrus.Fields{
			"mention_id": mentionID,
			"platform":   outcome.Platform,
		}).Errorf("Failed to process mention: %v", err)
		return outcome, err
	}

	// Re-read so a reply sent since the listing is not repeated
	mention, err := s.store.GetMention(ctx, mentionID)
	if err != nil {
		outcome.Error = err.Error()
		return outcome, err
	}
	outcome.Platform = mention.PlatformID
	if mention.IsReply {
		return outcome, ErrAlreadyReplied
	}

	src, err := s.source(mention.PlatformID)
	if err != nil {
		return fail(err)
	}
	if !src.IsEnabled() {
		return fail(fmt.Errorf("%w: %s", sources.ErrMissingCredentials, mention.PlatformID))
	}

	user, err := s.store.GetUser(ctx, mention.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fail(err)
	}
	history, err := s.store.UserHistory(ctx, mention.UserID, sentiment.MaxHistory)
	if err != nil {
		return fail(err)
	}

	draft, err := s.classifier.ClassifyAndDraft(ctx, *mention, user, history)
	if err != nil {
		return fail(err)
	}
	if mention.Sentiment != nil {
		// A mention is labelled once; retries after a failed reply keep it
		draft = draft.WithLabel(*mention.Sentiment)
	} else if err := s.recordClassification(ctx, mention.ID, draft); err != nil {
		return fail(err)
	}
	outcome.Sentiment = draft.Sentiment

	result, err := src.Reply(ctx, mention.ID, draft.ReplyText, sources.Credentials{})
	if err != nil {
		return fail(err)
	}
	if err := s.store.MarkReplied(ctx, mention.ID, result.RemoteID, draft.ReplyText); err != nil {
		return fail(err)
	}

	outcome.ReplyID = result.RemoteID
	metrics.Replies.WithLabelValues(outcome.Platform, "sent").Inc()
	logrus.WithFields(logrus.Fields{
		"mention_id": mention.ID,
		"platform":   mention.PlatformID,
		"sentiment":  draft.Sentiment,
	}).Info("Replied to mention")
	return outcome, nil
}

func (s *Service) recordClassification(ctx context.Context, mentionID string, draft sentiment.Draft) error {
	if err := s.store.SetSentiment(ctx, mentionID, draft.Sentiment); err != nil {
		return err
	}
	if draft.IsNegative() && draft.Priority != nil {
		return s.store.SetPriority(ctx, mentionID, *draft.Priority)
	}
	return nil
}

// SendReply posts a reply on the platform and records it on the mention when
// the mention is known locally.
func (s *Service) SendReply(ctx context.Context, platform, postID, text string, creds sources.Credentials) (models.ReplyResult, error) {
	src, err := s.source(platform)
	if err != nil {
		return models.ReplyResult{}, err
	}

	result, err := src.Reply(ctx, postID, text, creds)
	if err != nil {
		metrics.Replies.WithLabelValues(platform, "failed").Inc()
		return models.ReplyResult{}, err
	}
	metrics.Replies.WithLabelValues(platform, "sent").Inc()

	err = s.store.MarkReplied(ctx, postID, result.RemoteID, text)
	switch {
	case errors.Is(err, store.ErrNotFound):
		logrus.WithField("post_id", postID).Debug("Replied to a post that is not stored locally")
	case err != nil:
		return result, fmt.Errorf("reply sent but not recorded: %w", err)
	}
	return result, nil
}

// RaiseTickets creates tickets for negative mentions that have none
func (s *Service) RaiseTickets(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := s.tickets.RaiseTicketsForNegativeUnresolved(ctx)
	if err != nil {
		return nil, err
	}
	metrics.TicketsRaised.Add(float64(len(tickets)))
	return tickets, nil
}

// RunCycle performs one full pass: fetch, process, raise tickets, archive.
// Step failures are recorded in the report; only a failure to list unreplied
// mentions is returned.
func (s *Service) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	report := &models.CycleReport{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
	}
	logrus.WithField("cycle_id", report.ID).Info("Starting autonomous cycle")

	report.Fetch = s.FetchAll(ctx)

	processed, err := s.ProcessUnreplied(ctx)
	report.Processed = processed

	if err == nil {
		tickets, terr := s.RaiseTickets(ctx)
		if terr != nil {
			report.TicketError = terr.Error()
		}
		report.Tickets = tickets
	}

	report.FinishedAt = s.now()
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	report.Duration = elapsed.String()
	metrics.CycleDuration.Observe(elapsed.Seconds())

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if s.archive != nil {
		if aerr := s.archive.Save(ctx, report); aerr != nil {
			logrus.Warnf("Failed to archive cycle report %s: %v", report.ID, aerr)
		}
	}

	logrus.WithFields(logrus.Fields{
		"cycle_id": report.ID,
		"replied":  report.Replied(),
		"failed":   report.Failed(),
		"tickets":  len(report.Tickets),
		"duration": report.Duration,
	}).Info("Autonomous cycle completed")
	return report, err
}

// LastReport returns the most recent cycle report, or nil before the first cycle
func (s *Service) LastReport() *models.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Reports exposes the report archive, which may be nil
func (s *Service) Reports() *storage.ReportArchive {
	return s.archive
}
