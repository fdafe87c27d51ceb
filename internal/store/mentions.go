package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brandpulse/social-mentions-bot/internal/models"
)

var platformNames = map[string]string{
	models.PlatformFacebook:  "Facebook",
	models.PlatformInstagram: "Instagram",
	models.PlatformX:         "X",
	models.PlatformLinkedIn:  "LinkedIn",
}

// Store is the GORM-backed MentionStore
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Store over an already migrated database handle
func New(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// EnsurePlatform creates the platform row if it does not exist yet
func (s *Store) EnsurePlatform(ctx context.Context, id, name string) error {
	return ensurePlatform(s.db.WithContext(ctx), id, name)
}

// EnsureUser creates the user row on first sight. Existing rows are never updated.
func (s *Store) EnsureUser(ctx context.Context, user models.User) error {
	return ensureUser(s.db.WithContext(ctx), user)
}

// GetUser returns a stored author
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func ensurePlatform(tx *gorm.DB, id, name string) error {
	if name == "" {
		name = platformNames[id]
	}
	if name == "" {
		name = id
	}
	p := models.Platform{ID: id, Name: name}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
		return fmt.Errorf("failed to ensure platform %s: %w", id, err)
	}
	return nil
}

func ensureUser(tx *gorm.DB, user models.User) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", user.ID, err)
	}
	return nil
}

// UpsertIfNew inserts posts whose id is not stored yet and returns how many
// were inserted. The batch runs in one transaction.
func (s *Store) UpsertIfNew(ctx context.Context, posts []models.RawPost, platformID string) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePlatform(tx, platformID, ""); err != nil {
			return err
		}

		for _, post := range posts {
			if post.ID == "" {
				continue
			}

			var count int64
			if err := tx.Model(&models.MentionPost{}).Where("id = ?", post.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			authorID := post.Author.ID
			if authorID == "" {
				authorID = platformID + ":unknown"
			}
			if err := ensureUser(tx, models.User{
				ID:          authorID,
				Username:    post.Author.Username,
				DisplayName: post.Author.DisplayName,
				PlatformID:  platformID,
			}); err != nil {
				return err
			}

			createdAt := post.CreatedAt.UTC()
			if post.CreatedAt.IsZero() {
				createdAt = s.now()
			}
			mention := models.MentionPost{
				ID:         post.ID,
				PlatformID: platformID,
				UserID:     authorID,
				Text:       post.Text,
				CreatedAt:  createdAt,
				MediaURL:   optional(post.MediaURL),
				Permalink:  optional(post.Permalink),
			}
			if err := tx.Create(&mention).Error; err != nil {
				return fmt.Errorf("failed to insert mention %s: %w", post.ID, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"platform": platformID,
		"received": len(posts),
		"inserted": inserted,
	}).Debug("Stored new mentions")
	return inserted, nil
}

// ListUnreplied returns mentions that have not been answered, oldest first
func (s *Store) ListUnreplied(ctx context.Context) ([]models.MentionPost, error) {
	var mentions []models.MentionPost
	err := s.db.WithContext(ctx).
		Where("is_reply = ?", false).
		Order("created_at ASC").
		Find(&mentions).Error
	return mentions, err
}

// GetMention returns one mention by id
func (s *Store) GetMention(ctx context.Context, id string) (*models.MentionPost, error) {
	var mention models.MentionPost
	if err := s.db.WithContext(ctx).First(&mention, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &mention, nil
}

// MarkReplied records the sent reply in a single update. A second call overwrites the first.
func (s *Store) MarkReplied(ctx context.Context, id, remoteID, text string) error {
	res := s.db.WithContext(ctx).
		Model(&models.MentionPost{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_reply":           true,
			"replied_to_post_id": remoteID,
			"reply_message":      text,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSentiment stores a positive, negative or neutral label as provided
func (s *Store) SetSentiment(ctx context.Context, id, label string) error {
	label = strings.TrimSpace(label)
	if _, ok := models.NormalizeSentiment(label); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSentiment, label)
	}

	res := s.db.WithContext(ctx).
		Model(&models.MentionPost{}).
		Where("id = ?", id).
		Update("sentiment", label)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPriority stores the follow-up priority of a negative mention
func (s *Store) SetPriority(ctx context.Context, id string, priority int) error {
	if priority < 1 || priority > 4 {
		return ErrInvalidPriority
	}

	res := s.db.WithContext(ctx).
		Model(&models.MentionPost{}).
		Where("id = ?", id).
		Update("priority", priority)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
