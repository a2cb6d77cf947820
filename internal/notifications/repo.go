package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/pagination"
)

// Repository persists a user's inbox.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, query inboxQuery) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (readOutcome, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

type inboxQuery struct {
	UserID     uuid.UUID
	Cursor     *pagination.Cursor
	Limit      int
	UnreadOnly bool
}

type readOutcome int

const (
	readMissing readOutcome = iota
	readAlready
	readMarked
)

type store struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &store{db: db}
}

func (s *store) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (s *store) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(notification).Error
}

func (s *store) List(ctx context.Context, query inboxQuery) ([]models.Notification, error) {
	q := s.inbox(ctx, query.UserID)
	if query.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var rows []models.Notification
	err := q.Scopes(pagination.Newest(query.Cursor, query.Limit)).Find(&rows).Error
	return rows, err
}

// MarkRead stamps read_at once. A second call on the same row reports
// readAlready; a row owned by someone else reports readMissing.
func (s *store) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (readOutcome, error) {
	res := s.inbox(ctx, userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if res.Error != nil {
		return readMissing, res.Error
	}
	if res.RowsAffected > 0 {
		return readMarked, nil
	}

	var n int64
	if err := s.inbox(ctx, userID).Where("id = ?", notificationID).Count(&n).Error; err != nil {
		return readMissing, err
	}
	if n == 0 {
		return readMissing, nil
	}
	return readAlready, nil
}

func (s *store) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := s.inbox(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}
