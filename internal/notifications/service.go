package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/errors"
)

// Service creates and reads in-app notifications.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Notification, error)
	// CreateInTx stages the notification on the caller's transaction so it
	// commits atomically with the domain change it announces.
	CreateInTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

// CreateInput captures a notification for one recipient.
type CreateInput struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Content string
	Link    *string
}

type service struct {
	repo Repository
}

// NewService wires a notification service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notification repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Notification, error) {
	return s.create(ctx, s.repo, input)
}

func (s *service) CreateInTx(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Notification, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	return s.create(ctx, s.repo.WithTx(tx), input)
}

func (s *service) create(ctx context.Context, repo Repository, input CreateInput) (*models.Notification, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid notification type %q", input.Type)
	}
	if input.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	notification := &models.Notification{
		UserID:  input.UserID,
		Type:    input.Type,
		Content: input.Content,
		Link:    input.Link,
	}
	if err := repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return notification, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUserID(ctx, userID, limit, offset)
}

func (s *service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if id == uuid.Nil || userID == uuid.Nil {
		return fmt.Errorf("notification id and user id are required")
	}
	updated, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if !updated {
		return errors.New(errors.CodeNotFound, "notification not found or already read")
	}
	return nil
}
