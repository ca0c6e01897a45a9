package wallets

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pradiptarana/jokipay-backend/internal/ledger"
	"github.com/pradiptarana/jokipay-backend/internal/notifications"
	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	"github.com/pradiptarana/jokipay-backend/pkg/errors"
)

// RequestPayoutInput captures a withdrawal request from a seller.
type RequestPayoutInput struct {
	UserID          uuid.UUID
	PayoutAccountID uuid.UUID
	Amount          int64
}

// PayoutDecisionInput carries an admin decision on a pending payout request.
type PayoutDecisionInput struct {
	RequestID   uuid.UUID
	AdminUserID uuid.UUID
	AdminNotes  *string
}

// RequestPayout reserves the requested amount by debiting the wallet and
// recording a pending payout request in the same transaction. Funds never
// leave the ledger until an admin decides the request.
func (s *service) RequestPayout(ctx context.Context, input RequestPayoutInput) (*models.PayoutRequest, error) {
	if input.UserID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	if input.PayoutAccountID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "payout account id required")
	}
	if input.Amount < s.cfg.MinimumAmount {
		return nil, errors.New(errors.CodeValidation,
			fmt.Sprintf("payout amount must be at least Rp %d", s.cfg.MinimumAmount))
	}

	account, err := s.repo.FindPayoutAccountByID(ctx, input.PayoutAccountID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "payout account not found")
		}
		return nil, fmt.Errorf("finding payout account: %w", err)
	}
	if account.UserID != input.UserID {
		return nil, errors.New(errors.CodeForbidden, "payout account belongs to another user")
	}

	var request *models.PayoutRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		wallet, err := repo.FindWalletByUserID(ctx, input.UserID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "wallet not found")
			}
			return fmt.Errorf("finding wallet: %w", err)
		}

		request = &models.PayoutRequest{
			WalletID:        wallet.ID,
			UserID:          input.UserID,
			PayoutAccountID: account.ID,
			Amount:          input.Amount,
			Status:          enums.PayoutStatusPending,
		}
		if err := repo.CreatePayoutRequest(ctx, request); err != nil {
			return fmt.Errorf("creating payout request: %w", err)
		}

		_, err = s.DebitInTx(ctx, tx, wallet.ID, ledger.PostInput{
			Amount:          input.Amount,
			Type:            enums.WalletTransactionPayoutRequested,
			PayoutRequestID: &request.ID,
			Description:     fmt.Sprintf("Payout request to %s %s", account.BankName, account.AccountNumber),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, input.UserID.String())
	s.logg.Info(ctx, "payout requested")
	return request, nil
}

func (s *service) ListPayoutRequests(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutRequest, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user identity missing")
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPayoutRequestsByUserID(ctx, userID, limit, offset)
}

func (s *service) ListPendingPayouts(ctx context.Context, limit, offset int) ([]models.PayoutRequest, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPayoutRequestsByStatus(ctx, enums.PayoutStatusPending, limit, offset)
}

// ApprovePayout marks a pending request completed. The funds were already
// debited when the request was created, so no balance moves here.
func (s *service) ApprovePayout(ctx context.Context, input PayoutDecisionInput) (*models.PayoutRequest, error) {
	request, err := s.decidePayout(ctx, input, enums.PayoutStatusCompleted, func(tx *gorm.DB, request *models.PayoutRequest) error {
		_, err := s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
			UserID:  request.UserID,
			Type:    enums.NotificationTypeWallet,
			Content: fmt.Sprintf("Your payout of Rp %d has been completed.", request.Amount),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncPayoutDecision("approved")
	return request, nil
}

// RejectPayout marks a pending request rejected and credits the reserved
// amount back to the wallet in the same transaction.
func (s *service) RejectPayout(ctx context.Context, input PayoutDecisionInput) (*models.PayoutRequest, error) {
	request, err := s.decidePayout(ctx, input, enums.PayoutStatusRejected, func(tx *gorm.DB, request *models.PayoutRequest) error {
		_, err := s.ledger.Post(ctx, tx, ledger.PostInput{
			WalletID:        request.WalletID,
			Amount:          request.Amount,
			Type:            enums.WalletTransactionPayoutRejected,
			PayoutRequestID: &request.ID,
			Description:     "Payout request rejected, funds returned",
		})
		if err != nil {
			return err
		}

		content := fmt.Sprintf("Your payout of Rp %d was rejected and the funds were returned to your wallet.", request.Amount)
		if input.AdminNotes != nil && *input.AdminNotes != "" {
			content = fmt.Sprintf("%s Reason: %s", content, *input.AdminNotes)
		}
		_, err = s.notifier.CreateInTx(ctx, tx, notifications.CreateInput{
			UserID:  request.UserID,
			Type:    enums.NotificationTypeWallet,
			Content: content,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncPayoutDecision("rejected")
	return request, nil
}

func (s *service) decidePayout(
	ctx context.Context,
	input PayoutDecisionInput,
	to enums.PayoutStatus,
	afterTransition func(tx *gorm.DB, request *models.PayoutRequest) error,
) (*models.PayoutRequest, error) {
	if input.RequestID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "payout request id required")
	}
	if input.AdminUserID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "admin identity missing")
	}

	var request *models.PayoutRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindPayoutRequestByID(ctx, input.RequestID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New(errors.CodeNotFound, "payout request not found")
			}
			return fmt.Errorf("finding payout request: %w", err)
		}

		transitioned, err := repo.TransitionPayoutStatus(ctx, found.ID, to, input.AdminNotes)
		if err != nil {
			return fmt.Errorf("transitioning payout request: %w", err)
		}
		if !transitioned {
			return errors.New(errors.CodeStateConflict,
				fmt.Sprintf("payout request already %s", found.Status))
		}

		if err := afterTransition(tx, found); err != nil {
			return err
		}

		request, err = repo.FindPayoutRequestByID(ctx, found.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, request.UserID.String())
	s.logg.Info(ctx, fmt.Sprintf("payout request %s", request.Status))
	return request, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
