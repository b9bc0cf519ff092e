package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/mailer"
	"github.com/nexbit/tradecore/internal/metrics"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// TransferService
// ──────────────────────────────────────────────────────────────────────────────

// TransferService runs the two-phase internal transfer: Initiate creates an
// intent and emails the sender a 6-digit code; Confirm verifies the code and
// moves the money in a single transaction. No balance changes before a
// successful confirm.
type TransferService struct {
	db           *sqlx.DB
	transferRepo *repository.TransferRepository
	walletRepo   *repository.WalletRepository
	userRepo     *repository.UserRepository
	mail         mailer.Sender
	cfg          *config.Config
}

// NewTransferService creates a TransferService.
func NewTransferService(
	db *sqlx.DB,
	transferRepo *repository.TransferRepository,
	walletRepo *repository.WalletRepository,
	userRepo *repository.UserRepository,
	mail mailer.Sender,
	cfg *config.Config,
) *TransferService {
	return &TransferService{
		db:           db,
		transferRepo: transferRepo,
		walletRepo:   walletRepo,
		userRepo:     userRepo,
		mail:         mail,
		cfg:          cfg,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Initiate
// ──────────────────────────────────────────────────────────────────────────────

// Initiate resolves the recipient, creates an otp_pending intent, and issues a
// confirmation code to the sender's email. Issuing replaces any previous code
// for the sender. A failed email send is logged and the code stays usable —
// the sender can ask for a resend.
func (s *TransferService) Initiate(ctx context.Context, fromUserID uuid.UUID, toEmail string, amountUsd decimal.Decimal) (*domain.TransferIntent, error) {
	// ── 1. Validation ────────────────────────────────────────────────────────
	if amountUsd.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	sender, err := s.userRepo.GetByID(ctx, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("transfer_service.Initiate: sender: %w", err)
	}
	recipient, err := s.userRepo.GetByEmail(ctx, toEmail)
	if err != nil {
		return nil, fmt.Errorf("transfer_service.Initiate: recipient: %w", err)
	}
	if recipient.ID == sender.ID {
		return nil, domain.ErrSelfTransfer
	}

	// ── 2. Create the intent ─────────────────────────────────────────────────
	intent := &domain.TransferIntent{
		ID:         uuid.New(),
		FromUserID: sender.ID,
		FromEmail:  sender.Email,
		ToUserID:   recipient.ID,
		ToEmail:    recipient.Email,
		AmountUsd:  amountUsd.RoundDown(4),
		Status:     domain.TransferOtpPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err = s.transferRepo.CreateIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("transfer_service.Initiate: create intent: %w", err)
	}

	// ── 3. Issue and send the code ───────────────────────────────────────────
	if err = s.issueCode(ctx, sender.Email); err != nil {
		return nil, fmt.Errorf("transfer_service.Initiate: issue code: %w", err)
	}
	return intent, nil
}

// ResendCode re-issues the sender's confirmation code, replacing the stored
// one.
func (s *TransferService) ResendCode(ctx context.Context, fromUserID uuid.UUID) error {
	sender, err := s.userRepo.GetByID(ctx, fromUserID)
	if err != nil {
		return fmt.Errorf("transfer_service.ResendCode: %w", err)
	}
	if err := s.issueCode(ctx, sender.Email); err != nil {
		return fmt.Errorf("transfer_service.ResendCode: %w", err)
	}
	return nil
}

// issueCode generates a 6-digit code, stores only its hash keyed by the
// sender's lowercased email, and emails the plaintext. The send runs after the
// store so a crash never leaves an emailed code that cannot verify.
func (s *TransferService) issueCode(ctx context.Context, email string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	now := time.Now().UTC()
	otc := &domain.OneTimeCode{
		SubjectKey: domain.SubjectKeyFor(email),
		CodeHash:   domain.HashCode(code),
		Attempts:   0,
		ExpiresAt:  now.Add(domain.CodeTTL),
		CreatedAt:  now,
	}
	if err := s.transferRepo.UpsertCode(ctx, otc); err != nil {
		return err
	}

	if err := s.mail.SendConfirmationCode(ctx, email, code); err != nil {
		// The stored code stays valid; the user can request a resend.
		log.Printf("[transfer] WARN could not send code to %s: %v", email, err)
	}
	return nil
}

// generateCode returns a crypto-random 6-digit code, zero-padded.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Confirm
// ──────────────────────────────────────────────────────────────────────────────

// Confirm verifies the code and completes the transfer. Only the sender may
// confirm. An expired code is deleted and surfaced as ErrCodeExpired; a
// mismatch increments attempts and leaves the code usable. On a match, the
// debit, credit, code consumption, intent completion, and history row all
// commit together — insufficient funds roll everything back and the intent
// stays otp_pending.
func (s *TransferService) Confirm(ctx context.Context, transferID uuid.UUID, code string, callerID uuid.UUID) (*domain.TransferIntent, error) {
	// ── 1. Load and gate the intent ──────────────────────────────────────────
	intent, err := s.transferRepo.GetIntent(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("transfer_service.Confirm: %w", err)
	}
	if intent.FromUserID != callerID {
		return nil, domain.ErrForbidden
	}
	if intent.Status != domain.TransferOtpPending {
		return nil, domain.ErrInvalidOrderState
	}

	// ── 2. Verify the code ───────────────────────────────────────────────────
	subjectKey := domain.SubjectKeyFor(intent.FromEmail)
	otc, err := s.transferRepo.GetCode(ctx, subjectKey)
	if err != nil {
		return nil, fmt.Errorf("transfer_service.Confirm: code: %w", err)
	}
	if otc.IsExpired(time.Now().UTC()) {
		if delErr := s.transferRepo.DeleteCode(ctx, subjectKey); delErr != nil {
			log.Printf("[transfer] WARN could not delete expired code for %s: %v", subjectKey, delErr)
		}
		metrics.TransfersTotal.WithLabelValues("expired_code").Inc()
		return nil, domain.ErrCodeExpired
	}
	if !otc.Matches(code) {
		if incErr := s.transferRepo.IncrementAttempts(ctx, subjectKey); incErr != nil {
			log.Printf("[transfer] WARN could not count attempt for %s: %v", subjectKey, incErr)
		}
		metrics.TransfersTotal.WithLabelValues("invalid_code").Inc()
		return nil, domain.ErrInvalidCode
	}

	// ── 3. Atomic completion ─────────────────────────────────────────────────
	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return nil, fmt.Errorf("transfer_service.Confirm: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	// Status guard first: a concurrent confirm loses here and aborts before
	// any money moves.
	if txErr = s.transferRepo.MarkCompleted(ctx, tx, intent.ID); txErr != nil {
		return nil, fmt.Errorf("transfer_service.Confirm: mark completed: %w", txErr)
	}

	transferIDCopy := intent.ID
	txErr = s.walletRepo.Debit(ctx, tx, intent.FromUserID, domain.AccountReal, intent.AmountUsd,
		domain.EntryTransferOut, &transferIDCopy,
		fmt.Sprintf("Transfer to %s", intent.ToEmail))
	if txErr != nil {
		if errors.Is(txErr, domain.ErrInsufficientBalance) {
			metrics.TransfersTotal.WithLabelValues("insufficient").Inc()
		}
		return nil, fmt.Errorf("transfer_service.Confirm: debit: %w", txErr)
	}
	txErr = s.walletRepo.Credit(ctx, tx, intent.ToUserID, domain.AccountReal, intent.AmountUsd,
		domain.EntryTransferIn, &transferIDCopy,
		fmt.Sprintf("Transfer from %s", intent.FromEmail))
	if txErr != nil {
		return nil, fmt.Errorf("transfer_service.Confirm: credit: %w", txErr)
	}

	if txErr = s.transferRepo.DeleteCodeInTx(ctx, tx, subjectKey); txErr != nil {
		return nil, fmt.Errorf("transfer_service.Confirm: consume code: %w", txErr)
	}

	now := time.Now().UTC()
	rec := &domain.TransferRecord{
		ID:         uuid.New(),
		TransferID: intent.ID,
		FromUserID: intent.FromUserID,
		ToUserID:   intent.ToUserID,
		AmountUsd:  intent.AmountUsd,
		CreatedAt:  now,
	}
	if txErr = s.transferRepo.InsertRecord(ctx, tx, rec); txErr != nil {
		return nil, fmt.Errorf("transfer_service.Confirm: record: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("transfer_service.Confirm: commit: %w", txErr)
	}

	metrics.TransfersTotal.WithLabelValues("completed").Inc()
	log.Printf("[transfer] %s completed: %s USD from %s to %s",
		intent.ID, intent.AmountUsd.StringFixed(4), intent.FromEmail, intent.ToEmail)

	intent.Status = domain.TransferCompleted
	intent.CompletedAt = &now
	return intent, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetMyTransfers returns paginated transfer history for a user.
func (s *TransferService) GetMyTransfers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.TransferRecord, error) {
	records, err := s.transferRepo.ListRecordsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transfer_service.GetMyTransfers: %w", err)
	}
	return records, nil
}
