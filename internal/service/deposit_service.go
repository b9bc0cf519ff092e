package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/config"
	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/metrics"
	"github.com/nexbit/tradecore/internal/payments"
	"github.com/nexbit/tradecore/internal/repository"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// DepositService
// ──────────────────────────────────────────────────────────────────────────────

// DepositService handles the deposit/withdrawal intake: provider invoices and
// their webhook lifecycle, plus the manually-reviewed request queues.
type DepositService struct {
	db          *sqlx.DB
	depositRepo *repository.DepositRepository
	walletRepo  *repository.WalletRepository
	userRepo    *repository.UserRepository
	provider    *payments.Client
	settingsSvc *SettingsService
	cfg         *config.Config
}

// NewDepositService creates a DepositService.
func NewDepositService(
	db *sqlx.DB,
	depositRepo *repository.DepositRepository,
	walletRepo *repository.WalletRepository,
	userRepo *repository.UserRepository,
	provider *payments.Client,
	settingsSvc *SettingsService,
	cfg *config.Config,
) *DepositService {
	return &DepositService{
		db:          db,
		depositRepo: depositRepo,
		walletRepo:  walletRepo,
		userRepo:    userRepo,
		provider:    provider,
		settingsSvc: settingsSvc,
		cfg:         cfg,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateInvoice
// ──────────────────────────────────────────────────────────────────────────────

// CreateInvoice asks the provider for a hosted payment page and persists the
// intent keyed by the provider invoice id. The returned intent carries the URL
// the user is redirected to.
func (s *DepositService) CreateInvoice(ctx context.Context, userID uuid.UUID, payAsset string, amountUsd decimal.Decimal) (*domain.DepositIntent, error) {
	if amountUsd.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("deposit_service.CreateInvoice: %w", err)
	}

	orderID := uuid.New()
	invoice, err := s.provider.CreateInvoice(ctx, amountUsd, payAsset, orderID.String())
	if err != nil {
		return nil, fmt.Errorf("deposit_service.CreateInvoice: %w", err)
	}

	now := time.Now().UTC()
	intent := &domain.DepositIntent{
		ID:         orderID,
		InvoiceID:  invoice.ID,
		UserID:     user.ID,
		Email:      user.Email,
		AmountUsd:  amountUsd.RoundDown(4),
		PayAsset:   payAsset,
		PayAmount:  invoice.PayAmount,
		Status:     domain.IntentWaiting,
		PaymentURL: invoice.PaymentURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.depositRepo.CreateIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("deposit_service.CreateInvoice: persist: %w", err)
	}
	return intent, nil
}

// MinDepositAmount proxies the provider's minimum payable amount for an asset.
func (s *DepositService) MinDepositAmount(ctx context.Context, payAsset string) (decimal.Decimal, error) {
	min, err := s.provider.MinAmount(ctx, payAsset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("deposit_service.MinDepositAmount: %w", err)
	}
	return min, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// HandleWebhook
// ──────────────────────────────────────────────────────────────────────────────

// webhookPayload is the provider's IPN body. invoice_id arrives as a number or
// string depending on provider version, so it is parsed tolerantly.
type webhookPayload struct {
	InvoiceID     json.Number `json:"invoice_id"`
	PaymentStatus string      `json:"payment_status"`
	PayAmount     json.Number `json:"pay_amount"`
}

// HandleWebhook processes a payment webhook delivery. The signature is
// HMAC-SHA512 over the raw body, compared in constant time — a mismatch is
// ErrBadSignature and nothing is read from the payload. Unknown invoices are a
// success no-op. Replays against a credited intent change nothing. A final
// status credits the user exactly once, in one transaction with the intent
// transition and the approved deposit row for the admin ledger.
func (s *DepositService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	// ── 1. Verify before parsing ─────────────────────────────────────────────
	if !payments.VerifyIPN(rawBody, signature, s.cfg.Payments.IPNSecret) {
		metrics.WebhooksTotal.WithLabelValues("bad_signature").Inc()
		return domain.ErrBadSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return fmt.Errorf("deposit_service.HandleWebhook: parse: %w", err)
	}
	invoiceID := payload.InvoiceID.String()
	status := domain.IntentStatus(payload.PaymentStatus)

	// ── 2. Unknown invoice → acknowledged no-op ──────────────────────────────
	intent, err := s.depositRepo.GetIntentByInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			metrics.WebhooksTotal.WithLabelValues("unknown_invoice").Inc()
			log.Printf("[deposit] webhook for unknown invoice %s ignored", invoiceID)
			return nil
		}
		return fmt.Errorf("deposit_service.HandleWebhook: %w", err)
	}

	// ── 3. Replay against a credited intent → no-op ──────────────────────────
	if intent.Status.AlreadyCredited() {
		metrics.WebhooksTotal.WithLabelValues("replay").Inc()
		return nil
	}

	// ── 4. Non-final statuses are just recorded ──────────────────────────────
	if !status.ShouldCredit() {
		if err := s.depositRepo.UpdateIntentStatus(ctx, invoiceID, status); err != nil {
			return fmt.Errorf("deposit_service.HandleWebhook: record status: %w", err)
		}
		metrics.WebhooksTotal.WithLabelValues("recorded").Inc()
		return nil
	}

	// ── 5. Final status → credit exactly once ────────────────────────────────
	if err := s.creditIntent(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			// A concurrent delivery credited first; this replay is a success.
			metrics.WebhooksTotal.WithLabelValues("replay").Inc()
			return nil
		}
		return err
	}
	metrics.WebhooksTotal.WithLabelValues("credited").Inc()
	return nil
}

// creditIntent funds the wallet and finalises the intent in one transaction.
func (s *DepositService) creditIntent(ctx context.Context, intent *domain.DepositIntent) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deposit_service.creditIntent: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Row lock + credited guard: the idempotency gate for concurrent replays.
	locked, err := s.depositRepo.GetIntentByInvoiceForUpdate(ctx, tx, intent.InvoiceID)
	if err != nil {
		return fmt.Errorf("deposit_service.creditIntent: lock: %w", err)
	}
	if locked.Status.AlreadyCredited() {
		err = domain.ErrAlreadyProcessed
		return err
	}

	if err = s.depositRepo.MarkCredited(ctx, tx, locked.InvoiceID); err != nil {
		return fmt.Errorf("deposit_service.creditIntent: mark: %w", err)
	}

	intentID := locked.ID
	err = s.walletRepo.Credit(ctx, tx, locked.UserID, domain.AccountReal, locked.AmountUsd,
		domain.EntryDeposit, &intentID,
		fmt.Sprintf("Deposit confirmed: invoice %s", locked.InvoiceID))
	if err != nil {
		return fmt.Errorf("deposit_service.creditIntent: credit: %w", err)
	}

	// Approved deposit row so the admin ledger shows provider deposits next to
	// manual ones.
	now := time.Now().UTC()
	row := &domain.DepositRequest{
		ID:          uuid.New(),
		UserID:      locked.UserID,
		AmountUsd:   locked.AmountUsd,
		Asset:       locked.PayAsset,
		TxID:        locked.InvoiceID,
		Status:      domain.ReviewApproved,
		RequestedAt: now,
		ReviewedAt:  &now,
	}
	if _, insErr := tx.NamedExecContext(ctx, `
		INSERT INTO deposit_requests
			(id, user_id, amount_usd, asset, tx_id, screenshot_url, status, requested_at, reviewed_at)
		VALUES
			(:id, :user_id, :amount_usd, :asset, :tx_id, :screenshot_url, :status, :requested_at, :reviewed_at)`,
		row); insErr != nil {
		err = fmt.Errorf("deposit_service.creditIntent: ledger row: %w", insErr)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("deposit_service.creditIntent: commit: %w", err)
	}

	log.Printf("[deposit] invoice %s credited: %s USD to user %s",
		locked.InvoiceID, locked.AmountUsd.StringFixed(4), locked.UserID)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Manual intake
// ──────────────────────────────────────────────────────────────────────────────

// SubmitDepositRequest records a manual deposit claim for admin review.
func (s *DepositService) SubmitDepositRequest(ctx context.Context, userID uuid.UUID, amountUsd decimal.Decimal, asset, txID, screenshotURL string) (*domain.DepositRequest, error) {
	if amountUsd.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	req := &domain.DepositRequest{
		ID:            uuid.New(),
		UserID:        userID,
		AmountUsd:     amountUsd.RoundDown(4),
		Asset:         asset,
		TxID:          txID,
		ScreenshotURL: screenshotURL,
		Status:        domain.ReviewPending,
		RequestedAt:   time.Now().UTC(),
	}
	if err := s.depositRepo.CreateDepositRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("deposit_service.SubmitDepositRequest: %w", err)
	}
	return req, nil
}

// SubmitWithdrawRequest records a withdrawal request. The fee comes from the
// current settings snapshot; the wallet is only checked, not debited — the
// debit happens at approval.
func (s *DepositService) SubmitWithdrawRequest(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, asset, address string) (*domain.WithdrawRequest, error) {
	settings := s.settingsSvc.Snapshot()
	if amount.LessThan(settings.WithdrawMinUsd) {
		return nil, domain.ErrBelowMinWithdraw
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("deposit_service.SubmitWithdrawRequest: %w", err)
	}
	if wallet.RealBalance.LessThan(amount) {
		return nil, domain.ErrInsufficientBalance
	}

	// Daily cap counts everything not rejected, including still-pending
	// requests, so a user cannot queue past the limit.
	dailyTotal, err := s.walletRepo.GetDailyWithdrawTotal(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("deposit_service.SubmitWithdrawRequest: %w", err)
	}
	if dailyTotal.Add(amount).GreaterThan(settings.WithdrawDailyMax) {
		return nil, domain.ErrWithdrawLimitExceeded
	}

	req := &domain.WithdrawRequest{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount.RoundDown(4),
		Fee:         settings.WithdrawFee(amount),
		Asset:       asset,
		Address:     address,
		Status:      domain.ReviewPending,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.depositRepo.CreateWithdrawRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("deposit_service.SubmitWithdrawRequest: %w", err)
	}
	return req, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Back-office review
// ──────────────────────────────────────────────────────────────────────────────

// ApproveDeposit credits the wallet for a pending manual deposit. The pending
// guard in the review update makes a repeated approval a no-op.
func (s *DepositService) ApproveDeposit(ctx context.Context, requestID, reviewerID uuid.UUID, note string) (err error) {
	req, err := s.depositRepo.GetDepositRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("deposit_service.ApproveDeposit: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deposit_service.ApproveDeposit: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.depositRepo.ReviewDepositRequest(ctx, tx, requestID, domain.ReviewApproved, reviewerID, note); err != nil {
		return fmt.Errorf("deposit_service.ApproveDeposit: review: %w", err)
	}

	reqID := req.ID
	err = s.walletRepo.Credit(ctx, tx, req.UserID, domain.AccountReal, req.AmountUsd,
		domain.EntryDeposit, &reqID,
		fmt.Sprintf("Manual deposit approved: tx %s", req.TxID))
	if err != nil {
		return fmt.Errorf("deposit_service.ApproveDeposit: credit: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("deposit_service.ApproveDeposit: commit: %w", err)
	}
	return nil
}

// RejectDeposit marks a pending manual deposit rejected. No money moves.
func (s *DepositService) RejectDeposit(ctx context.Context, requestID, reviewerID uuid.UUID, note string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deposit_service.RejectDeposit: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.depositRepo.ReviewDepositRequest(ctx, tx, requestID, domain.ReviewRejected, reviewerID, note); err != nil {
		return fmt.Errorf("deposit_service.RejectDeposit: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("deposit_service.RejectDeposit: commit: %w", err)
	}
	return nil
}

// ApproveWithdraw debits the wallet for a pending withdrawal at approval time.
// Insufficient funds at this moment roll the approval back and surface to the
// reviewer.
func (s *DepositService) ApproveWithdraw(ctx context.Context, requestID, reviewerID uuid.UUID, note string) (err error) {
	req, err := s.depositRepo.GetWithdrawRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("deposit_service.ApproveWithdraw: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deposit_service.ApproveWithdraw: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.depositRepo.ReviewWithdrawRequest(ctx, tx, requestID, domain.ReviewApproved, reviewerID, note); err != nil {
		return fmt.Errorf("deposit_service.ApproveWithdraw: review: %w", err)
	}

	reqID := req.ID
	err = s.walletRepo.Debit(ctx, tx, req.UserID, domain.AccountReal, req.Amount,
		domain.EntryWithdraw, &reqID,
		fmt.Sprintf("Withdrawal approved: %s to %s (fee %s)",
			req.Asset, req.Address, req.Fee.StringFixed(2)))
	if err != nil {
		return fmt.Errorf("deposit_service.ApproveWithdraw: debit: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("deposit_service.ApproveWithdraw: commit: %w", err)
	}
	return nil
}

// RejectWithdraw marks a pending withdrawal rejected. The wallet was never
// debited, so nothing is released.
func (s *DepositService) RejectWithdraw(ctx context.Context, requestID, reviewerID uuid.UUID, note string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deposit_service.RejectWithdraw: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.depositRepo.ReviewWithdrawRequest(ctx, tx, requestID, domain.ReviewRejected, reviewerID, note); err != nil {
		return fmt.Errorf("deposit_service.RejectWithdraw: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("deposit_service.RejectWithdraw: commit: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Query helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetMyDeposits returns paginated provider deposit intents for a user.
func (s *DepositService) GetMyDeposits(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.DepositIntent, error) {
	intents, err := s.depositRepo.ListIntentsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("deposit_service.GetMyDeposits: %w", err)
	}
	return intents, nil
}
