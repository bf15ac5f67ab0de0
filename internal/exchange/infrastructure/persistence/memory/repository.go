package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

// AccountRepository 账户仓储的内存实现
type AccountRepository struct {
	store *Store
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(s *Store) *AccountRepository {
	return &AccountRepository{store: s}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	st, release := r.store.view(ctx)
	defer release()
	if _, exists := st.accounts[account.AccountID]; exists {
		return fmt.Errorf("%w: duplicate account %s", domain.ErrStorageFailure, account.AccountID)
	}
	balances := make(map[domain.Currency]decimal.Decimal, len(account.Balances))
	for ccy, amount := range account.Balances {
		balances[ccy] = amount
	}
	st.accounts[account.AccountID] = &accountRecord{account: *account, balances: balances}
	return nil
}

func (r *AccountRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.Account, error) {
	st, release := r.store.view(ctx)
	defer release()
	rec, ok := st.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return materialize(rec), nil
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	st, release := r.store.view(ctx)
	defer release()
	for _, rec := range st.accounts {
		if rec.account.UserID == userID {
			return materialize(rec), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

// GetForUpdate 事务本身串行化，这里等价于普通读取
func (r *AccountRepository) GetForUpdate(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.GetByAccountID(ctx, accountID)
}

func (r *AccountRepository) SaveBalances(ctx context.Context, account *domain.Account) error {
	st, release := r.store.view(ctx)
	defer release()
	rec, ok := st.accounts[account.AccountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	for ccy, amount := range account.Balances {
		if amount.IsNegative() {
			return fmt.Errorf("%w: %s %s", domain.ErrNegativeBalance, amount, ccy)
		}
		rec.balances[ccy] = amount
	}
	return nil
}

func materialize(rec *accountRecord) *domain.Account {
	account := rec.account
	account.Balances = make(map[domain.Currency]decimal.Decimal, len(rec.balances))
	for ccy, amount := range rec.balances {
		account.Balances[ccy] = amount
	}
	return &account
}

// MovementRepository 流水仓储的内存实现
type MovementRepository struct {
	store *Store
}

// NewMovementRepository 创建流水仓储
func NewMovementRepository(s *Store) *MovementRepository {
	return &MovementRepository{store: s}
}

func (r *MovementRepository) Append(ctx context.Context, movement *domain.Movement) error {
	st, release := r.store.view(ctx)
	defer release()
	clone := *movement
	st.movements = append(st.movements, &clone)
	return nil
}

func (r *MovementRepository) ListByAccount(ctx context.Context, accountID string, filter domain.MovementFilter) ([]*domain.Movement, error) {
	st, release := r.store.view(ctx)
	defer release()
	var matched []*domain.Movement
	for _, m := range st.movements {
		if m.AccountID != accountID {
			continue
		}
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		if filter.Currency != "" && m.Currency != filter.Currency {
			continue
		}
		if filter.From != nil && m.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !m.OccurredAt.Before(*filter.To) {
			continue
		}
		clone := *m
		matched = append(matched, &clone)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})
	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (r *MovementRepository) GetByCode(ctx context.Context, code string) (*domain.Movement, error) {
	st, release := r.store.view(ctx)
	defer release()
	for _, m := range st.movements {
		if m.Code == code {
			clone := *m
			return &clone, nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

// QuoteRepository 行情仓储的内存实现
type QuoteRepository struct {
	store *Store
}

// NewQuoteRepository 创建行情仓储
func NewQuoteRepository(s *Store) *QuoteRepository {
	return &QuoteRepository{store: s}
}

func (r *QuoteRepository) Latest(ctx context.Context, currency domain.Currency) (*domain.Quote, error) {
	st, release := r.store.view(ctx)
	defer release()
	var latest *domain.Quote
	for _, q := range st.quotes {
		if q.Currency != currency {
			continue
		}
		if latest == nil || !q.AsOf.Before(latest.AsOf) {
			latest = q
		}
	}
	if latest == nil {
		return nil, domain.ErrQuoteUnavailable
	}
	clone := *latest
	return &clone, nil
}

func (r *QuoteRepository) Save(ctx context.Context, quote *domain.Quote) error {
	st, release := r.store.view(ctx)
	defer release()
	clone := *quote
	st.quotes = append(st.quotes, &clone)
	return nil
}

// ReceiptRepository 凭证仓储的内存实现
type ReceiptRepository struct {
	store *Store
}

// NewReceiptRepository 创建凭证仓储
func NewReceiptRepository(s *Store) *ReceiptRepository {
	return &ReceiptRepository{store: s}
}

func (r *ReceiptRepository) Create(ctx context.Context, receipt *domain.Receipt) error {
	st, release := r.store.view(ctx)
	defer release()
	for _, existing := range st.receipts {
		if existing.Serial == receipt.Serial || existing.VerificationCode == receipt.VerificationCode {
			return fmt.Errorf("%w: duplicate receipt key", domain.ErrStorageFailure)
		}
	}
	clone := *receipt
	st.receipts = append(st.receipts, &clone)
	return nil
}

func (r *ReceiptRepository) GetByReceiptID(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	return r.find(ctx, func(rc *domain.Receipt) bool { return rc.ReceiptID == receiptID })
}

func (r *ReceiptRepository) GetBySerial(ctx context.Context, serial string) (*domain.Receipt, error) {
	return r.find(ctx, func(rc *domain.Receipt) bool { return rc.Serial == serial })
}

func (r *ReceiptRepository) GetByVerificationCode(ctx context.Context, code string) (*domain.Receipt, error) {
	return r.find(ctx, func(rc *domain.Receipt) bool { return rc.VerificationCode == code })
}

func (r *ReceiptRepository) find(ctx context.Context, match func(*domain.Receipt) bool) (*domain.Receipt, error) {
	st, release := r.store.view(ctx)
	defer release()
	for _, rc := range st.receipts {
		if match(rc) {
			clone := *rc
			return &clone, nil
		}
	}
	return nil, domain.ErrReceiptNotFound
}

func (r *ReceiptRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Receipt, error) {
	st, release := r.store.view(ctx)
	defer release()
	var matched []*domain.Receipt
	for _, rc := range st.receipts {
		if rc.AccountID != accountID {
			continue
		}
		clone := *rc
		matched = append(matched, &clone)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].IssuedAt.After(matched[j].IssuedAt)
	})
	return paginate(matched, limit, offset), nil
}

func (r *ReceiptRepository) Annul(ctx context.Context, receiptID string) error {
	st, release := r.store.view(ctx)
	defer release()
	for _, rc := range st.receipts {
		if rc.ReceiptID == receiptID {
			rc.Annulled = true
			return nil
		}
	}
	return domain.ErrReceiptNotFound
}

// DepositRequestRepository 充值请求仓储的内存实现
type DepositRequestRepository struct {
	store *Store
}

// NewDepositRequestRepository 创建充值请求仓储
func NewDepositRequestRepository(s *Store) *DepositRequestRepository {
	return &DepositRequestRepository{store: s}
}

func (r *DepositRequestRepository) Create(ctx context.Context, request *domain.DepositRequest) error {
	st, release := r.store.view(ctx)
	defer release()
	clone := *request
	st.deposits[request.RequestID] = &clone
	return nil
}

func (r *DepositRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.DepositRequest, error) {
	st, release := r.store.view(ctx)
	defer release()
	request, ok := st.deposits[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	clone := *request
	return &clone, nil
}

func (r *DepositRequestRepository) Save(ctx context.Context, request *domain.DepositRequest) error {
	st, release := r.store.view(ctx)
	defer release()
	if _, ok := st.deposits[request.RequestID]; !ok {
		return domain.ErrRequestNotFound
	}
	clone := *request
	st.deposits[request.RequestID] = &clone
	return nil
}

func (r *DepositRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus, limit, offset int) ([]*domain.DepositRequest, error) {
	st, release := r.store.view(ctx)
	defer release()
	var matched []*domain.DepositRequest
	for _, request := range st.deposits {
		if request.Status == status {
			clone := *request
			matched = append(matched, &clone)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RequestID < matched[j].RequestID
	})
	return paginate(matched, limit, offset), nil
}

// WithdrawalRequestRepository 提现请求仓储的内存实现
type WithdrawalRequestRepository struct {
	store *Store
}

// NewWithdrawalRequestRepository 创建提现请求仓储
func NewWithdrawalRequestRepository(s *Store) *WithdrawalRequestRepository {
	return &WithdrawalRequestRepository{store: s}
}

func (r *WithdrawalRequestRepository) Create(ctx context.Context, request *domain.WithdrawalRequest) error {
	st, release := r.store.view(ctx)
	defer release()
	clone := *request
	st.withdrawals[request.RequestID] = &clone
	return nil
}

func (r *WithdrawalRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.WithdrawalRequest, error) {
	st, release := r.store.view(ctx)
	defer release()
	request, ok := st.withdrawals[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	clone := *request
	return &clone, nil
}

func (r *WithdrawalRequestRepository) Save(ctx context.Context, request *domain.WithdrawalRequest) error {
	st, release := r.store.view(ctx)
	defer release()
	if _, ok := st.withdrawals[request.RequestID]; !ok {
		return domain.ErrRequestNotFound
	}
	clone := *request
	st.withdrawals[request.RequestID] = &clone
	return nil
}

func (r *WithdrawalRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus, limit, offset int) ([]*domain.WithdrawalRequest, error) {
	st, release := r.store.view(ctx)
	defer release()
	var matched []*domain.WithdrawalRequest
	for _, request := range st.withdrawals {
		if request.Status == status {
			clone := *request
			matched = append(matched, &clone)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RequestID < matched[j].RequestID
	})
	return paginate(matched, limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
