package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/internal/exchange/infrastructure/persistence/memory"
	"github.com/cambiosur/exchange/pkg/metrics"
)

// fakeRenderer 确定性渲染：输出只由输入决定
type fakeRenderer struct {
	failNext  bool
	lastInput *domain.RenderInput
}

func (r *fakeRenderer) Render(ctx context.Context, input *domain.RenderInput) ([]byte, error) {
	r.lastInput = input
	if r.failNext {
		return nil, fmt.Errorf("template engine unavailable")
	}
	return []byte(fmt.Sprintf("DOC|%s|%s|%s|%s|%s",
		input.Serial, input.VerificationCode, input.Snapshot.Title,
		input.Snapshot.SourceAmount, input.Snapshot.DestinationAmount)), nil
}

// fakeDocStore 内存文档存储，支持在测试中篡改已存文档
type fakeDocStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string][]byte)}
}

func (s *fakeDocStore) Write(ctx context.Context, serial string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := serial + ".html"
	stored := make([]byte, len(data))
	copy(stored, data)
	s.docs[path] = stored
	return path, nil
}

func (s *fakeDocStore) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("document not found: %s", path)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *fakeDocStore) tamper(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = append(s.docs[path], []byte(" TAMPERED")...)
}

type testEnv struct {
	store        *memory.Store
	accounts     *memory.AccountRepository
	movements    *memory.MovementRepository
	quotes       *memory.QuoteRepository
	receipts     *memory.ReceiptRepository
	deposits     *memory.DepositRequestRepository
	withdrawals  *memory.WithdrawalRequestRepository
	docs         *fakeDocStore
	renderer     *fakeRenderer
	settlement   *SettlementService
	funding      *FundingService
	admin        *AdminService
	verification *VerificationService
	query        *QueryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New("test")

	env := &testEnv{
		store:       store,
		accounts:    memory.NewAccountRepository(store),
		movements:   memory.NewMovementRepository(store),
		quotes:      memory.NewQuoteRepository(store),
		receipts:    memory.NewReceiptRepository(store),
		deposits:    memory.NewDepositRequestRepository(store),
		withdrawals: memory.NewWithdrawalRequestRepository(store),
		docs:        newFakeDocStore(),
		renderer:    &fakeRenderer{},
	}

	settings := Settings{
		SiteURL:    "https://cambiosur.test",
		SwapFeeBps: 100,
		SwapRate:   decimal.RequireFromString("1.00"),
		Company:    domain.CompanyBlock{Name: "CambioSur S.A."},
	}

	issuer := NewReceiptIssuer(env.receipts, env.renderer, env.docs, settings.SiteURL, m, log)
	env.settlement = NewSettlementService(store, env.accounts, env.movements, env.quotes, issuer, nil, settings, m, log)
	env.funding = NewFundingService(store, env.accounts, env.movements, env.deposits, env.withdrawals, issuer, nil, settings, m, log)
	env.admin = NewAdminService(store, env.accounts, env.movements, env.quotes, env.receipts, log)
	env.verification = NewVerificationService(env.receipts, env.docs, m, log)
	env.query = NewQueryService(env.accounts, env.movements, env.receipts, env.docs, log)
	return env
}

// seedAccount 开户并写入初始余额
func (e *testEnv) seedAccount(t *testing.T, accountID string, balances map[domain.Currency]string) {
	t.Helper()
	ctx := context.Background()
	account := domain.NewAccount(accountID, "user-"+accountID)
	for ccy, amount := range balances {
		if err := account.SetBalance(ccy, decimal.RequireFromString(amount)); err != nil {
			t.Fatalf("seed balance: %v", err)
		}
	}
	if err := e.accounts.Create(ctx, account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

// seedQuote 发布一条行情
func (e *testEnv) seedQuote(t *testing.T, currency domain.Currency, buy, sell string) {
	t.Helper()
	_, err := e.admin.SaveQuote(context.Background(), SaveQuoteCommand{
		Currency: currency,
		Buy:      decimal.RequireFromString(buy),
		Sell:     decimal.RequireFromString(sell),
	})
	if err != nil {
		t.Fatalf("seed quote: %v", err)
	}
}

// balance 读取余额
func (e *testEnv) balance(t *testing.T, accountID string, currency domain.Currency) decimal.Decimal {
	t.Helper()
	account, err := e.accounts.GetByAccountID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	amount, err := account.Balance(currency)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return amount
}

func expectAmount(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("amount = %s, want %s", got, want)
	}
}
