// Package memory 领域仓储的内存实现。
// 事务全局串行化：开始时深拷贝状态，提交时整体替换，回滚即丢弃拷贝。
// 用于测试和本地开发，语义与 mysql 实现保持一致。
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

// DefaultLockTimeout 事务锁默认等待时长
const DefaultLockTimeout = 3 * time.Second

type accountRecord struct {
	account  domain.Account
	balances map[domain.Currency]decimal.Decimal
}

type state struct {
	accounts    map[string]*accountRecord
	movements   []*domain.Movement
	quotes      []*domain.Quote
	receipts    []*domain.Receipt
	deposits    map[string]*domain.DepositRequest
	withdrawals map[string]*domain.WithdrawalRequest
}

func newState() *state {
	return &state{
		accounts:    make(map[string]*accountRecord),
		deposits:    make(map[string]*domain.DepositRequest),
		withdrawals: make(map[string]*domain.WithdrawalRequest),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, rec := range s.accounts {
		balances := make(map[domain.Currency]decimal.Decimal, len(rec.balances))
		for ccy, amount := range rec.balances {
			balances[ccy] = amount
		}
		c.accounts[id] = &accountRecord{account: rec.account, balances: balances}
	}
	c.movements = make([]*domain.Movement, len(s.movements))
	for i, m := range s.movements {
		clone := *m
		c.movements[i] = &clone
	}
	c.quotes = make([]*domain.Quote, len(s.quotes))
	for i, q := range s.quotes {
		clone := *q
		c.quotes[i] = &clone
	}
	c.receipts = make([]*domain.Receipt, len(s.receipts))
	for i, r := range s.receipts {
		clone := *r
		c.receipts[i] = &clone
	}
	for id, d := range s.deposits {
		clone := *d
		c.deposits[id] = &clone
	}
	for id, w := range s.withdrawals {
		clone := *w
		c.withdrawals[id] = &clone
	}
	return c
}

type txKey struct{}

// Store 内存存储，实现 domain.Store
type Store struct {
	mu          sync.Mutex
	lockTimeout time.Duration
	state       *state
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{lockTimeout: DefaultLockTimeout, state: newState()}
}

// SetLockTimeout 调整锁等待时长，便于测试锁超时路径
func (s *Store) SetLockTimeout(d time.Duration) {
	s.lockTimeout = d
}

// Transaction 执行一个串行化事务
func (s *Store) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		// 已在事务内，直接复用
		return fn(ctx)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, working)); err != nil {
		return err
	}
	s.state = working
	return nil
}

// acquire 带超时获取全局锁，超时返回 ErrLockTimeout
func (s *Store) acquire(ctx context.Context) error {
	deadline := time.NewTimer(s.lockTimeout)
	defer deadline.Stop()
	for {
		if s.mu.TryLock() {
			return nil
		}
		select {
		case <-deadline.C:
			return domain.ErrLockTimeout
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// view 返回当前应读写的状态：事务内用工作拷贝，事务外直接读已提交状态
func (s *Store) view(ctx context.Context) (*state, func()) {
	if st, ok := ctx.Value(txKey{}).(*state); ok {
		return st, func() {}
	}
	s.mu.Lock()
	return s.state, s.mu.Unlock
}
