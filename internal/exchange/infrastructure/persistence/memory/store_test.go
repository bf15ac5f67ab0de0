package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

func TestTransactionCommit(t *testing.T) {
	store := NewStore()
	accounts := NewAccountRepository(store)
	ctx := context.Background()

	err := store.Transaction(ctx, func(txCtx context.Context) error {
		return accounts.Create(txCtx, domain.NewAccount("acc-1", "user-1"))
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	if _, err := accounts.GetByAccountID(ctx, "acc-1"); err != nil {
		t.Fatalf("committed account not found: %v", err)
	}
}

func TestTransactionRollback(t *testing.T) {
	store := NewStore()
	accounts := NewAccountRepository(store)
	movements := NewMovementRepository(store)
	ctx := context.Background()

	if err := accounts.Create(ctx, domain.NewAccount("acc-1", "user-1")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(txCtx context.Context) error {
		account, err := accounts.GetForUpdate(txCtx, "acc-1")
		if err != nil {
			return err
		}
		before, after, err := account.Credit(domain.CurrencyARS, decimal.RequireFromString("100"))
		if err != nil {
			return err
		}
		if err := accounts.SaveBalances(txCtx, account); err != nil {
			return err
		}
		movement, err := domain.NewMovement("acc-1", domain.MovementKindDeposit, domain.CurrencyARS,
			decimal.RequireFromString("100"), before, after, "", nil)
		if err != nil {
			return err
		}
		if err := movements.Append(txCtx, movement); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction error = %v, want boom", err)
	}

	account, err := accounts.GetByAccountID(ctx, "acc-1")
	if err != nil {
		t.Fatal(err)
	}
	balance, _ := account.Balance(domain.CurrencyARS)
	if !balance.IsZero() {
		t.Errorf("balance = %s after rollback, want 0", balance)
	}
	listed, _ := movements.ListByAccount(ctx, "acc-1", domain.MovementFilter{Limit: 10})
	if len(listed) != 0 {
		t.Errorf("got %d movements after rollback, want 0", len(listed))
	}
}

func TestTransactionLockTimeout(t *testing.T) {
	store := NewStore()
	store.SetLockTimeout(20 * time.Millisecond)
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.Transaction(ctx, func(txCtx context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	err := store.Transaction(ctx, func(txCtx context.Context) error { return nil })
	if !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("error = %v, want ErrLockTimeout", err)
	}
}

func TestNestedTransactionReusesScope(t *testing.T) {
	store := NewStore()
	accounts := NewAccountRepository(store)
	ctx := context.Background()

	err := store.Transaction(ctx, func(txCtx context.Context) error {
		if err := accounts.Create(txCtx, domain.NewAccount("acc-1", "user-1")); err != nil {
			return err
		}
		// inner call must see the outer working copy, not deadlock
		return store.Transaction(txCtx, func(innerCtx context.Context) error {
			_, err := accounts.GetByAccountID(innerCtx, "acc-1")
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested transaction: %v", err)
	}
}

func TestQuoteLatestPicksNewest(t *testing.T) {
	store := NewStore()
	quotes := NewQuoteRepository(store)
	ctx := context.Background()

	base := time.Now()
	for i, sell := range []string{"990.00", "1000.00", "1010.00"} {
		q := &domain.Quote{
			Currency: domain.CurrencyUSD,
			Buy:      decimal.RequireFromString("950.00"),
			Sell:     decimal.RequireFromString(sell),
			AsOf:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := quotes.Save(ctx, q); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := quotes.Latest(ctx, domain.CurrencyUSD)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.Sell.Equal(decimal.RequireFromString("1010.00")) {
		t.Errorf("latest sell = %s, want 1010.00", latest.Sell)
	}

	if _, err := quotes.Latest(ctx, domain.CurrencyUSDT); !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Errorf("missing currency error = %v, want ErrQuoteUnavailable", err)
	}
}

func TestMovementPagination(t *testing.T) {
	store := NewStore()
	movements := NewMovementRepository(store)
	ctx := context.Background()

	balance := decimal.Zero
	for i := 0; i < 5; i++ {
		amount := decimal.RequireFromString("10")
		m, err := domain.NewMovement("acc-1", domain.MovementKindDeposit, domain.CurrencyARS,
			amount, balance, balance.Add(amount), fmt.Sprintf("n%d", i), nil)
		if err != nil {
			t.Fatal(err)
		}
		m.OccurredAt = time.Now().Add(time.Duration(i) * time.Second)
		balance = balance.Add(amount)
		if err := movements.Append(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	page, err := movements.ListByAccount(ctx, "acc-1", domain.MovementFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d movements, want 2", len(page))
	}
	// newest first, offset 1 skips the newest
	if page[0].Description != "n3" || page[1].Description != "n2" {
		t.Errorf("page order = %s, %s", page[0].Description, page[1].Description)
	}
}
