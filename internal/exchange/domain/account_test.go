package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewAccountZeroBalances(t *testing.T) {
	a := NewAccount("acc-1", "user-1")
	for _, c := range SupportedCurrencies {
		got, err := a.Balance(c)
		if err != nil {
			t.Fatalf("Balance(%s) unexpected error: %v", c, err)
		}
		if !got.IsZero() {
			t.Errorf("Balance(%s) = %s, want 0", c, got)
		}
	}
}

func TestAccountCredit(t *testing.T) {
	a := NewAccount("acc-1", "user-1")

	before, after, err := a.Credit(CurrencyARS, decimal.RequireFromString("1000"))
	if err != nil {
		t.Fatalf("Credit unexpected error: %v", err)
	}
	if !before.IsZero() || !after.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("Credit returned before=%s after=%s", before, after)
	}

	if _, _, err := a.Credit(CurrencyARS, decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Credit(0) error = %v, want ErrInvalidAmount", err)
	}
	if _, _, err := a.Credit(CurrencyARS, decimal.RequireFromString("-5")); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Credit(-5) error = %v, want ErrInvalidAmount", err)
	}
}

func TestAccountDebit(t *testing.T) {
	a := NewAccount("acc-1", "user-1")
	if _, _, err := a.Credit(CurrencyUSD, decimal.RequireFromString("100")); err != nil {
		t.Fatal(err)
	}

	before, after, err := a.Debit(CurrencyUSD, decimal.RequireFromString("40.50"))
	if err != nil {
		t.Fatalf("Debit unexpected error: %v", err)
	}
	if !before.Equal(decimal.RequireFromString("100")) || !after.Equal(decimal.RequireFromString("59.50")) {
		t.Errorf("Debit returned before=%s after=%s", before, after)
	}

	_, _, err = a.Debit(CurrencyUSD, decimal.RequireFromString("59.51"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Debit over balance error = %v, want ErrInsufficientFunds", err)
	}
	got, _ := a.Balance(CurrencyUSD)
	if !got.Equal(decimal.RequireFromString("59.50")) {
		t.Errorf("balance changed after failed debit: %s", got)
	}

	// exact drain to zero is allowed
	if _, _, err := a.Debit(CurrencyUSD, decimal.RequireFromString("59.50")); err != nil {
		t.Fatalf("Debit full balance unexpected error: %v", err)
	}
	got, _ = a.Balance(CurrencyUSD)
	if !got.IsZero() {
		t.Errorf("balance after full debit = %s, want 0", got)
	}
}

func TestSetBalanceRejectsNegative(t *testing.T) {
	a := NewAccount("acc-1", "user-1")
	err := a.SetBalance(CurrencyARS, decimal.RequireFromString("-0.01"))
	if !errors.Is(err, ErrNegativeBalance) {
		t.Errorf("SetBalance(-0.01) error = %v, want ErrNegativeBalance", err)
	}
}

func TestBalanceUnknownCurrency(t *testing.T) {
	a := NewAccount("acc-1", "user-1")
	if _, err := a.Balance(Currency("EUR")); !errors.Is(err, ErrUnknownCurrency) {
		t.Errorf("Balance(EUR) error = %v, want ErrUnknownCurrency", err)
	}
}
