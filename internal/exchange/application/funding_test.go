package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

func TestDepositLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyARS: "500.00"})
	ctx := context.Background()

	request, err := env.funding.CreateDeposit(ctx, CreateDepositCommand{
		AccountID:  "acc-1",
		Currency:   domain.CurrencyARS,
		Amount:     decimal.RequireFromString("1000.00"),
		Channel:    domain.DepositChannelBank,
		VoucherRef: "TRF-0099",
	})
	if err != nil {
		t.Fatalf("CreateDeposit: %v", err)
	}
	// balance untouched until settlement
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyARS), "500.00")

	if _, err := env.funding.ApproveDeposit(ctx, request.RequestID, "op-1"); err != nil {
		t.Fatalf("ApproveDeposit: %v", err)
	}

	result, err := env.funding.SettleDeposit(ctx, SettleDepositCommand{
		RequestID:  request.RequestID,
		OperatorID: "op-1",
		ClientName: "Juan Perez",
	})
	if err != nil {
		t.Fatalf("SettleDeposit: %v", err)
	}

	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyARS), "1500.00")
	if result.Receipt.Kind != domain.ReceiptKindDepositARS {
		t.Errorf("receipt kind = %s, want %s", result.Receipt.Kind, domain.ReceiptKindDepositARS)
	}

	movements, _ := env.movements.ListByAccount(ctx, "acc-1", domain.MovementFilter{Limit: 10})
	if len(movements) != 1 {
		t.Fatalf("got %d movements, want 1", len(movements))
	}
	m := movements[0]
	expectAmount(t, m.BalanceBefore, "500.00")
	expectAmount(t, m.BalanceAfter, "1500.00")
	if m.Kind != domain.MovementKindDeposit {
		t.Errorf("movement kind = %s, want deposit", m.Kind)
	}
	if m.OperatorID == nil || *m.OperatorID != "op-1" {
		t.Errorf("movement operator = %v, want op-1", m.OperatorID)
	}

	// settled requests cannot be settled twice
	_, err = env.funding.SettleDeposit(ctx, SettleDepositCommand{RequestID: request.RequestID, OperatorID: "op-1"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("double settle error = %v, want ErrInvalidTransition", err)
	}
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyARS), "1500.00")
}

func TestRejectedDepositNeverCredits(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{})
	ctx := context.Background()

	request, err := env.funding.CreateDeposit(ctx, CreateDepositCommand{
		AccountID: "acc-1",
		Currency:  domain.CurrencyUSDT,
		Amount:    decimal.RequireFromString("300.00"),
		Channel:   domain.DepositChannelCrypto,
		Network:   "TRC20",
		TxID:      "0xabc123",
	})
	if err != nil {
		t.Fatalf("CreateDeposit: %v", err)
	}

	rejected, err := env.funding.RejectDeposit(ctx, request.RequestID, "op-1", "voucher mismatch")
	if err != nil {
		t.Fatalf("RejectDeposit: %v", err)
	}
	if rejected.Status != domain.RequestStatusRejected {
		t.Errorf("status = %s, want REJECTED", rejected.Status)
	}
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyUSDT), "0")

	_, err = env.funding.SettleDeposit(ctx, SettleDepositCommand{RequestID: request.RequestID, OperatorID: "op-1"})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("settle after reject error = %v, want ErrInvalidTransition", err)
	}
}

func TestCreateRequestFieldValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyARS: "1000.00"})
	ctx := context.Background()
	amount := decimal.RequireFromString("100.00")

	tests := []struct {
		name string
		call func() error
	}{
		{"bank deposit without voucher", func() error {
			_, err := env.funding.CreateDeposit(ctx, CreateDepositCommand{
				AccountID: "acc-1", Currency: domain.CurrencyARS, Amount: amount,
				Channel: domain.DepositChannelBank,
			})
			return err
		}},
		{"crypto deposit without txid", func() error {
			_, err := env.funding.CreateDeposit(ctx, CreateDepositCommand{
				AccountID: "acc-1", Currency: domain.CurrencyUSDT, Amount: amount,
				Channel: domain.DepositChannelCrypto, Network: "TRC20",
			})
			return err
		}},
		{"unknown deposit channel", func() error {
			_, err := env.funding.CreateDeposit(ctx, CreateDepositCommand{
				AccountID: "acc-1", Currency: domain.CurrencyARS, Amount: amount,
				Channel: domain.DepositChannel("PIGEON"), VoucherRef: "TRF-1",
			})
			return err
		}},
		{"ars withdrawal without target", func() error {
			_, err := env.funding.CreateWithdrawal(ctx, CreateWithdrawalCommand{
				AccountID: "acc-1", Currency: domain.CurrencyARS, Amount: amount,
			})
			return err
		}},
		{"crypto withdrawal without network", func() error {
			_, err := env.funding.CreateWithdrawal(ctx, CreateWithdrawalCommand{
				AccountID: "acc-1", Currency: domain.CurrencyUSDT, Amount: amount,
				WalletAddress: "TWalletDest123",
			})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("error = %v, want ErrInvalidRequest", err)
			}
		})
	}
	// field validation leaves the balance untouched
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyARS), "1000.00")
}

func TestWithdrawalReservesAtCreation(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyUSDT: "200.00"})
	ctx := context.Background()

	request, err := env.funding.CreateWithdrawal(ctx, CreateWithdrawalCommand{
		AccountID:     "acc-1",
		Currency:      domain.CurrencyUSDT,
		Amount:        decimal.RequireFromString("150.00"),
		WalletAddress: "TWalletDest123",
		Network:       "TRC20",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal: %v", err)
	}

	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyUSDT), "50.00")
	if request.ReservationCode == "" {
		t.Fatal("reservation code not recorded")
	}
	reservation, err := env.movements.GetByCode(ctx, request.ReservationCode)
	if err != nil {
		t.Fatalf("get reservation movement: %v", err)
	}
	expectAmount(t, reservation.Amount, "-150.00")
	expectAmount(t, reservation.BalanceBefore, "200.00")
	expectAmount(t, reservation.BalanceAfter, "50.00")
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyUSD: "10.00"})
	ctx := context.Background()

	_, err := env.funding.CreateWithdrawal(ctx, CreateWithdrawalCommand{
		AccountID:     "acc-1",
		Currency:      domain.CurrencyUSD,
		Amount:        decimal.RequireFromString("10.01"),
		WalletAddress: "0xdest",
		Network:       "ERC20",
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyUSD), "10.00")
	pending, _ := env.withdrawals.ListByStatus(ctx, domain.RequestStatusPending, 10, 0)
	if len(pending) != 0 {
		t.Errorf("got %d pending withdrawals after failed create, want 0", len(pending))
	}
}

func TestWithdrawalSettleIssuesReceipt(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyUSDT: "200.00"})
	ctx := context.Background()

	request, err := env.funding.CreateWithdrawal(ctx, CreateWithdrawalCommand{
		AccountID:     "acc-1",
		Currency:      domain.CurrencyUSDT,
		Amount:        decimal.RequireFromString("150.00"),
		WalletAddress: "TWalletDest123",
		Network:       "TRC20",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal: %v", err)
	}

	result, err := env.funding.SettleWithdrawal(ctx, SettleWithdrawalCommand{
		RequestID:  request.RequestID,
		OperatorID: "op-1",
		TxID:       "0xsend789",
	})
	if err != nil {
		t.Fatalf("SettleWithdrawal: %v", err)
	}

	// settlement must not debit a second time
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyUSDT), "50.00")
	if result.Receipt.Kind != domain.ReceiptKindWithdrawalUSDT {
		t.Errorf("receipt kind = %s, want %s", result.Receipt.Kind, domain.ReceiptKindWithdrawalUSDT)
	}
	if result.Receipt.MovementCode == nil || *result.Receipt.MovementCode != request.ReservationCode {
		t.Errorf("receipt references movement %v, want reservation %s", result.Receipt.MovementCode, request.ReservationCode)
	}
	if result.Receipt.TxID != "0xsend789" {
		t.Errorf("receipt txid = %s", result.Receipt.TxID)
	}

	movements, _ := env.movements.ListByAccount(ctx, "acc-1", domain.MovementFilter{Limit: 10})
	if len(movements) != 1 {
		t.Errorf("got %d movements, want only the reservation", len(movements))
	}
}

func TestWithdrawalRejectRestoresBalance(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyARS: "1000.00"})
	ctx := context.Background()

	request, err := env.funding.CreateWithdrawal(ctx, CreateWithdrawalCommand{
		AccountID: "acc-1",
		Currency:  domain.CurrencyARS,
		Amount:    decimal.RequireFromString("400.00"),
		Alias:     "juan.mp",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal: %v", err)
	}
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyARS), "600.00")

	rejected, err := env.funding.RejectWithdrawal(ctx, request.RequestID, "op-1", "cbu rechazado")
	if err != nil {
		t.Fatalf("RejectWithdrawal: %v", err)
	}
	if rejected.Status != domain.RequestStatusRejected {
		t.Errorf("status = %s, want REJECTED", rejected.Status)
	}
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyARS), "1000.00")

	movements, _ := env.movements.ListByAccount(ctx, "acc-1", domain.MovementFilter{Limit: 10})
	if len(movements) != 2 {
		t.Fatalf("got %d movements, want reservation + reversal", len(movements))
	}
	var reversal *domain.Movement
	for _, m := range movements {
		if m.Kind == domain.MovementKindAdjustment {
			reversal = m
		}
	}
	if reversal == nil {
		t.Fatal("reversal adjustment movement not found")
	}
	expectAmount(t, reversal.Amount, "400.00")
}

func TestAdjustDebitRespectsBalance(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyARS: "100.00"})
	ctx := context.Background()

	movement, err := env.admin.Adjust(ctx, AdjustCommand{
		AccountID:  "acc-1",
		Currency:   domain.CurrencyARS,
		Delta:      decimal.RequireFromString("-30.00"),
		OperatorID: "op-1",
		Reason:     "chargeback",
	})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	expectAmount(t, movement.Amount, "-30.00")
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyARS), "70.00")

	_, err = env.admin.Adjust(ctx, AdjustCommand{
		AccountID:  "acc-1",
		Currency:   domain.CurrencyARS,
		Delta:      decimal.RequireFromString("-100.00"),
		OperatorID: "op-1",
		Reason:     "chargeback",
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("over-debit error = %v, want ErrInsufficientFunds", err)
	}
	expectAmount(t, env.balance(t, "acc-1", domain.CurrencyARS), "70.00")
}
