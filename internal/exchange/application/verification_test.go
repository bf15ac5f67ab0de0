package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

func settleOneSwap(t *testing.T, env *testEnv) *domain.Receipt {
	t.Helper()
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyUSD: "100.00"})
	result, err := env.settlement.Swap(context.Background(), SwapCommand{
		AccountID: "acc-1",
		Source:    domain.CurrencyUSD,
		Target:    domain.CurrencyUSDT,
		Amount:    decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	return result.Receipt
}

func TestVerifyIntactDocument(t *testing.T) {
	env := newTestEnv(t)
	receipt := settleOneSwap(t, env)
	ctx := context.Background()

	result, err := env.verification.VerifyByCode(ctx, receipt.VerificationCode)
	if err != nil {
		t.Fatalf("VerifyByCode: %v", err)
	}
	if !result.Matches {
		t.Error("intact document reported as mismatch")
	}
	if result.ComputedSHA256 != receipt.DocumentSHA256 {
		t.Errorf("computed %s, stored %s", result.ComputedSHA256, receipt.DocumentSHA256)
	}
	if result.Annulled {
		t.Error("fresh receipt reported annulled")
	}

	// verification is repeatable and read-only
	again, err := env.verification.VerifyByCode(ctx, receipt.VerificationCode)
	if err != nil {
		t.Fatalf("second VerifyByCode: %v", err)
	}
	if !again.Matches {
		t.Error("second verification result changed")
	}
}

func TestVerifyTamperedDocument(t *testing.T) {
	env := newTestEnv(t)
	receipt := settleOneSwap(t, env)
	env.docs.tamper(receipt.DocumentPath)

	result, err := env.verification.VerifyByCode(context.Background(), receipt.VerificationCode)
	if err != nil {
		t.Fatalf("VerifyByCode: %v", err)
	}
	if result.Matches {
		t.Error("tampered document reported as matching")
	}
	if result.ComputedSHA256 == receipt.DocumentSHA256 {
		t.Error("computed hash unchanged after tamper")
	}
}

func TestVerifyBySerial(t *testing.T) {
	env := newTestEnv(t)
	receipt := settleOneSwap(t, env)
	ctx := context.Background()

	result, err := env.verification.VerifyBySerial(ctx, receipt.Serial)
	if err != nil {
		t.Fatalf("VerifyBySerial: %v", err)
	}
	if !result.Matches {
		t.Error("intact document reported as mismatch")
	}
	if result.Receipt.ReceiptID != receipt.ReceiptID {
		t.Errorf("resolved receipt %s, want %s", result.Receipt.ReceiptID, receipt.ReceiptID)
	}
	if result.Snapshot == nil || result.Snapshot.Title == "" {
		t.Error("frozen snapshot not returned")
	}

	_, err = env.verification.VerifyBySerial(ctx, "BOL-20200101-00000000")
	if !errors.Is(err, domain.ErrReceiptNotFound) {
		t.Fatalf("unknown serial error = %v, want ErrReceiptNotFound", err)
	}
}

func TestVerificationURLCarriesSerialAndCode(t *testing.T) {
	env := newTestEnv(t)
	receipt := settleOneSwap(t, env)

	url := env.renderer.lastInput.VerificationURL
	if !strings.Contains(url, "/verificar/"+receipt.Serial) {
		t.Errorf("verification url %q missing serial path", url)
	}
	if !strings.Contains(url, receipt.VerificationCode) {
		t.Errorf("verification url %q missing verification code", url)
	}
}

func TestVerifyUnknownCode(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.verification.VerifyByCode(context.Background(), "ZZZZZZZZ")
	if !errors.Is(err, domain.ErrReceiptNotFound) {
		t.Fatalf("error = %v, want ErrReceiptNotFound", err)
	}
}

func TestAnnulledReceiptStillVerifiable(t *testing.T) {
	env := newTestEnv(t)
	receipt := settleOneSwap(t, env)
	ctx := context.Background()

	if err := env.admin.AnnulReceipt(ctx, receipt.ReceiptID, "op-1"); err != nil {
		t.Fatalf("AnnulReceipt: %v", err)
	}

	result, err := env.verification.VerifyByReceiptID(ctx, receipt.ReceiptID)
	if err != nil {
		t.Fatalf("VerifyByReceiptID: %v", err)
	}
	if !result.Annulled {
		t.Error("annulled flag not reported")
	}
	if !result.Matches {
		t.Error("annulment must not invalidate the document hash")
	}
}

func TestReceiptAccessControl(t *testing.T) {
	env := newTestEnv(t)
	receipt := settleOneSwap(t, env)
	ctx := context.Background()

	if _, err := env.query.Receipt(ctx, "acc-1", receipt.ReceiptID); err != nil {
		t.Fatalf("owner access: %v", err)
	}
	_, err := env.query.Receipt(ctx, "acc-2", receipt.ReceiptID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign access error = %v, want ErrForbidden", err)
	}
}
