package application

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/utils"
)

func TestMovementsCSVExport(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "acc-1", map[domain.Currency]string{domain.CurrencyUSD: "100.00"})
	ctx := context.Background()

	if _, err := env.settlement.Swap(ctx, SwapCommand{
		AccountID: "acc-1",
		Source:    domain.CurrencyUSD,
		Target:    domain.CurrencyUSDT,
		Amount:    decimal.RequireFromString("100.00"),
	}); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	data, err := env.query.MovementsCSV(ctx, "acc-1", domain.MovementFilter{})
	if err != nil {
		t.Fatalf("MovementsCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	// header + debit + credit
	if len(records) != 3 {
		t.Fatalf("got %d csv rows, want 3", len(records))
	}
	if records[0][0] != "code" || records[0][3] != "amount" {
		t.Errorf("unexpected header: %v", records[0])
	}
	for _, row := range records[1:] {
		if row[1] != string(domain.MovementKindTrade) {
			t.Errorf("kind column = %s, want trade", row[1])
		}
	}
}

func TestReceiptLookupBySerial(t *testing.T) {
	env := newTestEnv(t)
	receipt := settleOneSwap(t, env)
	ctx := context.Background()

	got, err := env.query.Receipt(ctx, "acc-1", receipt.Serial)
	if err != nil {
		t.Fatalf("Receipt by serial: %v", err)
	}
	if got.ReceiptID != receipt.ReceiptID {
		t.Errorf("resolved receipt %s, want %s", got.ReceiptID, receipt.ReceiptID)
	}

	// download is addressable by the printed serial as well
	_, data, err := env.query.ReceiptDocument(ctx, "acc-1", receipt.Serial)
	if err != nil {
		t.Fatalf("ReceiptDocument by serial: %v", err)
	}
	if utils.SHA256Hex(data) != receipt.DocumentSHA256 {
		t.Error("downloaded bytes do not match the issued document hash")
	}

	// ownership check applies on the serial path too
	if _, err := env.query.Receipt(ctx, "acc-2", receipt.Serial); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign access error = %v, want ErrForbidden", err)
	}
}

func TestReceiptDocumentDownload(t *testing.T) {
	env := newTestEnv(t)
	receipt := settleOneSwap(t, env)
	ctx := context.Background()

	got, data, err := env.query.ReceiptDocument(ctx, "acc-1", receipt.ReceiptID)
	if err != nil {
		t.Fatalf("ReceiptDocument: %v", err)
	}
	if got.Serial != receipt.Serial {
		t.Errorf("serial = %s, want %s", got.Serial, receipt.Serial)
	}
	if len(data) == 0 {
		t.Error("empty document")
	}
}
