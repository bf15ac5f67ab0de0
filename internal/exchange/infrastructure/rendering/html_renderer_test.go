package rendering

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

func sampleInput() *domain.RenderInput {
	return &domain.RenderInput{
		Serial:   "BOL-20260828-3FA9C2D1",
		Kind:     domain.ReceiptKindSwapUSDUSDT,
		IssuedAt: time.Date(2026, 8, 28, 15, 4, 0, 0, time.UTC),
		Snapshot: &domain.Snapshot{
			Title:             "CONVERSIÓN USD A USDT",
			State:             "COMPLETADA",
			SourceAmount:      "100.00 USD",
			FeeAmount:         "1.00 USDT",
			Rate:              "1 USD = 1.00 USDT",
			DestinationAmount: "99.00 USDT",
			Client:            domain.ClientBlock{Name: "Juan Perez", Document: "20-12345678-9"},
			Company:           domain.CompanyBlock{Name: "CambioSur S.A.", TaxID: "30-71234567-8"},
		},
		VerificationCode: "A1B2C3D4",
		VerificationURL:  "https://cambiosur.test/verificar/A1B2C3D4",
	}
}

func TestRenderContainsPrintedFields(t *testing.T) {
	r, err := NewHTMLRenderer()
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	html := string(out)
	for _, want := range []string{
		"BOL-20260828-3FA9C2D1",
		"100.00 USD",
		"99.00 USDT",
		"1.00 USDT",
		"A1B2C3D4",
		"https://cambiosur.test/verificar/A1B2C3D4",
		"Juan Perez",
		"CambioSur S.A.",
		"data:image/png;base64,",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered document missing %q", want)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r, err := NewHTMLRenderer()
	if err != nil {
		t.Fatal(err)
	}
	first, err := r.Render(context.Background(), sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Render(context.Background(), sampleInput())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same input produced different bytes")
	}
}

func TestRenderOmitsEmptyFeeRow(t *testing.T) {
	r, err := NewHTMLRenderer()
	if err != nil {
		t.Fatal(err)
	}
	input := sampleInput()
	input.Snapshot.FeeAmount = ""
	out, err := r.Render(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "Comisión") {
		t.Error("fee row rendered for fee-less operation")
	}
}

func TestRenderNilSnapshot(t *testing.T) {
	r, err := NewHTMLRenderer()
	if err != nil {
		t.Fatal(err)
	}
	input := sampleInput()
	input.Snapshot = nil
	if _, err := r.Render(context.Background(), input); err == nil {
		t.Fatal("expected error for nil snapshot")
	}
}
