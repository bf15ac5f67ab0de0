// Package rendering 凭证文档渲染。
package rendering

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

// 渲染输出是自包含的 HTML：样式内联，二维码以 base64 PNG 内嵌。
// 对相同输入输出字节完全确定，哈希才可复验。
const receiptTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Serial}}</title>
<style>
body { font-family: "Helvetica Neue", Arial, sans-serif; margin: 40px; color: #1a1a2e; }
.header { border-bottom: 3px solid #16213e; padding-bottom: 12px; }
.serial { font-size: 22px; font-weight: bold; }
.state { display: inline-block; padding: 4px 12px; background: #e8f5e9; color: #1b5e20; border-radius: 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
td { padding: 8px 4px; border-bottom: 1px solid #ddd; }
td.label { color: #555; width: 40%; }
.amount { font-size: 18px; font-weight: bold; }
.footer { margin-top: 32px; font-size: 12px; color: #777; }
.qr { margin-top: 24px; text-align: center; }
</style>
</head>
<body>
<div class="header">
  <div class="serial">{{.Serial}}</div>
  <div>{{.Title}}</div>
  <div class="state">{{.State}}</div>
  <div>{{.IssuedAt}}</div>
</div>
<table>
  <tr><td class="label">Importe origen</td><td class="amount">{{.SourceAmount}}</td></tr>
  {{if .FeeAmount}}<tr><td class="label">Comisión</td><td>{{.FeeAmount}}</td></tr>{{end}}
  <tr><td class="label">Cotización / Canal</td><td>{{.Rate}}</td></tr>
  <tr><td class="label">Importe destino</td><td class="amount">{{.DestinationAmount}}</td></tr>
</table>
<table>
  <tr><td class="label">Cliente</td><td>{{.Client.Name}}</td></tr>
  <tr><td class="label">Documento</td><td>{{.Client.Document}}</td></tr>
  <tr><td class="label">Domicilio</td><td>{{.Client.Address}}</td></tr>
</table>
{{if .OnChain}}
<table>
  <tr><td class="label">Red</td><td>{{.OnChain.Network}}</td></tr>
  {{if .OnChain.SourceAddress}}<tr><td class="label">Billetera origen</td><td>{{.OnChain.SourceAddress}}</td></tr>{{end}}
  {{if .OnChain.DestinationAddress}}<tr><td class="label">Billetera destino</td><td>{{.OnChain.DestinationAddress}}</td></tr>{{end}}
  <tr><td class="label">TXID</td><td>{{.OnChain.TxID}}</td></tr>
</table>
{{end}}
<div class="qr">
  <img src="data:image/png;base64,{{.QRBase64}}" width="140" height="140" alt="QR">
  <div>Código de verificación: <strong>{{.VerificationCode}}</strong></div>
  <div>{{.VerificationURL}}</div>
</div>
<div class="footer">
  <div>{{.Company.Name}} - CUIT {{.Company.TaxID}}</div>
  <div>{{.Company.Address}}</div>
  <div>{{.Company.Contact}}</div>
  <div>{{.Company.RegulatoryNote}}</div>
</div>
</body>
</html>
`

type templateData struct {
	Serial            string
	Title             string
	State             string
	IssuedAt          string
	SourceAmount      string
	FeeAmount         string
	Rate              string
	DestinationAmount string
	Client            domain.ClientBlock
	Company           domain.CompanyBlock
	OnChain           *domain.OnChainBlock
	QRBase64          string
	VerificationCode  string
	VerificationURL   string
}

// HTMLRenderer 基于 html/template 的凭证渲染器，实现 domain.DocumentRenderer
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer 创建渲染器，模板在启动时解析
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("receipt").Parse(receiptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// Render 渲染凭证文档字节，失败返回 ErrRenderFailure
func (r *HTMLRenderer) Render(ctx context.Context, input *domain.RenderInput) ([]byte, error) {
	if input.Snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", domain.ErrRenderFailure)
	}

	qr, err := qrcode.Encode(input.VerificationURL, qrcode.Medium, 280)
	if err != nil {
		return nil, fmt.Errorf("%w: qr encode: %v", domain.ErrRenderFailure, err)
	}

	data := templateData{
		Serial:            input.Serial,
		Title:             input.Snapshot.Title,
		State:             input.Snapshot.State,
		IssuedAt:          input.IssuedAt.Format("02/01/2006 15:04"),
		SourceAmount:      input.Snapshot.SourceAmount,
		FeeAmount:         input.Snapshot.FeeAmount,
		Rate:              input.Snapshot.Rate,
		DestinationAmount: input.Snapshot.DestinationAmount,
		Client:            input.Snapshot.Client,
		Company:           input.Snapshot.Company,
		OnChain:           input.Snapshot.OnChain,
		QRBase64:          base64.StdEncoding.EncodeToString(qr),
		VerificationCode:  input.VerificationCode,
		VerificationURL:   input.VerificationURL,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailure, err)
	}
	return buf.Bytes(), nil
}
