// Package http 兑换与结算服务的 HTTP 接口。
package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/application"
	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/logger"
)

// Handler 客户侧 HTTP 处理器
type Handler struct {
	accounts     *application.AccountService
	settlement   *application.SettlementService
	funding      *application.FundingService
	query        *application.QueryService
	verification *application.VerificationService
}

// NewHandler 创建 HTTP 处理器
func NewHandler(
	accounts *application.AccountService,
	settlement *application.SettlementService,
	funding *application.FundingService,
	query *application.QueryService,
	verification *application.VerificationService,
) *Handler {
	return &Handler{
		accounts:     accounts,
		settlement:   settlement,
		funding:      funding,
		query:        query,
		verification: verification,
	}
}

// RegisterRoutes 注册客户侧路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/accounts", h.CreateAccount)
		api.GET("/accounts/:id", h.GetAccount)
		api.GET("/accounts/:id/movements", h.ListMovements)
		api.GET("/accounts/:id/receipts", h.ListReceipts)
		api.GET("/accounts/:id/receipts/:receipt_id", h.GetReceipt)
		api.GET("/accounts/:id/receipts/:receipt_id/document", h.DownloadReceipt)

		api.POST("/accounts/:id/purchases", h.Purchase)
		api.POST("/accounts/:id/sales", h.Sale)
		api.POST("/accounts/:id/swaps", h.Swap)
		api.POST("/accounts/:id/deposits", h.CreateDeposit)
		api.POST("/accounts/:id/withdrawals", h.CreateWithdrawal)
	}
	// 公开验证入口，无需认证；路径段为凭证编号（BOL-...）或短验证码
	router.GET("/verificar/:ref", h.Verify)
}

// statusOf 领域错误到 HTTP 状态码的映射
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrUnknownCurrency):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrReceiptNotFound),
		errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQuoteUnavailable), errors.Is(err, domain.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

// CreateAccountRequest 开户请求
type CreateAccountRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CreateAccount 开户
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account, err := h.accounts.CreateAccount(c.Request.Context(), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// GetAccount 查询账户余额
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.query.Balances(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// ListMovements 查询流水；format=csv 时导出 CSV
func (h *Handler) ListMovements(c *gin.Context) {
	filter := domain.MovementFilter{
		Kind:     domain.MovementKind(c.Query("kind")),
		Currency: domain.Currency(c.Query("currency")),
	}
	filter.Limit = intQuery(c, "limit", 100)
	filter.Offset = intQuery(c, "offset", 0)

	accountID := c.Param("id")
	if c.Query("format") == "csv" {
		data, err := h.query.MovementsCSV(c.Request.Context(), accountID, filter)
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename=movimientos.csv")
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
		return
	}

	movements, err := h.query.Movements(c.Request.Context(), accountID, filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

// ListReceipts 查询凭证列表
func (h *Handler) ListReceipts(c *gin.Context) {
	receipts, err := h.query.Receipts(c.Request.Context(), c.Param("id"),
		intQuery(c, "limit", 50), intQuery(c, "offset", 0))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

// GetReceipt 查询单张凭证，路径段为凭证 ID 或编号
func (h *Handler) GetReceipt(c *gin.Context) {
	receipt, err := h.query.Receipt(c.Request.Context(), c.Param("id"), c.Param("receipt_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// DownloadReceipt 下载凭证文档
func (h *Handler) DownloadReceipt(c *gin.Context) {
	receipt, data, err := h.query.ReceiptDocument(c.Request.Context(), c.Param("id"), c.Param("receipt_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+receipt.Serial+".html")
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// ClientInfo 凭证上打印的客户信息
type ClientInfo struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Address  string `json:"address"`
}

// PurchaseRequest 购汇请求
type PurchaseRequest struct {
	Target   string     `json:"target" binding:"required"`
	SpendARS string     `json:"spend_ars" binding:"required"`
	Client   ClientInfo `json:"client"`
}

// Purchase 购汇
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := domain.ParseCurrency(req.Target)
	if err != nil {
		fail(c, err)
		return
	}
	spend, err := decimal.NewFromString(req.SpendARS)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid spend_ars"})
		return
	}

	result, err := h.settlement.Purchase(c.Request.Context(), application.PurchaseCommand{
		AccountID:  c.Param("id"),
		Target:     target,
		SpendARS:   spend,
		ClientName: req.Client.Name,
		ClientDoc:  req.Client.Document,
		ClientAddr: req.Client.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, settlementResponse(result))
}

// SaleRequest 结汇请求
type SaleRequest struct {
	Source string     `json:"source" binding:"required"`
	Amount string     `json:"amount" binding:"required"`
	Client ClientInfo `json:"client"`
}

// Sale 结汇
func (h *Handler) Sale(c *gin.Context) {
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	source, err := domain.ParseCurrency(req.Source)
	if err != nil {
		fail(c, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	result, err := h.settlement.Sale(c.Request.Context(), application.SaleCommand{
		AccountID:  c.Param("id"),
		Source:     source,
		Amount:     amount,
		ClientName: req.Client.Name,
		ClientDoc:  req.Client.Document,
		ClientAddr: req.Client.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, settlementResponse(result))
}

// SwapRequest 互换请求
type SwapRequest struct {
	Source string     `json:"source" binding:"required"`
	Target string     `json:"target" binding:"required"`
	Amount string     `json:"amount" binding:"required"`
	Client ClientInfo `json:"client"`
}

// Swap USD 与 USDT 互换
func (h *Handler) Swap(c *gin.Context) {
	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	source, err := domain.ParseCurrency(req.Source)
	if err != nil {
		fail(c, err)
		return
	}
	target, err := domain.ParseCurrency(req.Target)
	if err != nil {
		fail(c, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	result, err := h.settlement.Swap(c.Request.Context(), application.SwapCommand{
		AccountID:  c.Param("id"),
		Source:     source,
		Target:     target,
		Amount:     amount,
		ClientName: req.Client.Name,
		ClientDoc:  req.Client.Document,
		ClientAddr: req.Client.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, settlementResponse(result))
}

// CreateDepositRequest 充值申请
type CreateDepositRequest struct {
	Currency   string `json:"currency" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Channel    string `json:"channel" binding:"required"`
	VoucherRef string `json:"voucher_ref"`
	Network    string `json:"network"`
	TxID       string `json:"txid"`
}

// CreateDeposit 提交充值申请
func (h *Handler) CreateDeposit(c *gin.Context) {
	var req CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		fail(c, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	request, err := h.funding.CreateDeposit(c.Request.Context(), application.CreateDepositCommand{
		AccountID:  c.Param("id"),
		Currency:   currency,
		Amount:     amount,
		Channel:    domain.DepositChannel(req.Channel),
		VoucherRef: req.VoucherRef,
		Network:    req.Network,
		TxID:       req.TxID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// CreateWithdrawalRequest 提现申请
type CreateWithdrawalRequest struct {
	Currency      string `json:"currency" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Alias         string `json:"alias"`
	CBU           string `json:"cbu"`
	BankName      string `json:"bank_name"`
	WalletAddress string `json:"wallet_address"`
	Network       string `json:"network"`
}

// CreateWithdrawal 提交提现申请，提交即扣减预留
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		fail(c, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	request, err := h.funding.CreateWithdrawal(c.Request.Context(), application.CreateWithdrawalCommand{
		AccountID:     c.Param("id"),
		Currency:      currency,
		Amount:        amount,
		Alias:         req.Alias,
		CBU:           req.CBU,
		BankName:      req.BankName,
		WalletAddress: req.WalletAddress,
		Network:       req.Network,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// Verify 公开凭证验证。凭证上印的二维码指向编号地址，验证码可手工输入
func (h *Handler) Verify(c *gin.Context) {
	ref := c.Param("ref")
	var (
		result *application.VerificationResult
		err    error
	)
	if strings.HasPrefix(ref, "BOL-") {
		result, err = h.verification.VerifyBySerial(c.Request.Context(), ref)
	} else {
		result, err = h.verification.VerifyByCode(c.Request.Context(), ref)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func settlementResponse(result *application.SettlementResult) gin.H {
	return gin.H{
		"receipt":  result.Receipt,
		"debited":  result.Debited.StringFixed(2),
		"credited": result.Credited.StringFixed(2),
		"rate":     result.Rate.String(),
		"fee":      result.Fee.StringFixed(2),
	}
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
