package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/application"
	"github.com/cambiosur/exchange/internal/exchange/domain"
)

// AdminHandler 运营侧 HTTP 处理器
type AdminHandler struct {
	admin   *application.AdminService
	funding *application.FundingService
}

// NewAdminHandler 创建运营侧处理器
func NewAdminHandler(admin *application.AdminService, funding *application.FundingService) *AdminHandler {
	return &AdminHandler{admin: admin, funding: funding}
}

// RegisterRoutes 注册运营侧路由。
// 认证由网关完成，这里只要求请求头携带操作员标识。
func (h *AdminHandler) RegisterRoutes(router *gin.Engine) {
	admin := router.Group("/api/v1/admin", h.requireOperator)
	{
		admin.POST("/quotes", h.SaveQuote)
		admin.POST("/accounts/:id/adjustments", h.Adjust)
		admin.POST("/receipts/:receipt_id/annul", h.AnnulReceipt)

		admin.POST("/deposits/:request_id/approve", h.ApproveDeposit)
		admin.POST("/deposits/:request_id/settle", h.SettleDeposit)
		admin.POST("/deposits/:request_id/reject", h.RejectDeposit)

		admin.POST("/withdrawals/:request_id/approve", h.ApproveWithdrawal)
		admin.POST("/withdrawals/:request_id/settle", h.SettleWithdrawal)
		admin.POST("/withdrawals/:request_id/reject", h.RejectWithdrawal)
	}
}

const operatorHeader = "X-Operator-ID"

func (h *AdminHandler) requireOperator(c *gin.Context) {
	if c.GetHeader(operatorHeader) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing operator id"})
		return
	}
	c.Next()
}

func operatorID(c *gin.Context) string {
	return c.GetHeader(operatorHeader)
}

// SaveQuoteRequest 发布行情请求
type SaveQuoteRequest struct {
	Currency string `json:"currency" binding:"required"`
	Buy      string `json:"buy" binding:"required"`
	Sell     string `json:"sell" binding:"required"`
}

// SaveQuote 发布行情
func (h *AdminHandler) SaveQuote(c *gin.Context) {
	var req SaveQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		fail(c, err)
		return
	}
	buy, err := decimal.NewFromString(req.Buy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid buy"})
		return
	}
	sell, err := decimal.NewFromString(req.Sell)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sell"})
		return
	}

	quote, err := h.admin.SaveQuote(c.Request.Context(), application.SaveQuoteCommand{
		Currency: currency,
		Buy:      buy,
		Sell:     sell,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

// AdjustRequest 手工调整请求
type AdjustRequest struct {
	Currency string `json:"currency" binding:"required"`
	Delta    string `json:"delta" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// Adjust 手工调整余额
func (h *AdminHandler) Adjust(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		fail(c, err)
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delta"})
		return
	}

	movement, err := h.admin.Adjust(c.Request.Context(), application.AdjustCommand{
		AccountID:  c.Param("id"),
		Currency:   currency,
		Delta:      delta,
		OperatorID: operatorID(c),
		Reason:     req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

// AnnulReceipt 作废凭证
func (h *AdminHandler) AnnulReceipt(c *gin.Context) {
	if err := h.admin.AnnulReceipt(c.Request.Context(), c.Param("receipt_id"), operatorID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"annulled": true})
}

// ApproveDeposit 审核通过充值
func (h *AdminHandler) ApproveDeposit(c *gin.Context) {
	request, err := h.funding.ApproveDeposit(c.Request.Context(), c.Param("request_id"), operatorID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// SettleRequestBody 结算请求体
type SettleRequestBody struct {
	DestinationAddress string     `json:"destination_address"`
	SourceAddress      string     `json:"source_address"`
	TxID               string     `json:"txid"`
	Client             ClientInfo `json:"client"`
}

// SettleDeposit 结算充值并发行凭证
func (h *AdminHandler) SettleDeposit(c *gin.Context) {
	var req SettleRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.funding.SettleDeposit(c.Request.Context(), application.SettleDepositCommand{
		RequestID:          c.Param("request_id"),
		OperatorID:         operatorID(c),
		DestinationAddress: req.DestinationAddress,
		ClientName:         req.Client.Name,
		ClientDoc:          req.Client.Document,
		ClientAddr:         req.Client.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlementResponse(result))
}

// RejectRequestBody 驳回请求体
type RejectRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectDeposit 驳回充值
func (h *AdminHandler) RejectDeposit(c *gin.Context) {
	var req RejectRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := h.funding.RejectDeposit(c.Request.Context(), c.Param("request_id"), operatorID(c), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// ApproveWithdrawal 审核通过提现
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	request, err := h.funding.ApproveWithdrawal(c.Request.Context(), c.Param("request_id"), operatorID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// SettleWithdrawal 结算提现并发行凭证
func (h *AdminHandler) SettleWithdrawal(c *gin.Context) {
	var req SettleRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.funding.SettleWithdrawal(c.Request.Context(), application.SettleWithdrawalCommand{
		RequestID:     c.Param("request_id"),
		OperatorID:    operatorID(c),
		TxID:          req.TxID,
		SourceAddress: req.SourceAddress,
		ClientName:    req.Client.Name,
		ClientDoc:     req.Client.Document,
		ClientAddr:    req.Client.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settlementResponse(result))
}

// RejectWithdrawal 驳回提现并回补预留金额
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	var req RejectRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := h.funding.RejectWithdrawal(c.Request.Context(), c.Param("request_id"), operatorID(c), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}
