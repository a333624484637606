package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/wyfcoding/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/application"
	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/domain"
	"github.com/wyfcoding/pkg/logging"
)

// AnalyticsHandler 负责处理期权风险分析相关的 HTTP 请求
type AnalyticsHandler struct {
	svc *application.AnalyticsService
}

// NewAnalyticsHandler 创建 HTTP 处理器
func NewAnalyticsHandler(svc *application.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *AnalyticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/analytics")
	{
		api.POST("/greeks", h.ComputeGreeks)
		api.POST("/classify", h.ClassifyPortfolio)
		api.POST("/margin", h.CalculateMargin)
		api.POST("/portfolio/analyze", h.AnalyzePortfolio)
		api.GET("/margin/history", h.GetMarginHistory)
	}
}

// ComputeGreeks 计算单期权 Greeks 与隐含波动率
func (h *AnalyticsHandler) ComputeGreeks(c *gin.Context) {
	var req application.GreeksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	greeks, err := h.svc.ComputeGreeks(&req)
	if err != nil {
		if errors.Is(err, application.ErrInvalidGreeksInput) {
			response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
			return
		}
		logging.Error(c.Request.Context(), "Failed to compute greeks", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, greeks)
}

// ClassifyPortfolio 将持仓快照分类为策略列表
func (h *AnalyticsHandler) ClassifyPortfolio(c *gin.Context) {
	var req application.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	strategies, err := h.svc.ClassifyPortfolio(c.Request.Context(), &req)
	if err != nil {
		var cerr *domain.ClassificationError
		if errors.As(err, &cerr) {
			response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
			return
		}
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	response.Success(c, strategies)
}

// CalculateMargin 计算组合维持保证金
func (h *AnalyticsHandler) CalculateMargin(c *gin.Context) {
	var req application.MarginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.svc.CalculateMargin(c.Request.Context(), &req)
	if err != nil {
		var cerr *domain.ClassificationError
		if errors.As(err, &cerr) {
			response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
			return
		}
		logging.Error(c.Request.Context(), "Failed to calculate margin",
			"account_id", req.AccountID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, result)
}

// AnalyzePortfolio 聚合组合 Greeks、盈亏与优化建议
func (h *AnalyticsHandler) AnalyzePortfolio(c *gin.Context) {
	var req application.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	analysis, err := h.svc.AnalyzePortfolio(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to analyze portfolio",
			"account_id", req.AccountID, "error", err)
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	response.Success(c, analysis)
}

// GetMarginHistory 查询账户保证金计算历史
func (h *AnalyticsHandler) GetMarginHistory(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "account_id is required", "")
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = parsed
	}

	snapshots, err := h.svc.GetMarginHistory(c.Request.Context(), accountID, limit)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to get margin history",
			"account_id", accountID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, snapshots)
}
