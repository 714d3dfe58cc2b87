// Package http 暴露订单执行核心的 REST 接口
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/execution/application"
	"github.com/wyfcoding/copytrading/internal/execution/domain"
)

// ExecutionHandler 订单执行 HTTP 处理器
type ExecutionHandler struct {
	app *application.ExecutionService
}

// NewExecutionHandler 创建处理器
func NewExecutionHandler(app *application.ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *ExecutionHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1/execution")
	{
		v1.POST("/order", h.PlaceOrder)
		v1.GET("/book", h.GetOrderBook)
		v1.GET("/fill-price", h.GetFillPrice)
		v1.GET("/events/:intent_id", h.GetOrderEvent)
	}
}

// PlaceOrder 下单
func (h *ExecutionHandler) PlaceOrder(c *gin.Context) {
	var cmd application.PlaceOrderCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.app.PlaceOrder(c.Request.Context(), &cmd)
	if err != nil {
		if execErr, ok := err.(*application.ExecutionError); ok && execErr.Kind == domain.ErrorKindInputRejected {
			c.JSON(http.StatusBadRequest, gin.H{"error": execErr.Message, "error_kind": string(execErr.Kind)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrderBook 查询订单簿快照
func (h *ExecutionHandler) GetOrderBook(c *gin.Context) {
	tokenID := c.Query("token_id")
	if tokenID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token_id is required"})
		return
	}

	book, err := h.app.GetOrderBook(c.Request.Context(), tokenID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token_id": book.TokenID,
		"bids":     book.Bids,
		"asks":     book.Asks,
	})
}

// GetFillPrice 查询订单成交均价
func (h *ExecutionHandler) GetFillPrice(c *gin.Context) {
	orderID := c.Query("order_id")
	market := c.Query("market")
	if orderID == "" || market == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id and market are required"})
		return
	}

	limitPrice := decimal.Zero
	if raw := c.Query("limit_price"); raw != "" {
		var err error
		if limitPrice, err = decimal.NewFromString(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit_price"})
			return
		}
	}

	resolution := h.app.GetFillPrice(c.Request.Context(), orderID, market, limitPrice)
	c.JSON(http.StatusOK, gin.H{
		"fill_price": resolution.FillPrice,
		"fill_count": resolution.FillCount,
		"method":     string(resolution.Method),
	})
}

// GetOrderEvent 查询订单审计记录
func (h *ExecutionHandler) GetOrderEvent(c *gin.Context) {
	intentID := c.Param("intent_id")

	event, err := h.app.GetOrderEvent(c.Request.Context(), intentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order event not found"})
		return
	}

	c.JSON(http.StatusOK, event)
}
