package handler

import (
	"net/http"

	apppos "github.com/erp/pos/internal/application/pos"
	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/infrastructure/logger"
	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/erp/pos/internal/interfaces/render"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RejectionHeader carries the error code of a refused cart change on the
// HTML routes
const RejectionHeader = "X-POS-Rejected"

// POSHandler serves the terminal shell and its cart, checkout and status
// endpoints. Under /pos it answers with HTML fragments; under /api/v1/pos
// the same handlers answer with the JSON envelope.
type POSHandler struct {
	BaseHandler
	terminal  *apppos.Terminal
	projector *render.Projector
	logger    *zap.Logger
}

// NewPOSHandler creates a new POSHandler
func NewPOSHandler(terminal *apppos.Terminal, projector *render.Projector, log *zap.Logger) *POSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &POSHandler{
		terminal:  terminal,
		projector: projector,
		logger:    log,
	}
}

// Page renders the terminal shell
func (h *POSHandler) Page(c *gin.Context) {
	snap := h.terminal.Cart.Snapshot()
	page, err := h.projector.Page(c.Request.Context(), render.PageView{
		CSRFToken:      middleware.CSRFToken(c),
		PaymentMethods: h.terminal.PaymentMethods(),
		PaymentMethod:  h.terminal.PaymentMethod(),
		Products:       h.projector.ProductsView(h.terminal.Catalog, snap, "", ""),
		Cart:           h.projector.CartView(snap),
	})
	if err != nil {
		h.renderFailed(c, "page", err)
		return
	}
	h.HTML(c, http.StatusOK, page)
}

// Products returns the product grid filtered by ?q= and ?category=
func (h *POSHandler) Products(c *gin.Context) {
	var q dto.ProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	view := h.projector.ProductsView(h.terminal.Catalog, h.terminal.Cart.Snapshot(), q.Query, q.Category)
	if wantsJSON(c) {
		h.Success(c, view)
		return
	}
	out, err := h.projector.Products(c.Request.Context(), view)
	if err != nil {
		h.renderFailed(c, "products", err)
		return
	}
	h.HTML(c, http.StatusOK, out)
}

// Cart returns the cart panel with totals
func (h *POSHandler) Cart(c *gin.Context) {
	h.respondCart(c, h.terminal.Cart.Snapshot(), nil)
}

// AddItem adds one unit of :sku
func (h *POSHandler) AddItem(c *gin.Context) {
	sku, ok := bindSKU(c)
	if !ok {
		return
	}
	snap, err := h.terminal.Cart.AddItem(c.Request.Context(), sku)
	h.respondCart(c, snap, err)
}

// RemoveItem drops the :sku line
func (h *POSHandler) RemoveItem(c *gin.Context) {
	sku, ok := bindSKU(c)
	if !ok {
		return
	}
	snap, err := h.terminal.Cart.RemoveItem(c.Request.Context(), sku)
	h.respondCart(c, snap, err)
}

// UpdateQuantity changes the :sku line by the body's delta
func (h *POSHandler) UpdateQuantity(c *gin.Context) {
	sku, ok := bindSKU(c)
	if !ok {
		return
	}
	var req dto.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	snap, err := h.terminal.Cart.UpdateQuantity(c.Request.Context(), sku, req.Delta)
	h.respondCart(c, snap, err)
}

func bindSKU(c *gin.Context) (string, bool) {
	var p dto.SKUParam
	if err := c.ShouldBindUri(&p); err != nil {
		middleware.HandleValidationError(c, err)
		return "", false
	}
	return p.SKU, true
}

// ClearCart empties the cart
func (h *POSHandler) ClearCart(c *gin.Context) {
	snap, err := h.terminal.Cart.Clear(c.Request.Context())
	h.respondCart(c, snap, err)
}

// respondCart answers a cart request. The JSON API reports a rejection
// with its error status. The page gets 200 and the unchanged cart, the
// alert travels through the notification panel and the rejection code
// through RejectionHeader.
func (h *POSHandler) respondCart(c *gin.Context, snap pos.CartSnapshot, err error) {
	if wantsJSON(c) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, snap)
		return
	}

	if err != nil {
		status, code, _ := ErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.InternalError(c, "An unexpected error occurred")
			return
		}
		c.Header(RejectionHeader, code)
	}
	out, rerr := h.projector.Cart(c.Request.Context(), snap)
	if rerr != nil {
		h.renderFailed(c, "cart", rerr)
		return
	}
	h.HTML(c, http.StatusOK, out)
}

// SelectPaymentMethod makes the body's method the tender for the next sale
func (h *POSHandler) SelectPaymentMethod(c *gin.Context) {
	var req dto.PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	method, err := h.terminal.SelectPaymentMethod(req.Method)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.PaymentMethodResponse{Method: method})
}

// Checkout completes the sale and returns the receipt
func (h *POSHandler) Checkout(c *gin.Context) {
	res, err := h.terminal.CompleteSale(c.Request.Context())
	if err != nil {
		// failures carry the message the cashier was shown
		h.HandleError(c, err)
		return
	}

	receiptHTML := ""
	if res.Receipt != nil {
		receiptHTML = res.Receipt.HTML
	}
	if wantsJSON(c) {
		h.Success(c, dto.NewCheckoutResponse(res.Sale, receiptHTML))
		return
	}

	if res.Receipt == nil {
		// the sale went through; only the receipt could not be rendered
		h.HTML(c, http.StatusOK, "")
		return
	}
	out, err := h.projector.Receipt(c.Request.Context(), res.Receipt)
	if err != nil {
		h.renderFailed(c, "receipt", err)
		return
	}
	h.HTML(c, http.StatusOK, out)
}

// KeyPress dispatches the :key shortcut
func (h *POSHandler) KeyPress(c *gin.Context) {
	var req dto.KeyRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.terminal.HandleKey(c.Request.Context(), c.Param("key"), req.Target, req.Confirmed)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// Notifications returns the active alerts
func (h *POSHandler) Notifications(c *gin.Context) {
	active := h.terminal.Notifications.Active()
	if wantsJSON(c) {
		h.Success(c, active)
		return
	}
	out, err := h.projector.Notifications(c.Request.Context(), active)
	if err != nil {
		h.renderFailed(c, "notifications", err)
		return
	}
	h.HTML(c, http.StatusOK, out)
}

// DismissNotification removes the :id alert
func (h *POSHandler) DismissNotification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid notification ID")
		return
	}
	if !h.terminal.Notifications.Dismiss(id) {
		h.NotFound(c, "Notification not found")
		return
	}
	h.NoContent(c)
}

// Status reports the idle flag, checkout state and session statistics
func (h *POSHandler) Status(c *gin.Context) {
	h.Success(c, h.terminal.Status())
}

// ReloadCatalog refetches products and categories from the backend
func (h *POSHandler) ReloadCatalog(c *gin.Context) {
	if err := h.terminal.ReloadCatalog(c.Request.Context()); err != nil {
		logger.WithLogger(c.Request.Context(), h.logger).Warn("Catalog reload failed", zap.Error(err))
		h.Unavailable(c, "Catalog could not be reloaded; the previous catalog is still in use")
		return
	}
	h.Success(c, dto.CatalogResponse{
		Products:   h.terminal.Catalog.Len(),
		Categories: len(h.terminal.Catalog.Categories()),
	})
}

func (h *POSHandler) renderFailed(c *gin.Context, view string, err error) {
	logger.WithLogger(c.Request.Context(), h.logger).Error("Failed to render view",
		zap.String("view", view),
		zap.Error(err))
	h.InternalError(c, "Failed to render view")
}
