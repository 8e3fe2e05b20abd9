package handler

import (
	"github.com/erp/pos/internal/interfaces/http/router"
)

// POSRoutes creates the terminal route group. The router mounts it twice:
// at the root, where it serves HTML fragments, and under the API prefix,
// where the JSON middleware switches it to the response envelope.
func POSRoutes(pos *POSHandler, receipts *ReceiptHandler) *router.DomainGroup {
	group := router.NewDomainGroup("pos", "/pos")

	group.GET("/products", pos.Products)

	// Cart
	group.GET("/cart", pos.Cart)
	group.DELETE("/cart", pos.ClearCart)
	group.POST("/cart/items/:sku", pos.AddItem)
	group.PATCH("/cart/items/:sku", pos.UpdateQuantity)
	group.DELETE("/cart/items/:sku", pos.RemoveItem)

	// Checkout
	group.POST("/payment-method", pos.SelectPaymentMethod)
	group.POST("/checkout", pos.Checkout)

	// Shell support
	group.POST("/keys/:key", pos.KeyPress)
	group.GET("/notifications", pos.Notifications)
	group.DELETE("/notifications/:id", pos.DismissNotification)
	group.GET("/status", pos.Status)
	group.POST("/catalog/reload", pos.ReloadCatalog)

	if receipts != nil {
		r := group.Group("receipts", "/receipts")
		r.GET("/last", receipts.LastReceipt)
		r.GET("/last/pdf", receipts.LastReceiptPDF)
		r.GET("/archive/*path", receipts.Archived)
	}

	return group
}

// ShellRoutes serves the terminal page at /
func ShellRoutes(pos *POSHandler) *router.DomainGroup {
	return router.NewDomainGroup("shell", "/").GET("", pos.Page)
}

// SystemRoutes creates the health and system information routes
func SystemRoutes(system *SystemHandler) *router.DomainGroup {
	group := router.NewDomainGroup("system", "")
	group.GET("/healthz", system.Health)
	group.GET("/system/info", system.GetSystemInfo)
	return group
}
