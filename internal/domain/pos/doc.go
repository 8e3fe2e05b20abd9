// Package pos contains the point-of-sale bounded context: the catalog
// entries a terminal sells from, the in-progress cart, and the sale
// request/response exchanged with the sales backend when a cart is
// checked out.
package pos
