// Package handler adapts the cart service to a JSON HTTP surface. The
// routing here is deliberately thin: identity is consumed, not implemented.
// Authenticated requests arrive with an X-User-ID header set by the
// upstream auth gateway; anonymous clients are keyed by an anon_id cookie
// issued on first contact.
package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/skillmarket/cart-service/internal/domain/cart"
)

const anonCookie = "anon_id"

// Handler serves the cart API endpoints.
type Handler struct {
	carts *cart.Service
}

// New constructs a Handler over the cart service.
func New(carts *cart.Service) *Handler {
	return &Handler{carts: carts}
}

// Register mounts the cart routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.viewCart)
	mux.HandleFunc("GET /api/cart/count", h.countItems)
	mux.HandleFunc("POST /api/cart/items", h.addToCart)
	mux.HandleFunc("DELETE /api/cart/items/{courseID}", h.removeFromCart)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)
}

// owner resolves the cart owner for a request. A missing anonymous id gets
// a fresh cookie so the client keeps the same cart across requests; the
// cookie TTL mirrors the token TTL.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) cart.Owner {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return cart.User(userID)
	}

	if c, err := r.Cookie(anonCookie); err == nil && c.Value != "" {
		return cart.Anonymous(c.Value)
	}

	key := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookie,
		Value:    key,
		Path:     "/",
		MaxAge:   int(cart.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return cart.Anonymous(key)
}
