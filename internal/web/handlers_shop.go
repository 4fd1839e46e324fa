package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalog/internal/shop"
)

const eventHeartbeat = 15 * time.Second

type addToCartRequest struct {
	ProductID string  `json:"product_id" validate:"required,max=64"`
	Title     string  `json:"title" validate:"max=500"`
	Price     float64 `json:"price" validate:"gte=0"`
	ImageURL  *string `json:"image_url" validate:"omitempty,url"`
	Quantity  int     `json:"quantity" validate:"gte=0,lte=999"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=999"`
}

type setOpenRequest struct {
	Open *bool `json:"open" validate:"required"`
}

// shopStore returns the shop store or responds 404 when it is disabled.
func (s *Server) shopStore(w http.ResponseWriter, r *http.Request) (*shop.Store, bool) {
	if s.shop == nil {
		s.respondError(w, r, errUnavailable)
		return nil, false
	}
	return s.shop, true
}

func (s *Server) writeCart(w http.ResponseWriter, r *http.Request, cart shop.Cart, err error) {
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cart)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	cart, err := store.Cart(r.Context(), chi.URLParam(r, "owner"))
	s.writeCart(w, r, cart, err)
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	var req addToCartRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	cart, err := store.AddToCart(r.Context(), chi.URLParam(r, "owner"), shop.Item{
		ProductID: req.ProductID,
		Title:     req.Title,
		Price:     req.Price,
		ImageURL:  req.ImageURL,
		Quantity:  req.Quantity,
	})
	s.writeCart(w, r, cart, err)
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	var req updateQuantityRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	cart, err := store.UpdateQuantity(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "productID"), *req.Quantity)
	s.writeCart(w, r, cart, err)
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	cart, err := store.RemoveFromCart(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "productID"))
	s.writeCart(w, r, cart, err)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	cart, err := store.ClearCart(r.Context(), chi.URLParam(r, "owner"))
	s.writeCart(w, r, cart, err)
}

func (s *Server) handleSetCartOpen(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	var req setOpenRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	cart, err := store.SetCartOpen(r.Context(), chi.URLParam(r, "owner"), *req.Open)
	s.writeCart(w, r, cart, err)
}

// handleCartEvents streams the owner's shop events via Server-Sent Events.
// The first event is the current cart.
func (s *Server) handleCartEvents(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	owner := chi.URLParam(r, "owner")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	events, cancel := store.Subscribe(owner)
	defer cancel()

	cart, err := store.Cart(r.Context(), owner)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	id := 0
	send := func(ev shop.Event) {
		id++
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, ev.Kind, data)
		flusher.Flush()
	}
	send(shop.Event{Kind: shop.EventCart, Owner: owner, Cart: &cart})

	heartbeat := time.NewTicker(eventHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			send(ev)
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	favs, err := store.Favorites(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"favorites": favs})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	store, ok := s.shopStore(w, r)
	if !ok {
		return
	}
	favs, favorite, err := store.ToggleFavorite(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "productID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"favorites": favs, "favorite": favorite})
}
