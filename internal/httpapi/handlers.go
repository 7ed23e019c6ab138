package httpapi

import (
	"encoding/json"
	"net/http"

	"cartflow/internal/cart"
	"cartflow/internal/readmodel"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// decodeJSON reads and decodes r's body, reporting malformed JSON as a
// payloadError (spec §7's "malformed JSON" payload-error case).
func decodeJSON[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, newPayloadError("invalid request body: " + err.Error())
	}
	return v, nil
}

// requireMatchingID enforces spec §6's "path ids must equal payload ids"
// rule, then validates both as version-7 UUIDs.
func requireMatchingID(pathValue, payloadValue string) (cart.ID, error) {
	if pathValue != payloadValue {
		return cart.ID{}, newPayloadError("path id does not match payload id")
	}
	return cart.ParseID(pathValue)
}

func lastOf(positions []int64) int64 {
	if len(positions) == 0 {
		return 0
	}
	return positions[len(positions)-1]
}

// --- AddItem ---

type addItemPayload struct {
	CartID      string          `json:"cart_id"`
	ItemID      string          `json:"item_id"`
	ProductID   string          `json:"product_id"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
}

// handleAddItem serves POST /additem/{cart_id}. The fingerprint is never
// read from the payload: it is generated here, a fresh random id per
// request, matching
// original_source/src/domain/helpers/device_fingerprint_calculator.rs's
// calculate_device_fingerprint (add_item_endpoint overwrites whatever the
// client sent with this value).
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[addItemPayload](r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	cartID, err := requireMatchingID(r.PathValue("cart_id"), payload.CartID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	itemID, err := cart.ParseID(payload.ItemID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	productID, err := cart.ParseID(payload.ProductID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	cmd := cart.AddItemCommand{
		CartID:      cartID.String(),
		ItemID:      itemID.String(),
		ProductID:   productID.String(),
		Description: payload.Description,
		Image:       payload.Image,
		Price:       payload.Price,
		Fingerprint: uuid.New().String(),
	}
	positions, err := s.executor.Make(r.Context(), cart.AddItemDecision{Cmd: cmd})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, idResult(cartID.String(), lastOf(positions)))
}

// --- RemoveItem ---

type removeItemPayload struct {
	CartID string `json:"cart_id"`
	ItemID string `json:"item_id"`
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[removeItemPayload](r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	cartID, err := requireMatchingID(r.PathValue("cart_id"), payload.CartID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	itemID, err := cart.ParseID(payload.ItemID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	cmd := cart.RemoveItemCommand{CartID: cartID.String(), ItemID: itemID.String()}
	positions, err := s.executor.Make(r.Context(), cart.RemoveItemDecision{Cmd: cmd})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, idResult(cartID.String(), lastOf(positions)))
}

// --- ClearCart ---

// handleClearCart serves POST /clearcart/{cart_id}. clear_cart.rs takes
// no payload beyond the path id, so there is nothing to cross-check.
func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := cart.ParseID(r.PathValue("cart_id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	cmd := cart.ClearCartCommand{CartID: cartID.String()}
	positions, err := s.executor.Make(r.Context(), cart.ClearCartDecision{Cmd: cmd})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, idResult(cartID.String(), lastOf(positions)))
}

// --- SubmitCart ---

type submitCartPayload struct {
	CartID string `json:"cart_id"`
}

func (s *Server) handleSubmitCart(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[submitCartPayload](r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	cartID, err := requireMatchingID(r.PathValue("cart_id"), payload.CartID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	cmd := cart.SubmitCartCommand{CartID: cartID.String()}
	positions, err := s.executor.Make(r.Context(), cart.SubmitCartDecision{Cmd: cmd})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, idResult(cartID.String(), lastOf(positions)))
}

// --- ChangePrice ---

type changePricePayload struct {
	ProductID string          `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
}

// handleChangePrice serves POST /changeprice/{product_id}: the HTTP twin
// of the PriceChangeTranslator Kafka handler (SPEC_FULL.md §6's expansion
// of the distilled HTTP surface), going through the same stateless
// ChangePriceDecision as internal/inbound/price_change.go.
func (s *Server) handleChangePrice(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[changePricePayload](r)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	productID, err := requireMatchingID(r.PathValue("product_id"), payload.ProductID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	cmd := cart.ChangePriceCommand{ProductID: productID.String(), OldPrice: payload.OldPrice, NewPrice: payload.NewPrice}
	positions, err := s.executor.Make(r.Context(), cart.ChangePriceDecision{Cmd: cmd})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, idResult(productID.String(), lastOf(positions)))
}

// --- Read models ---

// handleCartItemsLive serves GET /{cart_id}/cartitems: the direct-from-
// log fold, grounded on cart_items.rs's cart_items_endpoint.
func (s *Server) handleCartItemsLive(w http.ResponseWriter, r *http.Request) {
	cartID, err := cart.ParseID(r.PathValue("cart_id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	items, total, exists, err := cart.ProjectCartItemsLive(r.Context(), s.store, cartID.String())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !exists {
		s.writeErr(w, cart.ErrCartDoesNotExist)
		return
	}
	writeJSON(w, cartItemsReadModel{CartID: cartID.String(), TotalPrice: total, Data: liveItemsToWire(items)})
}

// handleCartItemsFromDB serves GET /{cart_id}/cartitemsfromdb: the
// persisted projection's twin endpoint, grounded on
// cart_items_from_db.rs's cart_items_from_db_endpoint.
func (s *Server) handleCartItemsFromDB(w http.ResponseWriter, r *http.Request) {
	cartID, err := cart.ParseID(r.PathValue("cart_id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	exists, err := readmodel.CartExists(r.Context(), s.pool, cartID.String())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !exists {
		s.writeErr(w, cart.ErrCartDoesNotExist)
		return
	}

	items, total, err := readmodel.ListCartItems(r.Context(), s.pool, cartID.String())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, cartItemsReadModel{CartID: cartID.String(), TotalPrice: total, Data: persistedItemsToWire(items)})
}

// handleCartsWithProducts serves GET /cartswithproducts/{product_id}.
func (s *Server) handleCartsWithProducts(w http.ResponseWriter, r *http.Request) {
	productID, err := cart.ParseID(r.PathValue("product_id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	carts, err := readmodel.FindCartsWithProduct(r.Context(), s.pool, productID.String())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, carts)
}

// handleInventory serves GET /inventories/{product_id}.
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	productID, err := cart.ParseID(r.PathValue("product_id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	inventory, found, err := readmodel.FindInventory(r.Context(), s.pool, productID.String())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !found {
		writeJSON(w, readmodel.Inventory{ProductID: productID.String(), Inventory: 0})
		return
	}
	writeJSON(w, inventory)
}

// --- Wire shapes for the two cart-items read models ---

// cartItem is the wire shape shared by the live and persisted cart-items
// endpoints, matching cart_items.rs's CartItem.
type cartItem struct {
	ItemID      string          `json:"item_id"`
	ProductID   string          `json:"product_id"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Fingerprint string          `json:"fingerprint"`
}

type cartItemsReadModel struct {
	CartID     string          `json:"cart_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Data       []cartItem      `json:"data"`
}

func liveItemsToWire(items []cart.LiveItem) []cartItem {
	out := make([]cartItem, len(items))
	for i, item := range items {
		out[i] = cartItem{
			ItemID:      item.ItemID,
			ProductID:   item.ProductID,
			Description: item.Description,
			Image:       item.Image,
			Price:       item.Price,
			Fingerprint: item.Fingerprint,
		}
	}
	return out
}

func persistedItemsToWire(items []readmodel.PersistedItem) []cartItem {
	out := make([]cartItem, len(items))
	for i, item := range items {
		out[i] = cartItem{
			ItemID:      item.ItemID,
			ProductID:   item.ProductID,
			Description: item.Description,
			Image:       item.Image,
			Price:       item.Price,
			Fingerprint: item.Fingerprint,
		}
	}
	return out
}
