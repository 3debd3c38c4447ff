package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/Tyrowin/gameportal/internal/account"
	"github.com/Tyrowin/gameportal/internal/auth"
	"github.com/Tyrowin/gameportal/internal/catalog"
	"github.com/Tyrowin/gameportal/internal/chat"
	"github.com/Tyrowin/gameportal/internal/logging"
	"github.com/Tyrowin/gameportal/internal/validation"
)

// maxBodyBytes caps REST request bodies.
const maxBodyBytes = 1 << 20

// Handlers serves the REST API.
type Handlers struct {
	accounts *account.Service
	catalog  *catalog.Service
	tokens   *auth.TokenManager
	engine   *chat.Engine
}

// NewHandlers creates the REST handlers.
func NewHandlers(accounts *account.Service, products *catalog.Service, tokens *auth.TokenManager, engine *chat.Engine) *Handlers {
	return &Handlers{accounts: accounts, catalog: products, tokens: tokens, engine: engine}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

type errorResponse struct {
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

// respondError writes {"message": ...}. Server-side failures pass err so it
// is logged; it is never echoed to the client.
func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		logging.Error().Err(err).Int("status", status).Msg(message)
	}
	respondJSON(w, status, errorResponse{Message: message})
}

// respondValidation writes a 400 listing the failed fields.
func respondValidation(w http.ResponseWriter, message string, err error) {
	resp := errorResponse{Message: message}
	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Errors = verr.Fields
	}
	respondJSON(w, http.StatusBadRequest, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return false
	}
	return true
}

// HealthHandler reports that the server is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Game portal server is running!")
}

// Debug reports server liveness with the current time.
func (h *Handlers) Debug(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message":   "Server is working",
		"timestamp": time.Now().UTC(),
	})
}

type authResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    auth.Identity `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var creds account.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}

	u, err := h.accounts.Register(r.Context(), creds)
	switch {
	case errors.Is(err, account.ErrInvalidRegistration):
		respondValidation(w, "Invalid registration", err)
		return
	case errors.Is(err, account.ErrUsernameTaken):
		respondError(w, http.StatusBadRequest, "Username already exists", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Registration failed", err)
		return
	}

	h.respondWithToken(w, http.StatusCreated, "User registered successfully", u)
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds account.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}
	if creds.Username == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}

	u, err := h.accounts.Login(r.Context(), creds)
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Login failed", err)
		return
	}

	h.respondWithToken(w, http.StatusOK, "Login successful", u)
}

func (h *Handlers) respondWithToken(w http.ResponseWriter, status int, message string, u account.User) {
	id := u.Identity()
	token, err := h.tokens.Issue(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	respondJSON(w, status, authResponse{Message: message, Token: token, User: id})
}

// ChatInfo handles GET /api/chat/info.
func (h *Handlers) ChatInfo(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Chat access granted",
		"user":    id,
	})
}

type presenceResponse struct {
	Connections  int                `json:"connections"`
	Participants []chat.Participant `json:"participants"`
	Typing       []string           `json:"typing"`
}

// ChatPresence handles GET /api/chat/presence.
func (h *Handlers) ChatPresence(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, presenceResponse{
		Connections:  h.engine.ConnectionCount(),
		Participants: h.engine.Participants(),
		Typing:       h.engine.TypingUsers(),
	})
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

// ListProducts handles GET /api/products.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.catalog.List(r.Context(), catalog.Filter{
		Category: q.Get("category"),
		Platform: q.Get("platform"),
		Search:   q.Get("search"),
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetProduct handles GET /api/products/{id}.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /api/products.
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decodeBody(w, r, &p) {
		return
	}

	created, err := h.catalog.Create(r.Context(), p)
	if errors.Is(err, catalog.ErrInvalidProduct) {
		respondValidation(w, "Invalid product", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create product", err)
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	logging.Info().Str("product_id", created.ID).Str("by", id.Username).Msg("Product created")
	respondJSON(w, http.StatusCreated, created)
}

// UpdateProduct handles PUT /api/products/{id}.
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch catalog.ProductPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	updated, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), patch)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, "Product not found", nil)
		return
	case errors.Is(err, catalog.ErrInvalidProduct):
		respondValidation(w, "Invalid product", err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "Failed to update product", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteProduct handles DELETE /api/products/{id}.
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	err := h.catalog.Delete(r.Context(), productID)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete product", err)
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	logging.Info().Str("product_id", productID).Str("by", id.Username).Msg("Product deleted")
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}
