package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinpulse/internal/config"
	"coinpulse/internal/identity"
	"coinpulse/internal/market"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	market   *market.Service
	resolver identity.Resolver
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, marketSvc *market.Service, resolver identity.Resolver) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		market:   marketSvc,
		resolver: resolver,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/companies", s.handleListCompanies)
		r.Get("/companies/{name}", s.handleCompany)
		r.Get("/companies/{name}/history", s.handlePriceHistory)
		r.Get("/trades", s.handleListTrades)
		r.Get("/users/{id}/balance", s.handleBalance)
		r.Get("/users/{id}/holdings/{company}", s.handleHolding)

		r.Post("/orders/buy", s.handleBuy)
		r.Post("/orders/sell", s.handleSell)
		r.Post("/trades", s.handlePostTrade)
		r.Post("/trades/{id}/fill", s.handleFillTrade)
		r.Post("/trades/{id}/cancel", s.handleCancelTrade)
		r.Post("/users/{id}", s.handleEnsureUser)
		r.Post("/users/{id}/verify", s.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/companies", s.handleRegisterCompany)
			r.Put("/companies/{name}", s.handleEditCompany)
			r.Delete("/companies/{name}", s.handleRemoveCompany)
			r.Post("/users/{id}/credits", s.handleGrantCredits)
			r.Get("/transactions", s.handleTransactions)
		})
	})
}

// requireAdmin stands in for the chat platform's role check: callers of
// administrative operations present the shared operator token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || token != s.cfg.AdminToken {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	out, err := s.market.ListCompanies(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": out})
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	out, err := s.market.GetCompany(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1d"
	}
	out, err := s.market.GetPriceHistory(r.Context(), chi.URLParam(r, "name"), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": out})
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	out, err := s.market.ListOpenTrades(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": out})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	cents, err := s.market.GetBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"credits_cents": cents,
		"credits":       market.FormatCredits(cents),
	})
}

func (s *Server) handleHolding(w http.ResponseWriter, r *http.Request) {
	shares, err := s.market.GetHolding(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "company"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": shares})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID  string `json:"user_id"`
		Company string `json:"company"`
		Shares  int64  `json:"shares"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.market.Buy(r.Context(), in.UserID, in.Company, in.Shares)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new_price_cents":  out.NewPriceCents,
		"new_price":        market.FormatCredits(out.NewPriceCents),
		"total_cost_cents": out.TotalCostCents,
		"total_cost":       market.FormatCredits(out.TotalCostCents),
	})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID  string `json:"user_id"`
		Company string `json:"company"`
		Shares  int64  `json:"shares"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.market.Sell(r.Context(), in.UserID, in.Company, in.Shares)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"new_price_cents":      out.NewPriceCents,
		"new_price":            market.FormatCredits(out.NewPriceCents),
		"total_proceeds_cents": out.TotalProceedsCents,
		"total_proceeds":       market.FormatCredits(out.TotalProceedsCents),
	})
}

func (s *Server) handlePostTrade(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SellerID     string `json:"seller_id"`
		Company      string `json:"company"`
		Shares       int64  `json:"shares"`
		Price        string `json:"price"`
		RestrictedTo string `json:"restricted_to"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	priceCents, err := market.ParseCredits(in.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	tradeID, err := s.market.PostTrade(r.Context(), market.PostTradeInput{
		SellerID:           in.SellerID,
		CompanyName:        in.Company,
		Shares:             in.Shares,
		PricePerShareCents: priceCents,
		RestrictedTo:       strings.TrimSpace(in.RestrictedTo),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"trade_id": tradeID})
}

func (s *Server) handleFillTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade id")
		return
	}
	var in struct {
		BuyerID string `json:"buyer_id"`
		Shares  int64  `json:"shares"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.market.FillTrade(r.Context(), tradeID, in.BuyerID, in.Shares)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_price_cents": out.TotalPriceCents,
		"total_price":       market.FormatCredits(out.TotalPriceCents),
		"shares_bought":     out.SharesBought,
		"remaining_shares":  out.RemainingShares,
		"trade_closed":      out.TradeClosed,
	})
}

func (s *Server) handleCancelTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade id")
		return
	}
	var in struct {
		RequesterID string `json:"requester_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.market.CancelTrade(r.Context(), tradeID, in.RequesterID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEnsureUser(w http.ResponseWriter, r *http.Request) {
	if err := s.market.EnsureUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "identity resolution is not configured")
		return
	}
	userID := chi.URLParam(r, "id")
	var in struct {
		NationID string `json:"nation_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.resolver.Resolve(r.Context(), strings.TrimSpace(in.NationID))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, http.StatusNotFound, "nation not found")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := s.market.LinkIdentity(r.Context(), userID, rec.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nation_id":   rec.ID,
		"nation_name": rec.Name,
	})
}

func (s *Server) handleRegisterCompany(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string `json:"name"`
		OwnerID     string `json:"owner_id"`
		Price       string `json:"price"`
		TotalShares int64  `json:"total_shares"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	priceCents, err := market.ParseCredits(in.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.market.RegisterCompany(r.Context(), in.Name, in.OwnerID, priceCents, in.TotalShares); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *Server) handleEditCompany(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Price           string `json:"price"`
		AvailableShares int64  `json:"available_shares"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	priceCents, err := market.ParseCredits(in.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.market.EditCompany(r.Context(), chi.URLParam(r, "name"), priceCents, in.AvailableShares); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRemoveCompany(w http.ResponseWriter, r *http.Request) {
	if err := s.market.RemoveCompany(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amountCents, err := market.ParseCredits(in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.market.GrantCredits(r.Context(), chi.URLParam(r, "id"), amountCents); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	out, err := s.market.RecentTransactions(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrValidation),
		errors.Is(err, market.ErrInsufficientCredits),
		errors.Is(err, market.ErrInsufficientShares),
		errors.Is(err, market.ErrNoLiquidity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrCompanyNotFound),
		errors.Is(err, market.ErrTradeNotFound),
		errors.Is(err, market.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrAlreadyExists),
		errors.Is(err, market.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
