package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/susu3304/splitbot/internal/db"
	"github.com/susu3304/splitbot/internal/parse"
	"github.com/susu3304/splitbot/internal/settle"
)

const (
	defaultSettlementLimit = 20
	maxSettlementLimit     = 100
	maxBodyBytes           = 1 << 20
)

type settleRequest struct {
	Text     string         `json:"text"`
	Expenses []settle.Entry `json:"expenses"`
}

type settleResponse struct {
	*settle.Result
	Message string `json:"message"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleSettle(w http.ResponseWriter, r *http.Request) {
	log := a.logger.With(zap.String("request_id", requestID(r.Context())))

	var req settleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		expenses *settle.ExpenseMap
		err      error
	)
	switch {
	case req.Text != "" && len(req.Expenses) > 0:
		writeError(w, http.StatusBadRequest, "send either text or expenses, not both")
		return
	case len(req.Expenses) > 0:
		expenses, err = parse.Entries(req.Expenses)
	default:
		expenses, _, err = parse.Expenses(req.Text)
	}
	var parseErr *parse.ParseError
	if errors.As(err, &parseErr) {
		writeError(w, http.StatusBadRequest, "couldn't parse the expenses provided")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.solver.Solve(r.Context(), expenses)
	var degenerate *settle.DegenerateInputError
	switch {
	case errors.As(err, &degenerate):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, settle.ErrTimeout):
		log.Warn("settlement timed out", zap.Int("participants", expenses.Len()))
	case err != nil:
		log.Error("settlement failed", zap.Int("participants", expenses.Len()), zap.Error(err))
	default:
		log.Info("settled expenses",
			zap.Int("participants", expenses.Len()),
			zap.Stringer("kind", res.Kind),
			zap.Int("transfers", len(res.Transfers)),
		)
		if a.store != nil {
			rec := db.NewSettlement(res, db.SourceAPI, 0, "", "")
			if herr := a.store.RecordSettlement(r.Context(), rec); herr != nil {
				log.Error("failed to record settlement", zap.Error(herr))
			}
		}
	}

	writeJSON(w, http.StatusOK, settleResponse{Result: res, Message: res.Text(a.config.CurrencySymbol)})
}

// Protected handlers
func (a *API) handleUserGuilds(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if a.store == nil {
		http.Error(w, "settlement history is not enabled", http.StatusServiceUnavailable)
		return
	}

	guilds, err := a.getDiscordGuilds(r.Context(), claims.AccessToken)
	if err != nil {
		http.Error(w, "failed to get guilds: "+err.Error(), http.StatusBadGateway)
		return
	}

	ids, err := a.store.GuildIDsWithHistory(r.Context())
	if err != nil {
		a.logger.Error("failed to get guilds with history", zap.Error(err))
		http.Error(w, "failed to get guilds with history", http.StatusInternalServerError)
		return
	}

	known := make(map[int64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	filtered := []DiscordGuild{}
	for _, guild := range guilds {
		guildID, _ := strconv.ParseInt(guild.ID, 10, 64)
		if known[guildID] {
			filtered = append(filtered, guild)
		}
	}

	writeJSON(w, http.StatusOK, filtered)
}

func (a *API) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if a.store == nil {
		http.Error(w, "settlement history is not enabled", http.StatusServiceUnavailable)
		return
	}

	guildID, err := strconv.ParseInt(mux.Vars(r)["guild_id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid guild_id", http.StatusBadRequest)
		return
	}

	limit := defaultSettlementLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxSettlementLimit)
	}

	ok, err := a.userHasGuildAccess(r.Context(), claims.AccessToken, guildID)
	if err != nil {
		http.Error(w, "failed to get guilds: "+err.Error(), http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	settlements, err := a.store.ListSettlements(r.Context(), guildID, limit)
	if err != nil {
		a.logger.Error("failed to list settlements", zap.Int64("guild_id", guildID), zap.Error(err))
		http.Error(w, "failed to list settlements", http.StatusInternalServerError)
		return
	}
	if settlements == nil {
		settlements = []db.Settlement{}
	}

	writeJSON(w, http.StatusOK, settlements)
}
