package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"modBot/internal/domain"
	"modBot/internal/usecase/commands"
)

type apiHandlers struct {
	registry  *commands.Registry
	cooldowns *commands.CooldownTracker
	modLog    domain.ModerationLogRepository
	users     domain.UserRepository
	log       *slog.Logger
}

func newAPIHandlers(cfg Config, log *slog.Logger) *apiHandlers {
	return &apiHandlers{
		registry:  cfg.Registry,
		cooldowns: cfg.Cooldowns,
		modLog:    cfg.ModerationLog,
		users:     cfg.Users,
		log:       log,
	}
}

func (h *apiHandlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/commands", h.handleListCommands)
	mux.HandleFunc("DELETE /api/cooldowns/{command}", h.handleClearCooldown)
	mux.HandleFunc("GET /api/moderation/actions", h.handleModerationActions)
	mux.HandleFunc("GET /api/users/{id}/permission", h.handleGetPermission)
	mux.HandleFunc("PUT /api/users/{id}/permission", h.handleSetPermission)
}

func (h *apiHandlers) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "command registry unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": commands.Describe(h.registry)})
}

func (h *apiHandlers) handleClearCooldown(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil || h.cooldowns == nil {
		writeError(w, http.StatusServiceUnavailable, "cooldown tracker unavailable")
		return
	}
	def, ok := h.registry.Resolve(r.PathValue("command"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown command")
		return
	}
	q := r.URL.Query()
	user := strings.TrimSpace(q.Get("user"))
	channel := strings.TrimSpace(q.Get("channel"))
	h.cooldowns.ClearCooldown(def.Name, user, channel)
	h.log.Info("cooldown cleared via api", "command", def.Name, "user", user, "channel", channel)
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandlers) handleModerationActions(w http.ResponseWriter, r *http.Request) {
	if h.modLog == nil {
		writeError(w, http.StatusServiceUnavailable, "moderation log unavailable")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := h.modLog.ListModerationActions(r.Context(), limit)
	if err != nil {
		h.log.Error("list moderation actions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list moderation actions")
		return
	}
	if records == nil {
		records = []*domain.ModerationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": records})
}

type permissionBody struct {
	UserID     string `json:"user_id"`
	Permission int    `json:"permission"`
}

func (h *apiHandlers) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeError(w, http.StatusServiceUnavailable, "user repository unavailable")
		return
	}
	userID := strings.TrimSpace(r.PathValue("id"))
	tier, err := h.users.PermissionTier(r.Context(), userID)
	if err != nil {
		h.log.Error("get permission failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not read permission")
		return
	}
	writeJSON(w, http.StatusOK, permissionBody{UserID: userID, Permission: tier})
}

// handleSetPermission guarda el tier global del usuario; es lo que habilita
// comandos como bot o cooldown para quien no es broadcaster.
func (h *apiHandlers) handleSetPermission(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeError(w, http.StatusServiceUnavailable, "user repository unavailable")
		return
	}
	userID := strings.TrimSpace(r.PathValue("id"))
	var body struct {
		Permission *int `json:"permission"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil || body.Permission == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"permission\": <int>}")
		return
	}
	if *body.Permission < 0 {
		writeError(w, http.StatusBadRequest, "permission must be >= 0")
		return
	}
	if err := h.users.SetPermissionTier(r.Context(), userID, *body.Permission); err != nil {
		h.log.Error("set permission failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not store permission")
		return
	}
	h.log.Info("permission updated via api", "user_id", userID, "permission", *body.Permission)
	writeJSON(w, http.StatusOK, permissionBody{UserID: userID, Permission: *body.Permission})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// setCORSHeaders abre solo las lecturas a otros orígenes. Las rutas que
// modifican estado (DELETE, PUT) no reciben Allow-Origin, así que el preflight
// de un navegador falla.
func setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		if m := r.Header.Get("Access-Control-Request-Method"); m != "" && m != http.MethodGet && m != http.MethodHead {
			return
		}
	default:
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
