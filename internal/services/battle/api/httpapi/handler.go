// Package httpapi exposes the battle service over JSON HTTP and SSE.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agorahq/arena/internal/platform/authtoken"
	apperrors "github.com/agorahq/arena/internal/platform/errors"
	"github.com/agorahq/arena/internal/platform/requestctx"
	"github.com/agorahq/arena/internal/services/battle/broadcast"
	"github.com/agorahq/arena/internal/services/battle/domain"
)

// HandlerConfig wires the HTTP surface dependencies.
type HandlerConfig struct {
	Service  *domain.Service
	Hub      *broadcast.Hub
	Verifier *authtoken.Verifier
	CronKey  string
	Clock    func() time.Time
}

type handlers struct {
	service  *domain.Service
	hub      *broadcast.Hub
	verifier *authtoken.Verifier
	cronKey  string
	clock    func() time.Time
}

// NewHandler builds the battle HTTP routing table.
func NewHandler(cfg HandlerConfig) http.Handler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	h := &handlers{
		service:  cfg.Service,
		hub:      cfg.Hub,
		verifier: cfg.Verifier,
		cronKey:  strings.TrimSpace(cfg.CronKey),
		clock:    cfg.Clock,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /battles", h.withAuth(h.createChallenge))
	mux.HandleFunc("GET /battles", h.listBattles)
	mux.HandleFunc("GET /battles/active", h.withAuth(h.activeBattle))
	mux.HandleFunc("GET /battles/{id}", h.getBattle)
	mux.HandleFunc("POST /battles/{id}/respond", h.withAuth(h.respondToChallenge))
	mux.HandleFunc("POST /battles/{id}/grounds", h.withAuth(h.submitGround))
	mux.HandleFunc("POST /battles/{id}/resign", h.withAuth(h.resign))
	mux.HandleFunc("POST /battles/{id}/force-end", h.withAdmin(h.forceEnd))
	mux.HandleFunc("GET /battles/{id}/messages", h.listMessages)
	mux.HandleFunc("GET /battles/{id}/comments", h.listComments)
	mux.HandleFunc("POST /battles/{id}/comments", h.withAuth(h.postComment))
	mux.HandleFunc("GET /battles/{id}/events", h.battleEvents)
	mux.HandleFunc("GET /users/me/events", h.withAuth(h.userEvents))
	mux.HandleFunc("POST /internal/reconcile", h.withCronKey(h.reconcile))
	return mux
}

// battleView augments the stored battle with clock projections so clients can
// render countdowns without trusting their own clocks.
type battleView struct {
	domain.Battle
	ProjectedChallengerHP int       `json:"projected_challenger_hp"`
	ProjectedChallengedHP int       `json:"projected_challenged_hp"`
	ServerTime            time.Time `json:"server_time"`
}

func (h *handlers) view(battle domain.Battle) battleView {
	now := h.clock().UTC()
	challengerHP, challengedHP := domain.ProjectHP(battle, now)
	return battleView{
		Battle:                battle,
		ProjectedChallengerHP: challengerHP,
		ProjectedChallengedHP: challengedHP,
		ServerTime:            now,
	}
}

func (h *handlers) views(battles []domain.Battle) []battleView {
	out := make([]battleView, 0, len(battles))
	for _, battle := range battles {
		out = append(out, h.view(battle))
	}
	return out
}

type createChallengeRequest struct {
	ChallengedID        string `json:"challenged_id"`
	TopicID             string `json:"topic_id"`
	DurationSeconds     int    `json:"duration_seconds"`
	Taunt               string `json:"taunt"`
	ChallengerSide      string `json:"challenger_side"`
	ChallengerOpinionID string `json:"challenger_opinion_id"`
	ChallengedOpinionID string `json:"challenged_opinion_id"`
}

func (h *handlers) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	battle, err := h.service.CreateChallenge(r.Context(), requestctx.UserIDFromContext(r.Context()), domain.CreateChallengeInput{
		ChallengedID:        req.ChallengedID,
		TopicID:             req.TopicID,
		DurationSeconds:     req.DurationSeconds,
		Taunt:               req.Taunt,
		ChallengerSide:      domain.Side(req.ChallengerSide),
		ChallengerOpinionID: req.ChallengerOpinionID,
		ChallengedOpinionID: req.ChallengedOpinionID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(battle))
}

type respondRequest struct {
	Action                 string `json:"action"`
	CounterDurationSeconds int    `json:"counter_duration_seconds"`
}

func (h *handlers) respondToChallenge(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	battle, err := h.service.RespondToChallenge(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()), domain.RespondToChallengeInput{
		Action:                 req.Action,
		CounterDurationSeconds: req.CounterDurationSeconds,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(battle))
}

type groundRequest struct {
	Content string `json:"content"`
}

type groundResponse struct {
	Battle  battleView     `json:"battle"`
	Message domain.Message `json:"message"`
}

func (h *handlers) submitGround(w http.ResponseWriter, r *http.Request) {
	var req groundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	battle, message, err := h.service.SubmitGround(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groundResponse{Battle: h.view(battle), Message: message})
}

func (h *handlers) resign(w http.ResponseWriter, r *http.Request) {
	battle, err := h.service.Resign(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(battle))
}

type forceEndRequest struct {
	WinnerID string `json:"winner_id"`
	Note     string `json:"note"`
}

func (h *handlers) forceEnd(w http.ResponseWriter, r *http.Request) {
	var req forceEndRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	battle, err := h.service.ForceEnd(r.Context(), r.PathValue("id"), domain.ForceEndInput{
		WinnerID: req.WinnerID,
		Note:     req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(battle))
}

func (h *handlers) getBattle(w http.ResponseWriter, r *http.Request) {
	battle, err := h.service.GetBattle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(battle))
}

func (h *handlers) activeBattle(w http.ResponseWriter, r *http.Request) {
	battle, err := h.service.ActiveBattleForUser(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(battle))
}

type battleListResponse struct {
	Battles       []battleView `json:"battles"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

func (h *handlers) listBattles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, err := queryInt(query.Get("page_size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.service.ListBattles(r.Context(), domain.ListBattlesFilter{
		Status:    domain.Status(strings.TrimSpace(query.Get("status"))),
		TopicID:   strings.TrimSpace(query.Get("topic_id")),
		UserID:    strings.TrimSpace(query.Get("user_id")),
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, battleListResponse{
		Battles:       h.views(page.Battles),
		NextPageToken: page.NextPageToken,
	})
}

type messageListResponse struct {
	Messages      []domain.Message `json:"messages"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	pageSize, err := queryInt(r.URL.Query().Get("page_size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.service.ListMessages(r.Context(), r.PathValue("id"), pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageListResponse{
		Messages:      page.Messages,
		NextPageToken: page.NextPageToken,
	})
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h *handlers) postComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	comment, err := h.service.PostComment(r.Context(), r.PathValue("id"), requestctx.UserIDFromContext(r.Context()), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

type commentListResponse struct {
	Comments      []domain.Comment `json:"comments"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *handlers) listComments(w http.ResponseWriter, r *http.Request) {
	pageSize, err := queryInt(r.URL.Query().Get("page_size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.service.ListComments(r.Context(), r.PathValue("id"), pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commentListResponse{
		Comments:      page.Comments,
		NextPageToken: page.NextPageToken,
	})
}

func (h *handlers) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconcile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func queryInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, apperrors.New(apperrors.CodeInvalidRequest, "page_size must be a non-negative integer")
	}
	return parsed, nil
}
