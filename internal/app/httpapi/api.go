// Package httpapi exposes the thin JSON surface over the vote engine: vote
// intake plus the read-only interface consumed by dashboards and exporters.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agoradev/agora/internal/app/ledger"
	"github.com/agoradev/agora/internal/app/view"
	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/metrics"
)

// Service is the slice of the ledger service the HTTP layer consumes.
type Service interface {
	CreatePoll(ctx context.Context, req ledger.NewPoll) (domain.Poll, error)
	RecordVote(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, voterID string) (ledger.VoteReceipt, error)
	EndPoll(ctx context.Context, pollID domain.PollID, actorID string) error
	SchedulePollEnd(ctx context.Context, pollID domain.PollID, runAt time.Time, actorID string) (domain.ScheduledPoll, error)
	EditQuestion(ctx context.Context, pollID domain.PollID, question, actorID string) error
	AddOption(ctx context.Context, pollID domain.PollID, text, actorID string) (domain.Option, error)
	RenameOption(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, text, actorID string) error
	RemoveOption(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, actorID string) error
	ReorderOptions(ctx context.Context, pollID domain.PollID, order []domain.OptionID, actorID string) error
	DeletePoll(ctx context.Context, pollID domain.PollID, actorID string) error
	Share(ctx context.Context, pollID domain.PollID, externalRef, actorID string) (domain.ViewReplica, error)
	Unshare(ctx context.Context, pollID domain.PollID, externalRef string) error
	GetPoll(ctx context.Context, pollID domain.PollID) (domain.Poll, error)
	ListActive(ctx context.Context, teamID string) ([]domain.Poll, error)
	Snapshot(ctx context.Context, pollID domain.PollID) (domain.AnalyticsSnapshot, error)
	LiveTotals(ctx context.Context, pollID domain.PollID) (map[domain.OptionID]int64, error)
}

var _ Service = (*ledger.Service)(nil)

// API bundles the HTTP handlers bound to the ledger service and the logger.
type API struct {
	service Service
	clock   domain.Clock
	logger  *slog.Logger
}

func New(service Service, clock domain.Clock, logger *slog.Logger) *API {
	return &API{service: service, clock: clock, logger: logger}
}

func (a *API) Register(mux *http.ServeMux) {
	// Routes stay centralized so tests and alternative servers can reuse them.
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/polls", a.handlePolls)
	mux.HandleFunc("/polls/", a.handlePollSubroutes)
	mux.HandleFunc("/votes", a.handleVotes)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handlePolls(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listActive(w, r)
	case http.MethodPost:
		a.createPoll(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) handlePollSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/polls/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	id := domain.PollID(parts[0])

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		a.getPollView(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		a.deletePoll(w, r, id)
	case len(parts) == 2 && parts[1] == "end" && r.Method == http.MethodPost:
		a.endPoll(w, r, id)
	case len(parts) == 2 && parts[1] == "schedule" && r.Method == http.MethodPost:
		a.schedulePollEnd(w, r, id)
	case len(parts) == 2 && parts[1] == "question" && r.Method == http.MethodPatch:
		a.editQuestion(w, r, id)
	case len(parts) == 2 && parts[1] == "analytics" && r.Method == http.MethodGet:
		a.getSnapshot(w, r, id)
	case len(parts) == 2 && parts[1] == "live" && r.Method == http.MethodGet:
		a.getLiveTotals(w, r, id)
	case len(parts) == 2 && parts[1] == "share" && r.Method == http.MethodPost:
		a.sharePoll(w, r, id)
	case len(parts) == 2 && parts[1] == "unshare" && r.Method == http.MethodPost:
		a.unsharePoll(w, r, id)
	case len(parts) == 2 && parts[1] == "reorder" && r.Method == http.MethodPost:
		a.reorderOptions(w, r, id)
	case len(parts) == 2 && parts[1] == "options" && r.Method == http.MethodPost:
		a.addOption(w, r, id)
	case len(parts) == 3 && parts[1] == "options" && r.Method == http.MethodPatch:
		a.renameOption(w, r, id, domain.OptionID(parts[2]))
	case len(parts) == 3 && parts[1] == "options" && r.Method == http.MethodDelete:
		a.removeOption(w, r, id, domain.OptionID(parts[2]))
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleVotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.recordVote(w, r)
}

type createPollRequest struct {
	Question   string   `json:"question"`
	TeamID     string   `json:"team_id"`
	ChannelRef string   `json:"channel_ref"`
	CreatorID  string   `json:"creator_id"`
	VoteType   string   `json:"vote_type"`
	Options    []string `json:"options"`
}

func (a *API) createPoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	poll, err := a.service.CreatePoll(r.Context(), ledger.NewPoll{
		Question:   req.Question,
		TeamID:     req.TeamID,
		ChannelRef: req.ChannelRef,
		CreatorID:  req.CreatorID,
		VoteType:   domain.VoteType(req.VoteType),
		Options:    req.Options,
	})
	if err != nil {
		a.logger.Warn("poll creation failed", "err", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, poll)
}

func (a *API) listActive(w http.ResponseWriter, r *http.Request) {
	polls, err := a.service.ListActive(r.Context(), r.URL.Query().Get("team"))
	if err != nil {
		a.logger.Error("listing active polls failed", "err", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, polls)
}

type voteRequest struct {
	PollID   string `json:"poll_id"`
	OptionID string `json:"option_id"`
	VoterID  string `json:"voter_id"`
}

func (a *API) recordVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveVoteRequest("invalid_payload")
		a.logger.Warn("invalid vote payload", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	receipt, err := a.service.RecordVote(r.Context(),
		domain.PollID(req.PollID),
		domain.OptionID(req.OptionID),
		req.VoterID,
	)
	if err != nil {
		status := voteStatusLabel(err)
		metrics.ObserveVoteRequest(status)
		a.logger.Warn("vote rejected", "err", err, "poll", req.PollID, "option", req.OptionID, "status", status)
		respondError(w, err)
		return
	}

	metrics.ObserveVoteRequest("accepted")
	respondJSON(w, http.StatusCreated, receipt)
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

func (a *API) endPoll(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := a.service.EndPoll(r.Context(), id, req.ActorID); err != nil {
		a.logger.Warn("end poll failed", "err", err, "poll", id)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

type scheduleRequest struct {
	EndAt   string `json:"end_at"`
	ActorID string `json:"actor_id"`
}

func (a *API) schedulePollEnd(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		http.Error(w, "invalid end_at timestamp", http.StatusBadRequest)
		return
	}

	schedule, err := a.service.SchedulePollEnd(r.Context(), id, endAt, req.ActorID)
	if err != nil {
		a.logger.Warn("scheduling poll end failed", "err", err, "poll", id)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, schedule)
}

type questionRequest struct {
	Question string `json:"question"`
	ActorID  string `json:"actor_id"`
}

func (a *API) editQuestion(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := a.service.EditQuestion(r.Context(), id, req.Question, req.ActorID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type optionRequest struct {
	Text    string `json:"text"`
	ActorID string `json:"actor_id"`
}

func (a *API) addOption(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	var req optionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	option, err := a.service.AddOption(r.Context(), id, req.Text, req.ActorID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, option)
}

func (a *API) renameOption(w http.ResponseWriter, r *http.Request, id domain.PollID, optionID domain.OptionID) {
	var req optionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := a.service.RenameOption(r.Context(), id, optionID, req.Text, req.ActorID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

func (a *API) removeOption(w http.ResponseWriter, r *http.Request, id domain.PollID, optionID domain.OptionID) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := a.service.RemoveOption(r.Context(), id, optionID, req.ActorID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type reorderRequest struct {
	Order   []string `json:"order"`
	ActorID string   `json:"actor_id"`
}

func (a *API) reorderOptions(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	order := make([]domain.OptionID, len(req.Order))
	for i, raw := range req.Order {
		order[i] = domain.OptionID(raw)
	}

	if err := a.service.ReorderOptions(r.Context(), id, order, req.ActorID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

func (a *API) deletePoll(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := a.service.DeletePoll(r.Context(), id, req.ActorID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type shareRequest struct {
	ExternalRef string `json:"external_ref"`
	ActorID     string `json:"actor_id"`
}

func (a *API) sharePoll(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	replica, err := a.service.Share(r.Context(), id, req.ExternalRef, req.ActorID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, replica)
}

func (a *API) unsharePoll(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := a.service.Unshare(r.Context(), id, req.ExternalRef); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "unshared"})
}

// getPollView reuses the fan-out renderer so dashboards see exactly what the
// replicas receive.
func (a *API) getPollView(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	poll, err := a.service.GetPoll(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view.Render(poll, poll.Options, a.clock.Now()))
}

func (a *API) getSnapshot(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	snapshot, err := a.service.Snapshot(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

func (a *API) getLiveTotals(w http.ResponseWriter, r *http.Request, id domain.PollID) {
	totals, err := a.service.LiveTotals(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, totals)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyVoted):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPollClosed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPollAlreadyEnded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrOptionHasVotes):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrThrottled):
		status = http.StatusTooManyRequests
	}

	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func voteStatusLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrThrottled):
		return "throttled"
	case errors.Is(err, domain.ErrAlreadyVoted):
		return "duplicate"
	case errors.Is(err, domain.ErrPollClosed):
		return "closed"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
