package controllers

import (
	"errors"
	"fmt"
	"jamsync/internal/ledger"
	"jamsync/internal/models"
	"jamsync/internal/modes"
	"jamsync/internal/providers"
	"jamsync/internal/services"
	"jamsync/internal/session/interfaces"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cast"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger    providers.Logger
	service   services.SessionServiceInterface
	coord     modes.CoordinatorInterface
	ledger    ledger.LedgerInterface
	scheduler interfaces.SchedulerInterface
	cache     providers.CacheProviderInterface
	clock     clockwork.Clock
}

func NewApiController(logger providers.Logger, service services.SessionServiceInterface, coord modes.CoordinatorInterface,
	ldg ledger.LedgerInterface, scheduler interfaces.SchedulerInterface, cache providers.CacheProviderInterface,
	clock clockwork.Clock) *ApiController {
	return &ApiController{
		logger:    logger,
		service:   service,
		coord:     coord,
		ledger:    ldg,
		scheduler: scheduler,
		cache:     cache,
		clock:     clock,
	}
}

type queueEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	AddedBy      string `json:"addedBy"`
	Score        int    `json:"score"`
	HasUpvoted   bool   `json:"hasUpvoted"`
	HasDownvoted bool   `json:"hasDownvoted"`
	Pending      bool   `json:"pending"`
}

type queueResponse struct {
	Entries  []queueEntry         `json:"entries"`
	Playlist models.PlaylistStats `json:"playlist"`
	Version  uint64               `json:"version"`
}

type sessionResponse struct {
	Running      bool                `json:"running"`
	Locked       bool                `json:"locked"`
	Banned       bool                `json:"banned"`
	BanReason    string              `json:"banReason,omitempty"`
	RemainingSec int                 `json:"remainingSec"`
	Stream       models.StreamSource `json:"stream"`
	ViewerCount  int                 `json:"viewerCount"`
	Stale        bool                `json:"stale"`
	PendingOps   int                 `json:"pendingOps"`
	Version      uint64              `json:"version"`
}

type voteRequest struct {
	EntryID   string `json:"entryId"`
	Direction string `json:"direction"`
}

type addSongRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type purgeRequest struct {
	EntryID string `json:"entryId"`
}

type battleVoteRequest struct {
	Choice string `json:"choice"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		writeRaw(w, http.StatusOK, data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)
	writeRaw(w, http.StatusOK, gson)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, gson)
}

// writeLedgerError translates a mutation refusal onto an HTTP status. The
// reason string rides along so the presentation can pick a message.
func (ac *ApiController) writeLedgerError(w http.ResponseWriter, err error) {
	var rej *ledger.RejectedError
	if !errors.As(err, &rej) {
		ac.logger.Errorf(providers.TypePost, "Unexpected mutation error: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	status := http.StatusConflict
	switch rej.Reason {
	case ledger.ReasonInvalidInput:
		status = http.StatusBadRequest
	case ledger.ReasonBanned:
		status = http.StatusForbidden
	case ledger.ReasonNotFound:
		status = http.StatusNotFound
	case ledger.ReasonCooldown, ledger.ReasonQuota:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, errorResponse{Error: string(rej.Reason), Message: rej.Message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	return true
}

// GetQueue serves the ranked queue. The cache key carries the state version
// and the interaction flag, so any reconciled change or an expiring
// interaction window computes a fresh ranking.
func (ac *ApiController) GetQueue(w http.ResponseWriter, r *http.Request) {
	key := fmt.Sprintf("queue:v%d:i%t", ac.service.Version(), ac.service.InteractionActive())
	ac.serveFromCacheOrCompute(w, key, func() (any, error) {
		ranked := ac.service.RankedEntries()
		entries := make([]queueEntry, 0, len(ranked))
		for _, e := range ranked {
			vs := ac.service.VoteState(e.ID)
			entries = append(entries, queueEntry{
				ID:           e.ID,
				Title:        e.Title,
				Artist:       e.Artist,
				AddedBy:      e.AddedBy,
				Score:        e.Score,
				HasUpvoted:   vs.HasUpvoted,
				HasDownvoted: vs.HasDownvoted,
				Pending:      e.Local(),
			})
		}
		return queueResponse{
			Entries:  entries,
			Playlist: ac.service.PlaylistStats(),
			Version:  ac.service.Version(),
		}, nil
	})
}

func (ac *ApiController) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := ac.service.Session()
	writeJSON(w, http.StatusOK, sessionResponse{
		Running:      sess.Running,
		Locked:       sess.Locked,
		Banned:       sess.Banned,
		BanReason:    sess.BanReason,
		RemainingSec: int(sess.Remaining(ac.clock.Now()) / time.Second),
		Stream:       sess.Stream,
		ViewerCount:  ac.service.ViewerCount(),
		Stale:        ac.scheduler.Stale(),
		PendingOps:   ac.service.PendingOps(),
		Version:      ac.service.Version(),
	})
}

func (ac *ApiController) GetModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.coord.State())
}

func (ac *ApiController) GetQuota(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.service.Quota())
}

func (ac *ApiController) GetActivity(w http.ResponseWriter, r *http.Request) {
	limit := cast.ToInt(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, ac.service.Activity(limit))
}

// Vote toggles one of the two vote flags. The answer only confirms the
// local apply; the authority confirmation settles in the background.
func (ac *ApiController) Vote(w http.ResponseWriter, r *http.Request) {
	var payload voteRequest
	if !decodeBody(w, r, &payload) {
		return
	}

	ac.service.MarkInteraction()
	if err := ac.ledger.ToggleVote(payload.EntryID, models.VoteDirection(payload.Direction)); err != nil {
		ac.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (ac *ApiController) AddSong(w http.ResponseWriter, r *http.Request) {
	var payload addSongRequest
	if !decodeBody(w, r, &payload) {
		return
	}

	ac.service.MarkInteraction()
	if err := ac.ledger.AddEntry(payload.Title, payload.Artist); err != nil {
		ac.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (ac *ApiController) PurgeDelete(w http.ResponseWriter, r *http.Request) {
	var payload purgeRequest
	if !decodeBody(w, r, &payload) {
		return
	}

	if err := ac.ledger.DeleteEntry(payload.EntryID); err != nil {
		ac.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (ac *ApiController) BattleVote(w http.ResponseWriter, r *http.Request) {
	var payload battleVoteRequest
	if !decodeBody(w, r, &payload) {
		return
	}

	if err := ac.ledger.CastBattleVote(models.BattleChoice(payload.Choice)); err != nil {
		ac.writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// MarkInteraction opens the ranking stability window without mutating
// anything else. The presentation calls it on hover and focus events.
func (ac *ApiController) MarkInteraction(w http.ResponseWriter, r *http.Request) {
	ac.service.MarkInteraction()
	w.WriteHeader(http.StatusNoContent)
}
