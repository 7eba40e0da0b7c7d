// Package ledger validates and orchestrates every user-initiated mutation.
// A mutation is applied optimistically to the local state, confirmed with
// the authority in the background and settled or rolled back when the
// answer arrives.
package ledger

import (
	"context"
	"fmt"
	"jamsync/internal/authority"
	"jamsync/internal/models"
	"jamsync/internal/modes"
	"jamsync/internal/providers"
	"jamsync/internal/services"
	"jamsync/internal/session/interfaces"
	"jamsync/internal/structures"
	"sync"
	"time"
)

// RejectionReason classifies why a mutation was refused before it reached
// the authority. Controllers map these onto HTTP statuses.
type RejectionReason string

const (
	ReasonSessionStopped RejectionReason = "session_stopped"
	ReasonSessionLocked  RejectionReason = "session_locked"
	ReasonBanned         RejectionReason = "banned"
	ReasonCooldown       RejectionReason = "cooldown"
	ReasonQuota          RejectionReason = "quota_exhausted"
	ReasonPlaylistFull   RejectionReason = "playlist_full"
	ReasonNotFound       RejectionReason = "not_found"
	ReasonPurgeInactive  RejectionReason = "purge_inactive"
	ReasonPurgeUsed      RejectionReason = "purge_used"
	ReasonBattleInactive RejectionReason = "battle_inactive"
	ReasonBattleVoted    RejectionReason = "battle_already_voted"
	ReasonInvalidInput   RejectionReason = "invalid_input"
)

// RejectedError is a local, pre-network refusal.
type RejectedError struct {
	Reason  RejectionReason
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Reason)
}

func rejected(reason RejectionReason, format string, args ...interface{}) error {
	return &RejectedError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

type LedgerInterface interface {
	ToggleVote(entryID string, dir models.VoteDirection) error
	AddEntry(title, artist string) error
	DeleteEntry(entryID string) error
	CastBattleVote(choice models.BattleChoice) error
	// Flush blocks until all in-flight confirmations have resolved. It
	// exists for shutdown and for tests.
	Flush()
	Close()
}

type Ledger struct {
	service   services.SessionServiceInterface
	coord     modes.CoordinatorInterface
	scheduler interfaces.SchedulerInterface
	client    authority.ClientInterface
	limiter   RateLimiterInterface
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface

	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLedger(conf *structures.Config, service services.SessionServiceInterface, coord modes.CoordinatorInterface,
	scheduler interfaces.SchedulerInterface, client authority.ClientInterface, limiter RateLimiterInterface,
	logger providers.Logger, metrics providers.MetricsProviderInterface) LedgerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	return &Ledger{
		service:   service,
		coord:     coord,
		scheduler: scheduler,
		client:    client,
		limiter:   limiter,
		logger:    logger,
		metrics:   metrics,
		timeout:   conf.Authority.Timeout,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// sessionGate rejects mutations the session state forbids. Order matters:
// a stopped session wins over a lock, a lock over a ban message.
func (l *Ledger) sessionGate() error {
	sess := l.service.Session()
	if !sess.Running {
		return rejected(ReasonSessionStopped, "session is not running")
	}
	if sess.Locked {
		return rejected(ReasonSessionLocked, "session is locked")
	}
	if sess.Banned {
		return rejected(ReasonBanned, "visitor is banned: %s", sess.BanReason)
	}
	return nil
}

// ToggleVote flips the visitor's vote flag on an entry. The local apply is
// synchronous; the authority confirmation runs in the background.
func (l *Ledger) ToggleVote(entryID string, dir models.VoteDirection) error {
	if entryID == "" || !dir.Valid() {
		return rejected(ReasonInvalidInput, "entry id and direction are required")
	}
	if err := l.sessionGate(); err != nil {
		l.metrics.IncVotes(string(dir), "rejected")
		return err
	}
	if !l.limiter.Allow(entryID) {
		l.metrics.IncVotes(string(dir), "cooldown")
		return rejected(ReasonCooldown, "entry %s is cooling down", entryID)
	}

	token, err := l.service.ApplyVoteToggle(entryID, dir)
	if err != nil {
		switch err {
		case services.ErrEntryNotFound:
			// The entry vanished from under us. Resync rather than guess.
			l.scheduler.ForceResync("conflict")
			return rejected(ReasonNotFound, "entry %s is unknown", entryID)
		case services.ErrQuotaExhausted:
			return rejected(ReasonQuota, "no %svotes remaining", dir)
		}
		return err
	}

	l.limiter.Record(entryID)
	l.metrics.IncVotes(string(dir), "applied")
	l.logger.Debugf(providers.TypeApp, "Vote %s on %s applied locally, confirming", dir, entryID)

	l.confirm(func(ctx context.Context) {
		err := l.client.Vote(ctx, entryID, dir, token.Set)
		l.resolve("vote", token, err)
	})
	return nil
}

// AddEntry appends a song optimistically under a temporary id and swaps in
// the authoritative entry when the confirmation lands.
func (l *Ledger) AddEntry(title, artist string) error {
	if title == "" || artist == "" {
		return rejected(ReasonInvalidInput, "title and artist are required")
	}
	if err := l.sessionGate(); err != nil {
		return err
	}

	token, err := l.service.ApplyAdd(title, artist)
	if err != nil {
		switch err {
		case services.ErrQuotaExhausted:
			return rejected(ReasonQuota, "no song additions remaining")
		case services.ErrPlaylistFull:
			return rejected(ReasonPlaylistFull, "playlist is full")
		}
		return err
	}

	l.logger.Debugf(providers.TypeApp, "Added %q as %s, confirming", title, token.EntryID)

	l.confirm(func(ctx context.Context) {
		confirmed, err := l.client.AddEntry(ctx, title, artist)
		if err == nil {
			l.service.SettleAdd(token, confirmed)
			return
		}
		l.resolve("add", token, err)
	})
	return nil
}

// DeleteEntry removes an entry during an active purge window. The window's
// single-delete latch is consumed before the apply and released again if
// the delete rolls back.
func (l *Ledger) DeleteEntry(entryID string) error {
	if entryID == "" {
		return rejected(ReasonInvalidInput, "entry id is required")
	}
	if err := l.sessionGate(); err != nil {
		return err
	}
	if err := l.coord.BeginPurgeDelete(); err != nil {
		switch err {
		case modes.ErrPurgeInactive:
			return rejected(ReasonPurgeInactive, "no deletion window is open")
		case modes.ErrPurgeUsed:
			return rejected(ReasonPurgeUsed, "delete already used this window")
		}
		return err
	}

	token, err := l.service.ApplyDelete(entryID)
	if err != nil {
		l.coord.UnmarkPurgeUsed()
		if err == services.ErrEntryNotFound {
			l.scheduler.ForceResync("conflict")
			return rejected(ReasonNotFound, "entry %s is unknown", entryID)
		}
		return err
	}

	l.logger.Infof(providers.TypeApp, "Purge delete of %s applied locally, confirming", entryID)

	l.confirm(func(ctx context.Context) {
		err := l.client.DeleteEntry(ctx, entryID)
		if err != nil && authority.Classify(err) != authority.ClassConflict {
			l.coord.UnmarkPurgeUsed()
		}
		l.resolve("delete", token, err)
	})
	return nil
}

// CastBattleVote records the visitor's side in the running battle.
func (l *Ledger) CastBattleVote(choice models.BattleChoice) error {
	if !choice.Valid() {
		return rejected(ReasonInvalidInput, "battle choice must be a or b")
	}
	if err := l.sessionGate(); err != nil {
		return err
	}
	if err := l.coord.ApplyBattleVote(choice); err != nil {
		switch err {
		case modes.ErrBattleInactive:
			return rejected(ReasonBattleInactive, "no battle is accepting votes")
		case modes.ErrBattleAlreadyVote:
			return rejected(ReasonBattleVoted, "battle vote already cast")
		}
		return err
	}

	l.confirm(func(ctx context.Context) {
		err := l.client.BattleVote(ctx, choice)
		if err == nil {
			l.coord.SettleBattleVote()
			return
		}
		switch authority.Classify(err) {
		case authority.ClassConflict:
			l.coord.SettleBattleVote()
			l.scheduler.ForceResync("conflict")
		case authority.ClassAuthorization:
			l.coord.RevertBattleVote()
			l.service.MarkBanned(authority.Reason(err))
			l.metrics.IncRollbacks("banned")
		default:
			l.coord.RevertBattleVote()
			l.metrics.IncRollbacks("rejected")
			if authority.Classify(err) == authority.ClassTransient {
				l.scheduler.ForceResync("transient")
			}
		}
		l.logger.Warnf(providers.TypeApp, "Battle vote rejected: %v", err)
	})
	return nil
}

// resolve settles or rolls back one confirmed mutation according to the
// error class. Conflicts never roll back; the forced resync adopts the
// authority's view instead.
func (l *Ledger) resolve(op string, token *models.RollbackToken, err error) {
	if err == nil {
		l.service.Settle(token)
		return
	}

	switch authority.Classify(err) {
	case authority.ClassConflict:
		// Rolling back would fight the authority. Release the pending
		// marker and let the resync settle the disagreement.
		l.service.Settle(token)
		l.scheduler.ForceResync("conflict")
		l.logger.Warnf(providers.TypeApp, "Confirm %s conflicted, resyncing: %v", op, err)
	case authority.ClassAuthorization:
		l.service.Revert(token)
		l.service.MarkBanned(authority.Reason(err))
		l.metrics.IncRollbacks("banned")
		l.logger.Warnf(providers.TypeApp, "Confirm %s denied, visitor banned: %v", op, err)
	case authority.ClassRateLimited:
		l.service.Revert(token)
		l.metrics.IncRollbacks("rate_limited")
		retryAfter, _ := authority.RetryAfter(err)
		l.logger.Warnf(providers.TypeApp, "Confirm %s rate limited, retry in %s: %v", op, retryAfter, err)
	case authority.ClassRejected:
		l.service.Revert(token)
		l.metrics.IncRollbacks("rejected")
		l.logger.Warnf(providers.TypeApp, "Confirm %s rejected: %v", op, err)
	default:
		l.service.Revert(token)
		l.metrics.IncRollbacks("network")
		l.scheduler.ForceResync("transient")
		l.logger.Errorf(providers.TypeApp, "Confirm %s failed, resyncing: %v", op, err)
	}
}

func (l *Ledger) confirm(fn func(ctx context.Context)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (l *Ledger) Flush() {
	l.wg.Wait()
}

func (l *Ledger) Close() {
	l.cancel()
	l.wg.Wait()
}
