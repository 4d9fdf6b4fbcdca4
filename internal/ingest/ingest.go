// Package ingest drives one account's ingestion loop: load cursor, open
// session, fetch, publish, store cursor, idle, repeat.
package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/darioblanco/pregonero-go/internal/account"
	"github.com/darioblanco/pregonero-go/internal/email"
	"github.com/darioblanco/pregonero-go/internal/parser"
	"github.com/darioblanco/pregonero-go/internal/queue"
	"github.com/darioblanco/pregonero-go/internal/session"
)

// consecutiveAuthFailureWarnThreshold is how many back-to-back
// SessionOpenFailed errors trigger an elevated warning. The retry
// contract itself never changes: the loop keeps retrying indefinitely
// either way.
const consecutiveAuthFailureWarnThreshold = 5

// sessioner is the subset of *session.Session the loop depends on,
// seamed out so tests can drive the loop without a live IMAP server.
type sessioner interface {
	Capabilities() (map[string]bool, error)
	Fetch(low uint32) ([]parser.RawFetch, error)
	Idle(ctx context.Context, deadline time.Duration) (session.IdleOutcome, error)
	Close()
}

// opener opens a new session for acc. Production code points this at
// session.Open; tests substitute a fake.
type opener func(ctx context.Context, acc account.Account) (sessioner, error)

// Loop owns the state machine for a single account. One Loop runs per
// account, never shared across goroutines.
type Loop struct {
	Account account.Account
	Store   account.Store
	Queue   queue.Queue
	Logger  *logrus.Logger

	// open defaults to wrapping session.Open; overridable for tests.
	open opener

	consecutiveOpenFailures int
}

// New builds a Loop wired to the real IMAP session manager.
func New(acc account.Account, store account.Store, q queue.Queue, logger *logrus.Logger) *Loop {
	return &Loop{
		Account: acc,
		Store:   store,
		Queue:   q,
		Logger:  logger,
		open: func(ctx context.Context, acc account.Account) (sessioner, error) {
			return session.Open(ctx, acc)
		},
	}
}

// Run blocks until ctx is cancelled, cycling through the ingestion state
// machine: LOAD_CURSOR, OPEN_SESSION, FETCH_BATCH, PUBLISH, STORE_CURSOR,
// IDLE, with a cooldown on any error path.
func (l *Loop) Run(ctx context.Context) {
	log := l.Logger.WithField("account", l.Account.Email)

	for {
		if ctx.Err() != nil {
			return
		}

		cursor, err := l.Store.LoadLastSequence(ctx, l.Account.Email)
		if err != nil {
			log.WithError(err).Error("ingest: load cursor failed")
			if !sleepCtx(ctx, l.Account.WaitTimeout()) {
				return
			}
			continue
		}

		sess, err := l.open(ctx, l.Account)
		if err != nil {
			l.consecutiveOpenFailures++
			entry := log.WithError(err).WithField("consecutive_failures", l.consecutiveOpenFailures)
			if l.consecutiveOpenFailures >= consecutiveAuthFailureWarnThreshold {
				entry.Error("ingest: open session failing repeatedly, retrying after cooldown")
			} else {
				entry.Warn("ingest: open session failed, retrying after cooldown")
			}
			if !sleepCtx(ctx, l.Account.WaitTimeout()) {
				return
			}
			continue
		}
		l.consecutiveOpenFailures = 0

		if caps, err := sess.Capabilities(); err != nil {
			log.WithError(err).Debug("ingest: capability query failed")
		} else {
			log.WithField("capabilities", caps).Debug("ingest: session capabilities")
		}

		if !l.cycle(ctx, log, sess, cursor) {
			sess.Close()
			if !sleepCtx(ctx, l.Account.WaitTimeout()) {
				return
			}
			continue
		}

		sess.Close()
		if !sleepCtx(ctx, l.Account.WaitTimeout()) {
			return
		}
	}
}

// cycle runs FETCH_BATCH → PUBLISH → STORE_CURSOR → IDLE once. It
// returns false when any step fails, signalling the caller to tear the
// session down and retry after cooldown.
func (l *Loop) cycle(ctx context.Context, log *logrus.Entry, sess sessioner, cursor uint32) bool {
	fetches, err := sess.Fetch(cursor)
	if err != nil {
		log.WithError(err).Error("ingest: fetch failed")
		return false
	}

	newCursor := cursor
	skipped := 0
	for _, raw := range fetches {
		if raw.UID < cursor {
			continue
		}

		msg, ok := parser.Parse(l.Logger, l.Account.Email, raw)
		if !ok {
			skipped++
			continue
		}

		if err := l.Queue.Publish(ctx, queueMessage(*msg)); err != nil {
			log.WithError(err).Error("ingest: publish failed, batch aborted")
			return false
		}

		if msg.SeqID > newCursor {
			newCursor = msg.SeqID
		}
	}

	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("ingest: skipped unparseable fetches")
	}

	if newCursor != cursor {
		if err := l.Store.StoreLastSequence(ctx, l.Account.Email, newCursor); err != nil {
			log.WithError(err).Error("ingest: store cursor failed")
			return false
		}
	}

	outcome, err := sess.Idle(ctx, l.Account.IdleTimeout())
	if err != nil {
		log.WithError(err).Error("ingest: idle failed")
		return false
	}
	logIdleOutcome(log, outcome)

	return true
}

func logIdleOutcome(log *logrus.Entry, outcome session.IdleOutcome) {
	switch outcome {
	case session.IdleNewData:
		log.Debug("ingest: idle woke on new data")
	case session.IdleServerTimeout:
		log.Debug("ingest: idle ended by server")
	case session.IdleClientInterrupt:
		log.Debug("ingest: idle interrupted by client deadline")
	}
}

func queueMessage(msg email.EmailMessage) email.QueueMessage {
	return email.QueueMessage{EmailMessage: msg}
}

// sleepCtx sleeps for d, returning false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
