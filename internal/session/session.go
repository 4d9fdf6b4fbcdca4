// Package session manages the lifecycle of a single authenticated IMAP
// session: TLS dial, LOGIN, CAPABILITY, SELECT, incremental UID FETCH,
// IDLE, and teardown. Sessions are never shared across accounts or
// goroutines.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/darioblanco/pregonero-go/internal/account"
	"github.com/darioblanco/pregonero-go/internal/parser"
)

// ErrSessionOpenFailed wraps any failure encountered while establishing a
// session: TCP connect, TLS handshake, LOGIN, CAPABILITY, or SELECT.
var ErrSessionOpenFailed = errors.New("session: open failed")

const imapPort = 993

// tlsConfigFor builds a TLS config verified against the account's IMAP
// host, used as both the SNI and verification name.
func tlsConfigFor(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}

// Session owns a TLS connection, its authentication state, and the
// currently selected mailbox.
type Session struct {
	client  *imapclient.Client
	account account.Account
	mailbox string
}

// Open establishes a new authenticated, mailbox-selected session for acc.
func Open(ctx context.Context, acc account.Account) (*Session, error) {
	addr := fmt.Sprintf("%s:%d", acc.IMAPHost, imapPort)

	c, err := imapclient.DialTLS(addr, tlsConfigFor(acc.IMAPHost))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrSessionOpenFailed, addr, err)
	}

	if err := c.Login(acc.Email, acc.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("%w: login: %v", ErrSessionOpenFailed, err)
	}

	caps, err := c.Capability()
	if err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("%w: capability: %v", ErrSessionOpenFailed, err)
	}
	_ = caps // logged by the caller; kept here only to surface a failed CAPABILITY as fatal

	mailbox := acc.MailboxOrDefault()
	if _, err := c.Select(mailbox, false); err != nil {
		if mailbox == "INBOX" {
			_ = c.Logout()
			return nil, fmt.Errorf("%w: select %s: %v", ErrSessionOpenFailed, mailbox, err)
		}
		// The configured mailbox was rejected; fall back to INBOX once
		// before giving up on this session entirely.
		if _, err2 := c.Select("INBOX", false); err2 != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("%w: select %s (and fallback INBOX): %v", ErrSessionOpenFailed, mailbox, err)
		}
		mailbox = "INBOX"
	}

	return &Session{client: c, account: acc, mailbox: mailbox}, nil
}

// Capabilities returns the server's advertised CAPABILITY response, for
// diagnostic logging.
func (s *Session) Capabilities() (map[string]bool, error) {
	return s.client.Capability()
}

// Fetch issues FETCH <low>:* with the attribute list the contract
// requires and returns the raw fetches in server order. low is a UID,
// not a message sequence number.
func (s *Session) Fetch(low uint32) ([]parser.RawFetch, error) {
	set, err := imap.ParseSeqSet(fmt.Sprintf("%d:*", low))
	if err != nil {
		return nil, fmt.Errorf("session: parse seqset: %w", err)
	}

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchRFC822Size,
		section.FetchItem(),
		imap.FetchEnvelope,
		imap.FetchUid,
	}

	messages := make(chan *imap.Message, 32)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(set, items, messages)
	}()

	var fetches []parser.RawFetch
	for msg := range messages {
		fetches = append(fetches, toRawFetch(msg, section))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("session: fetch: %w", err)
	}
	return fetches, nil
}

func toRawFetch(msg *imap.Message, section *imap.BodySectionName) parser.RawFetch {
	raw := parser.RawFetch{UID: msg.Uid}

	if msg.Envelope != nil {
		env := &parser.EnvelopeData{Subject: msg.Envelope.Subject}
		for _, addr := range msg.Envelope.Sender {
			env.Senders = append(env.Senders, parser.EnvelopeAddress{
				PersonalName: addr.PersonalName,
				MailboxName:  addr.MailboxName,
				HostName:     addr.HostName,
			})
		}
		raw.Envelope = env
	}

	if body := msg.GetBody(section); body != nil {
		if data, err := io.ReadAll(body); err == nil {
			raw.Body = data
		}
	}

	return raw
}

// IdleOutcome describes why a call to Idle returned.
type IdleOutcome int

const (
	// IdleNewData means the server pushed a mailbox update.
	IdleNewData IdleOutcome = iota
	// IdleServerTimeout means the server ended IDLE on its own.
	IdleServerTimeout
	// IdleClientInterrupt means our own deadline (or a caller cancel)
	// fired first.
	IdleClientInterrupt
)

// Idle enters IDLE and blocks until new mailbox data arrives, the server
// ends IDLE on its own, or deadline elapses — whichever comes first. On
// any outcome the session has already issued DONE and is back in the
// Selected state.
func (s *Session) Idle(ctx context.Context, deadline time.Duration) (IdleOutcome, error) {
	updates := make(chan imapclient.Update, 8)
	s.client.Updates = updates
	defer func() { s.client.Updates = nil }()

	stop := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- s.client.Idle(stop, &imapclient.IdleOptions{})
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var outcome IdleOutcome
	select {
	case <-updates:
		outcome = IdleNewData
	case <-timer.C:
		outcome = IdleClientInterrupt
	case <-ctx.Done():
		outcome = IdleClientInterrupt
	case err := <-result:
		// IDLE ended before we asked it to: a clean end is the server
		// timeout outcome, a connection error is returned as an error.
		if err != nil {
			return 0, fmt.Errorf("session: idle: %w", err)
		}
		return IdleServerTimeout, nil
	}

	close(stop)
	if err := <-result; err != nil {
		return 0, fmt.Errorf("session: idle: %w", err)
	}
	return outcome, nil
}

// Close logs the session out and drops the underlying connection.
func (s *Session) Close() {
	if s.client == nil {
		return
	}
	_ = s.client.Logout()
}
