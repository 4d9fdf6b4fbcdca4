// Package memstore is an in-memory account.Store and queue.Queue used by
// tests in place of Redis.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/darioblanco/pregonero-go/internal/account"
	"github.com/darioblanco/pregonero-go/internal/email"
	"github.com/darioblanco/pregonero-go/internal/queue"
)

// Store is a mutex-guarded, in-process implementation of account.Store and
// queue.Queue.
type Store struct {
	mu        sync.Mutex
	accounts  map[string]account.Account
	sequences map[string]uint32
	published []email.QueueMessage
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts:  make(map[string]account.Account),
		sequences: make(map[string]uint32),
	}
}

func (s *Store) LoadAccountByEmail(ctx context.Context, emailAddr string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[emailAddr]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (s *Store) StoreAccount(ctx context.Context, acc account.Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, had := s.accounts[acc.Email]
	s.accounts[acc.Email] = acc
	if !had {
		return "", nil
	}
	data, err := json.Marshal(prior)
	if err != nil {
		return "", fmt.Errorf("memstore: marshal prior account %s: %w", prior.Email, err)
	}
	return string(data), nil
}

func (s *Store) DestroyAccount(ctx context.Context, emailAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, emailAddr)
	delete(s.sequences, emailAddr)
	return nil
}

func (s *Store) LoadLastSequence(ctx context.Context, emailAddr string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.sequences[emailAddr]
	if !ok {
		return account.InitialHighWaterMark, nil
	}
	return seq, nil
}

func (s *Store) StoreLastSequence(ctx context.Context, emailAddr string, seq uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[emailAddr] = seq
	return nil
}

func (s *Store) LoadAccountsByHost(ctx context.Context, hostGlob string) ([]account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []account.Account
	for _, acc := range s.accounts {
		if matchesHost(acc.Email, hostGlob) {
			matched = append(matched, acc)
		}
	}
	return matched, nil
}

func (s *Store) ClearHostAccounts(ctx context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for emailAddr := range s.accounts {
		if matchesHost(emailAddr, host) {
			delete(s.accounts, emailAddr)
			delete(s.sequences, emailAddr)
		}
	}
	return nil
}

func matchesHost(emailAddr, hostGlob string) bool {
	if hostGlob == "*" || hostGlob == "" {
		return true
	}
	at := strings.LastIndex(emailAddr, "@")
	if at < 0 {
		return false
	}
	return emailAddr[at+1:] == hostGlob
}

// Publish implements queue.Queue by recording the message; Published
// returns everything recorded so far.
func (s *Store) Publish(ctx context.Context, msg email.QueueMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published = append(s.published, msg)
	return nil
}

// Published returns a copy of every message recorded by Publish, in order.
func (s *Store) Published() []email.QueueMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]email.QueueMessage, len(s.published))
	copy(out, s.published)
	return out
}

var _ account.Store = (*Store)(nil)
var _ queue.Queue = (*Store)(nil)
