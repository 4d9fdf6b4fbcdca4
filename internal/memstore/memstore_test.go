package memstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darioblanco/pregonero-go/internal/account"
	"github.com/darioblanco/pregonero-go/internal/email"
)

func TestStore_AccountRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	acc := account.Account{Email: "a@example.com", Password: "secret", IMAPHost: "imap.example.com"}
	prior, err := s.StoreAccount(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, "", prior)

	loaded, err := s.LoadAccountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, acc, *loaded)
}

func TestStore_StoreAccount_ReturnsPriorSerializedJSON(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := account.Account{Email: "a@example.com", Password: "old", IMAPHost: "imap.example.com"}
	_, err := s.StoreAccount(ctx, first)
	require.NoError(t, err)

	second := account.Account{Email: "a@example.com", Password: "new", IMAPHost: "imap.example.com"}
	prior, err := s.StoreAccount(ctx, second)
	require.NoError(t, err)

	var priorAcc account.Account
	require.NoError(t, json.Unmarshal([]byte(prior), &priorAcc))
	assert.Equal(t, first, priorAcc)
}

func TestStore_LoadAccountByEmail_Missing(t *testing.T) {
	s := New()
	loaded, err := s.LoadAccountByEmail(context.Background(), "missing@example.com")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_LoadAccountsByHost(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _ = s.StoreAccount(ctx, account.Account{Email: "a@example.com"})
	_, _ = s.StoreAccount(ctx, account.Account{Email: "b@example.com"})
	_, _ = s.StoreAccount(ctx, account.Account{Email: "c@other.com"})

	matched, err := s.LoadAccountsByHost(ctx, "example.com")
	require.NoError(t, err)
	assert.Len(t, matched, 2)

	all, err := s.LoadAccountsByHost(ctx, "*")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_ClearHostAccounts(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, _ = s.StoreAccount(ctx, account.Account{Email: "a@example.com"})
	_, _ = s.StoreAccount(ctx, account.Account{Email: "c@other.com"})

	require.NoError(t, s.ClearHostAccounts(ctx, "example.com"))

	matched, err := s.LoadAccountsByHost(ctx, "*")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "c@other.com", matched[0].Email)
}

func TestStore_SequenceDefaultsToInitialHighWaterMark(t *testing.T) {
	s := New()
	seq, err := s.LoadLastSequence(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.InitialHighWaterMark, seq)
}

func TestStore_SequenceRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.StoreLastSequence(ctx, "a@example.com", 42))
	seq, err := s.LoadLastSequence(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), seq)
}

func TestStore_Publish(t *testing.T) {
	s := New()
	ctx := context.Background()

	msg := email.QueueMessage{EmailMessage: email.EmailMessage{Account: "a@example.com", SeqID: 1}}
	require.NoError(t, s.Publish(ctx, msg))

	published := s.Published()
	require.Len(t, published, 1)
	assert.Equal(t, msg, published[0])
}
