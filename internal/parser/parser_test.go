package parser

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestParse_MissingUID(t *testing.T) {
	_, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:      0,
		Envelope: &EnvelopeData{},
		Body:     []byte("hi"),
	})
	assert.False(t, ok)
}

func TestParse_MissingEnvelope(t *testing.T) {
	_, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:  1,
		Body: []byte("hi"),
	})
	assert.False(t, ok)
}

func TestParse_MissingBody(t *testing.T) {
	_, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:      1,
		Envelope: &EnvelopeData{},
		Body:     nil,
	})
	assert.False(t, ok)
}

func TestParse_EmptyBodyIsStillPresent(t *testing.T) {
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:      1,
		Envelope: &EnvelopeData{},
		Body:     []byte{},
	})
	require.True(t, ok)
	assert.Equal(t, "", msg.Body)
}

func TestParse_SubjectRFC2047(t *testing.T) {
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID: 1,
		Envelope: &EnvelopeData{
			Subject: "=?UTF-8?Q?This_is_a_test?=",
		},
		Body: []byte("hello"),
	})
	require.True(t, ok)
	assert.Equal(t, "This is a test", msg.Subject)
}

func TestParse_SubjectUnsupportedCharsetFallsBack(t *testing.T) {
	raw := "=?UNSUPPORTED?Q?x?="
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID: 1,
		Envelope: &EnvelopeData{
			Subject: raw,
		},
		Body: []byte("hello"),
	})
	require.True(t, ok)
	assert.Equal(t, raw, msg.Subject)
}

func TestParse_NoSubjectSubstitutesNotYet(t *testing.T) {
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:      1,
		Envelope: &EnvelopeData{},
		Body:     []byte("hello"),
	})
	require.True(t, ok)
	assert.Equal(t, "Not yet", msg.Subject)
}

func TestParse_SendersSkipIncomplete(t *testing.T) {
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID: 1,
		Envelope: &EnvelopeData{
			Senders: []EnvelopeAddress{
				{PersonalName: "Alice", MailboxName: "alice", HostName: "example.com"},
				{PersonalName: "Missing host", MailboxName: "bob"},
				{PersonalName: "Missing mailbox", HostName: "example.com"},
			},
		},
		Body: []byte("hello"),
	})
	require.True(t, ok)
	require.Len(t, msg.Senders, 1)
	assert.Equal(t, "alice@example.com", msg.Senders[0].Email)
	assert.Equal(t, "Alice", msg.Senders[0].Name)
}

func TestParse_NoSendersIsEmptyNotFailure(t *testing.T) {
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:      1,
		Envelope: &EnvelopeData{},
		Body:     []byte("hello"),
	})
	require.True(t, ok)
	assert.Empty(t, msg.Senders)
}

func TestParse_HTMLBodyIsStrippedOfTags(t *testing.T) {
	raw := []byte("<!DOCTYPE html><html><body>Hi<br>there</body></html>")
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:      1,
		Envelope: &EnvelopeData{},
		Body:     raw,
	})
	require.True(t, ok)
	assert.NotContains(t, msg.Body, "<")
	assert.NotContains(t, msg.Body, ">")
	assert.Contains(t, msg.Body, "Hi")
	assert.Contains(t, msg.Body, "there")
}

func TestParse_PlainTextBodyPassesThrough(t *testing.T) {
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:      1,
		Envelope: &EnvelopeData{},
		Body:     []byte("just plain text"),
	})
	require.True(t, ok)
	assert.Equal(t, "just plain text", msg.Body)
}

func TestParse_NonUTF8BodyBecomesEmpty(t *testing.T) {
	raw := []byte{0xff, 0xfe, 0xfd}
	msg, ok := Parse(testLogger(), "a@b.com", RawFetch{
		UID:      1,
		Envelope: &EnvelopeData{},
		Body:     raw,
	})
	require.True(t, ok)
	assert.Equal(t, "", msg.Body)
}
