// Package parser turns a raw IMAP fetch into a normalized EmailMessage.
package parser

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	gomail "github.com/emersion/go-message/mail"
	"github.com/jaytaylor/html2text"
	"github.com/sirupsen/logrus"

	"github.com/darioblanco/pregonero-go/internal/codec"
	"github.com/darioblanco/pregonero-go/internal/email"
)

// notYetSubject is substituted when the envelope carries no subject at
// all, for compatibility with older consumers.
const notYetSubject = "Not yet"

const (
	htmlDoctypeMarker = "<!DOCTYPE html>"
	htmlTagMarker     = "<html>"
)

// EnvelopeAddress is the subset of an IMAP envelope address this parser
// needs.
type EnvelopeAddress struct {
	PersonalName string
	MailboxName  string
	HostName     string
}

// EnvelopeData is the subset of an IMAP ENVELOPE this parser needs,
// decoupled from github.com/emersion/go-imap so tests can build fixtures
// without a live session.
type EnvelopeData struct {
	Subject string
	Senders []EnvelopeAddress
}

// RawFetch is one message returned by a FETCH batch.
type RawFetch struct {
	UID      uint32
	Envelope *EnvelopeData
	// Body is the raw BODY.PEEK[TEXT] bytes, or nil if the server didn't
	// return a body section for this message.
	Body []byte
}

// Parse converts a raw fetch into an EmailMessage. It returns ok=false
// when any mandatory field (UID, envelope, body) is missing; it never
// returns an error, since missing optional fields degrade gracefully.
func Parse(logger *logrus.Logger, accountEmail string, raw RawFetch) (*email.EmailMessage, bool) {
	if raw.UID == 0 || raw.Envelope == nil || raw.Body == nil {
		return nil, false
	}

	return &email.EmailMessage{
		Account: accountEmail,
		Senders: extractSenders(raw.Envelope.Senders),
		Subject: decodeSubject(logger, raw.Envelope.Subject),
		Body:    extractBody(raw.Body),
		SeqID:   raw.UID,
	}, true
}

func decodeSubject(logger *logrus.Logger, subject string) string {
	if subject == "" {
		return notYetSubject
	}
	if !strings.HasPrefix(subject, "=?") || !strings.HasSuffix(subject, "?=") {
		return subject
	}

	decoded, err := codec.DecodeWord(subject)
	if err != nil {
		if logger != nil {
			logger.WithError(err).WithField("subject", subject).
				Warn("parser: codec decode failed, keeping raw subject")
		}
		return subject
	}
	return decoded
}

func extractSenders(addrs []EnvelopeAddress) []email.Address {
	senders := make([]email.Address, 0, len(addrs))
	for _, a := range addrs {
		if a.MailboxName == "" || a.HostName == "" {
			continue
		}
		senders = append(senders, email.Address{
			Name:  a.PersonalName,
			Email: a.MailboxName + "@" + a.HostName,
		})
	}
	return senders
}

func extractBody(raw []byte) string {
	if text, ok := topLevelMIMEText(raw); ok {
		return renderBody(text)
	}
	if !utf8.Valid(raw) {
		return ""
	}
	return renderBody(string(raw))
}

// topLevelMIMEText attempts a MIME parse of the raw body section and
// returns the first text part found. It fails (ok=false) whenever the
// section isn't a well-formed MIME entity on its own — expected for most
// messages, since BODY.PEEK[TEXT] never carries the top-level headers a
// MIME parser needs to detect multipart boundaries.
func topLevelMIMEText(raw []byte) (string, bool) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", false
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return "", false
		}
		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "" && !strings.HasPrefix(contentType, "text/") {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}

func renderBody(text string) string {
	if strings.Contains(text, htmlDoctypeMarker) || strings.Contains(text, htmlTagMarker) {
		return stripHTML(text)
	}
	return text
}

// stripHTML converts an HTML body to plain text with no line wrapping
// (effectively unbounded width).
func stripHTML(htmlBody string) string {
	plain, err := html2text.FromString(htmlBody)
	if err != nil {
		return htmlBody
	}
	return plain
}
