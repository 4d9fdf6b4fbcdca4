// Package codec decodes RFC 2047 encoded-words found in message headers.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrNotEncodedWord is returned when the input does not match the
	// =?charset?encoding?text?= syntax.
	ErrNotEncodedWord = errors.New("codec: not an encoded word")
	// ErrUnsupportedEncoding is returned for any encoding letter other
	// than Q or B.
	ErrUnsupportedEncoding = errors.New("codec: unsupported encoding")
	// ErrUnsupportedCharset is returned for any charset other than
	// UTF-8 or ISO-8859-1.
	ErrUnsupportedCharset = errors.New("codec: unsupported charset")
)

// encodedWordPattern matches the first RFC 2047 encoded-word in a string:
// =?charset?encoding?text?= (case-insensitive). Any encoding token is
// captured; DecodeWord rejects the ones it cannot decode.
var encodedWordPattern = regexp.MustCompile(`(?i)=\?([^?]+)\?([^?]+)\?([^?]*)\?=`)

// DecodeWord decodes the first RFC 2047 encoded-word found in s. It
// returns ErrNotEncodedWord if s contains no such word, ErrUnsupportedEncoding
// if the encoding letter isn't Q or B, and ErrUnsupportedCharset if the
// charset isn't UTF-8 or ISO-8859-1.
func DecodeWord(s string) (string, error) {
	m := encodedWordPattern.FindStringSubmatch(s)
	if m == nil {
		return "", ErrNotEncodedWord
	}
	charsetName, encoding, payload := m[1], strings.ToLower(m[2]), m[3]

	var decoded []byte
	switch encoding {
	case "q":
		decoded = decodeQuotedPrintable(payload)
	case "b":
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
		}
		decoded = data
	default:
		return "", ErrUnsupportedEncoding
	}

	return decodeCharset(charsetName, decoded)
}

// decodeQuotedPrintable decodes a Q-encoded payload in robust mode:
// underscores become spaces, and a malformed =XX escape is kept literally
// instead of aborting the decode.
func decodeQuotedPrintable(payload string) []byte {
	payload = strings.ReplaceAll(payload, "_", " ")

	var buf bytes.Buffer
	for i := 0; i < len(payload); {
		if payload[i] == '=' && i+2 < len(payload) {
			hi, okHi := hexDigit(payload[i+1])
			lo, okLo := hexDigit(payload[i+2])
			if okHi && okLo {
				buf.WriteByte(hi<<4 | lo)
				i += 3
				continue
			}
		}
		buf.WriteByte(payload[i])
		i++
	}
	return buf.Bytes()
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func decodeCharset(charsetName string, data []byte) (string, error) {
	switch strings.ToUpper(charsetName) {
	case "UTF-8", "UTF8":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: invalid utf-8 payload", ErrUnsupportedCharset)
		}
		return string(data), nil
	case "ISO-8859-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnsupportedCharset, err)
		}
		return string(out), nil
	default:
		return "", ErrUnsupportedCharset
	}
}
