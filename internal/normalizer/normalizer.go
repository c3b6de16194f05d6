package normalizer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

var (
	// ErrEmptyBody is returned when no text can be obtained from a message.
	ErrEmptyBody = errors.New("normalizer: message has no extractable body")

	// ErrMalformedMarkup is reported when HTML stripping fails. Normalize recovers from it.
	ErrMalformedMarkup = errors.New("normalizer: markup could not be stripped")

	// ErrSubjectDecode is reported when the subject header cannot be decoded. Normalize recovers from it.
	ErrSubjectDecode = errors.New("normalizer: subject could not be decoded")
)

// Normalized is the plain-text view of one email.
type Normalized struct {
	Text    string
	Subject string
}

// Normalizer converts raw RFC 822 messages into plain text.
type Normalizer struct {
	log   zerolog.Logger
	strip func(io.Reader) (string, error)
}

// New creates a Normalizer that reports recovered failures to log.
func New(log zerolog.Logger) *Normalizer {
	return &Normalizer{
		log:   log.With().Str("component", "normalizer").Logger(),
		strip: HTMLToText,
	}
}

// Normalize selects the message body (first text/html part, else first text/plain part),
// strips markup, and decodes the subject.
func (n *Normalizer) Normalize(raw []byte) (Normalized, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: read message: %v", ErrEmptyBody, err)
	}

	body, err := selectBody(textproto.MIMEHeader(msg.Header), msg.Body)
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: %v", ErrEmptyBody, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Normalized{}, ErrEmptyBody
	}

	text, err := n.strip(bytes.NewReader(body))
	if err != nil {
		n.log.Warn().Err(err).Msg("Markup stripping failed, using raw body")
		text = rawText(body)
	}

	rawSubject := msg.Header.Get("Subject")
	subject, err := DecodeSubject(rawSubject)
	if err != nil {
		n.log.Warn().Err(err).Str("subject", rawSubject).Msg("Failed to decode subject, using raw header")
		subject = rawSubject
	}

	return Normalized{Text: text, Subject: subject}, nil
}

// DecodeSubject decodes RFC 2047 encoded-words into a plain string.
func DecodeSubject(raw string) (string, error) {
	dec := &mime.WordDecoder{CharsetReader: charset.NewReaderLabel}
	subject, err := dec.DecodeHeader(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubjectDecode, err)
	}
	return subject, nil
}

// part is a decoded leaf of the MIME tree.
type part struct {
	mediaType string
	body      []byte
}

// selectBody walks the MIME tree depth-first and picks the first text/html leaf,
// falling back to the first text/plain leaf. A single-part message yields its payload
// whatever its type.
func selectBody(header textproto.MIMEHeader, r io.Reader) ([]byte, error) {
	mediaType, params := contentType(header)
	if !isContainer(mediaType) {
		return decodePart(header, params, r)
	}

	var htmlBody, plain []byte
	_, err := walk(header, r, func(p part) bool {
		switch p.mediaType {
		case "text/html":
			htmlBody = p.body
			return false
		case "text/plain":
			if plain == nil {
				plain = p.body
			}
		}
		return true
	})
	switch {
	case htmlBody != nil:
		return htmlBody, nil
	case plain != nil:
		return plain, nil
	case err != nil:
		return nil, err
	}
	return nil, errors.New("no text/html or text/plain part")
}

// isContainer reports whether parts of mediaType hold further parts. An attached
// message/rfc822 is walked like a multipart, so forwarded alerts are found.
func isContainer(mediaType string) bool {
	return strings.HasPrefix(mediaType, "multipart/") || mediaType == "message/rfc822"
}

// walk visits every leaf part in document order until visit returns false.
// It reports whether the walk should continue.
func walk(header textproto.MIMEHeader, r io.Reader, visit func(part) bool) (bool, error) {
	mediaType, params := contentType(header)
	if mediaType == "message/rfc822" {
		msg, err := mail.ReadMessage(r)
		if err != nil {
			// An unreadable attached message is skipped like a non-text leaf.
			return true, nil
		}
		return walk(textproto.MIMEHeader(msg.Header), msg.Body, visit)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		body, err := decodePart(header, params, r)
		if err != nil {
			// Unreadable leaves are skipped like any other non-text part.
			return true, nil
		}
		return visit(part{mediaType: mediaType, body: body}), nil
	}

	boundary := params["boundary"]
	if boundary == "" {
		return true, fmt.Errorf("multipart message without boundary")
	}

	mr := multipart.NewReader(r, boundary)
	for {
		p, err := mr.NextRawPart()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return true, fmt.Errorf("read multipart: %w", err)
		}

		cont, err := walk(p.Header, p, visit)
		if err != nil || !cont {
			return cont, err
		}
	}
}

// contentType returns the lower-cased media type, defaulting to text/plain.
func contentType(header textproto.MIMEHeader) (string, map[string]string) {
	value := header.Get("Content-Type")
	if value == "" {
		return "text/plain", map[string]string{}
	}
	mediaType, params, err := mime.ParseMediaType(value)
	if err != nil {
		// Keep whatever precedes the parameters, e.g. "text/html; charset=".
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(value, ";", 2)[0]))
		return mediaType, map[string]string{}
	}
	return mediaType, params
}

// decodePart undoes the transfer encoding and converts the declared charset to UTF-8.
// Bodies that fail transfer decoding are returned as-is.
func decodePart(header textproto.MIMEHeader, params map[string]string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		if decoded, err := decodeBase64(data); err == nil {
			data = decoded
		}
	case "quoted-printable":
		if decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(data))); err == nil {
			data = decoded
		}
	}

	label := params["charset"]
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "us-ascii") {
		return data, nil
	}

	cr, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return data, nil
	}
	converted, err := io.ReadAll(cr)
	if err != nil {
		return data, nil
	}
	return converted, nil
}

// decodeBase64 ignores line breaks and tolerates missing padding.
func decodeBase64(data []byte) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', ' ', '\t':
			return -1
		}
		return r
	}, string(data))
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
}
