package normalizer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestNormalize_PrefersHTMLOverPlain(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "plain first",
			raw: `From: alerts@axisbank.com
Subject: INR 500 debited
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset="utf-8"

PLAIN VERSION
--b1
Content-Type: text/html; charset="utf-8"

<html><body><p>HTML   VERSION</p></body></html>
--b1--
`,
		},
		{
			name: "html first",
			raw: `Subject: INR 500 debited
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html

<div>HTML VERSION</div>
--b1
Content-Type: text/plain

PLAIN VERSION
--b1--
`,
		},
		{
			name: "html nested in mixed",
			raw: `Subject: INR 500 debited
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain

PLAIN VERSION
--inner
Content-Type: text/html

<b>HTML</b> <i>VERSION</i>
--inner--
--outer
Content-Type: application/pdf
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--outer--
`,
		},
	}

	n := New(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(crlf(tt.raw))
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got.Text != "HTML VERSION" {
				t.Errorf("Text = %q, want %q", got.Text, "HTML VERSION")
			}
		})
	}
}

func TestNormalize_PlainFallback(t *testing.T) {
	raw := `Subject: INR 100 credited
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: image/png
Content-Transfer-Encoding: base64

iVBORw0KGgo=
--b
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

INR 100 credited to your a/c on 01-05-24. Thank=
 you
--b
Content-Type: text/plain

second plain part
--b--
`
	got, err := New(zerolog.Nop()).Normalize(crlf(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := Normalized{
		Text:    "INR 100 credited to your a/c on 01-05-24. Thank you",
		Subject: "INR 100 credited",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_SinglePart(t *testing.T) {
	raw := `Subject: =?UTF-8?B?SU5SIDI1MC4wMCBkZWJpdGVk?=
Content-Type: text/html; charset=utf-8
Content-Transfer-Encoding: base64

PGh0bWw+PGhlYWQ+PHN0eWxlPnAge2NvbG9yOnJlZH08L3N0eWxlPjwvaGVhZD48Ym9keT48
cD5JTlIgMjUwLjAwPC9wPjxwPmRlYml0ZWQgJmFtcDsgc2V0dGxlZDwvcD48L2JvZHk+PC9o
dG1sPg==
`
	got, err := New(zerolog.Nop()).Normalize(crlf(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := Normalized{Text: "INR 250.00 debited & settled", Subject: "INR 250.00 debited"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Latin1Body(t *testing.T) {
	raw := "Subject: INR alert\r\nContent-Type: text/plain; charset=iso-8859-1\r\n\r\nCaf\xe9 INR 10\r\n"
	got, err := New(zerolog.Nop()).Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.Text != "Café INR 10" {
		t.Errorf("Text = %q, want %q", got.Text, "Café INR 10")
	}
}

func TestNormalize_EmptyBody(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"blank single part", "Subject: INR 1 debited\n\n   \n"},
		{
			name: "no text parts",
			raw: `Subject: INR 1 debited
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: application/pdf

%PDF
--b--
`,
		},
		{"unreadable message", "this is not an email"},
	}

	n := New(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(crlf(tt.raw))
			if !errors.Is(err, ErrEmptyBody) {
				t.Errorf("Normalize() error = %v, want ErrEmptyBody", err)
			}
		})
	}
}

func TestNormalize_SubjectDecodeFallback(t *testing.T) {
	raw := "Subject: =?x-unknown-charset?Q?INR_5?=\r\n\r\nINR 5 debited\r\n"
	got, err := New(zerolog.Nop()).Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.Subject != "=?x-unknown-charset?Q?INR_5?=" {
		t.Errorf("Subject = %q, want the raw header", got.Subject)
	}
}

func TestDecodeSubject(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"INR 500 debited", "INR 500 debited"},
		{"=?utf-8?q?INR_500_debited?=", "INR 500 debited"},
		{"Alert: =?UTF-8?B?SU5SIDUwMA==?= debited", "Alert: INR 500 debited"},
		{"=?iso-8859-1?q?Caf=E9?= INR", "Café INR"},
	}
	for _, tt := range tests {
		got, err := DecodeSubject(tt.raw)
		if err != nil {
			t.Fatalf("DecodeSubject(%q) error = %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("DecodeSubject(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"table cells", "<table><tr><td>Amount:</td><td>INR 1,234.50</td></tr></table>", "Amount: INR 1,234.50"},
		{"entities", "<p>A&nbsp;&amp;&nbsp;B</p>", "A & B"},
		{"script and style dropped", "<script>var x = 1;</script><style>p{}</style><p>kept</p>", "kept"},
		{"comments dropped", "<p>a<!-- hidden -->b</p>", "a b"},
		{"whitespace collapsed", "<p>\n  Transaction Info:\n\tUPI/x/1  </p>", "Transaction Info: UPI/x/1"},
		{"plain text", "  INR 5 debited\n on 01-01-24 ", "INR 5 debited on 01-01-24"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTMLToText(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("HTMLToText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HTMLToText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTMLToText_ReaderFailure(t *testing.T) {
	_, err := HTMLToText(iotest.ErrReader(errors.New("boom")))
	if !errors.Is(err, ErrMalformedMarkup) {
		t.Errorf("HTMLToText() error = %v, want ErrMalformedMarkup", err)
	}
}

func TestRawText(t *testing.T) {
	if got := rawText([]byte("INR\xff 5")); got != "INR 5" {
		t.Errorf("rawText() = %q, want %q", got, "INR 5")
	}
}

func TestNormalize_ForwardedAlertPrefersInnerHTML(t *testing.T) {
	raw := `From: me@example.com
Subject: Fwd: INR 500 debited
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain; charset=utf-8

see below
--outer
Content-Type: message/rfc822

From: alerts@axisbank.com
Subject: INR 500 debited
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

PLAIN VERSION
--inner
Content-Type: text/html; charset=utf-8

<html><body><p>INR 500 debited</p></body></html>
--inner--
--outer--
`
	got, err := New(zerolog.Nop()).Normalize(crlf(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := Normalized{Text: "INR 500 debited", Subject: "Fwd: INR 500 debited"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_ForwardedPlainOnlyFallsBackToOuterPlain(t *testing.T) {
	raw := `Subject: Fwd: alert
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain

see below
--outer
Content-Type: message/rfc822

Subject: INR 500 debited
Content-Type: text/plain

INR 500 debited
--outer--
`
	got, err := New(zerolog.Nop()).Normalize(crlf(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.Text != "see below" {
		t.Errorf("Normalize() text = %q, want the first plain part", got.Text)
	}
}

func TestNormalize_RecoversFromMarkupFailure(t *testing.T) {
	raw := "Subject: INR 5 debited\r\nContent-Type: text/html\r\n\r\n<p>INR 5\xff debited</p>\r\n"

	n := New(zerolog.Nop())
	n.strip = func(io.Reader) (string, error) {
		return "", fmt.Errorf("%w: tokenizer failed", ErrMalformedMarkup)
	}
	got, err := n.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if text := strings.TrimSpace(got.Text); text != "<p>INR 5 debited</p>" {
		t.Errorf("Normalize() text = %q, want raw body without invalid bytes", text)
	}
	if got.Subject != "INR 5 debited" {
		t.Errorf("Normalize() subject = %q", got.Subject)
	}
}
