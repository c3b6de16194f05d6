package extractor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/inbox-ledger/internal/domain"
)

// CurrencyMarker must appear in the subject for a message to be considered.
const CurrencyMarker = "INR"

var (
	// ErrCurrencyMismatch is returned when the subject lacks the currency marker.
	// It is expected filtering, not a failure.
	ErrCurrencyMismatch = errors.New("extractor: subject has no INR marker")

	// ErrAmountParse is returned when the text has no usable amount token.
	ErrAmountParse = errors.New("extractor: amount not found or not numeric")
)

// Character class bodies matching what Unicode-aware \w and \s match. Go's own
// \w, \s, \d and \b are ASCII-only.
const (
	word  = `\p{L}\p{N}_`
	space = `\t\n\v\f\r \x{1c}-\x{1f}\x{85}\p{Z}`
)

var (
	amountPattern  = regexp.MustCompile(`INR[` + space + `]*([0-9,.]+)`)
	numericPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)
	datePattern    = regexp.MustCompile(`\p{Nd}{2}-\p{Nd}{2}-\p{Nd}{2,4}`)

	debitedPattern  = wholeWord("debited")
	creditedPattern = wholeWord("credited")
	spentPattern    = wholeWord("spent")
)

// wholeWord matches w case-insensitively between Unicode word boundaries.
func wholeWord(w string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^` + word + `])` + w + `(?:[^` + word + `]|$)`)
}

// upiTrailers mark where a UPI reference ends and the boilerplate footer begins.
var upiTrailers = []string{" If this transaction", " Feel free to connect"}

// Extract turns normalized email text and its subject into a transaction record.
// It returns ErrCurrencyMismatch when the subject does not carry the INR marker and
// ErrAmountParse when no numeric INR amount can be found in text.
func Extract(text, subject string) (domain.TransactionRecord, error) {
	if !strings.Contains(subject, CurrencyMarker) {
		return domain.TransactionRecord{}, ErrCurrencyMismatch
	}

	magnitude, err := ExtractAmount(text)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	direction := ExtractDirection(text, subject)
	amount := magnitude
	if direction == domain.DirectionCredit {
		amount = magnitude.Neg()
	}

	return domain.TransactionRecord{
		Amount:   amount,
		Date:     ExtractDate(text),
		Merchant: ExtractMerchant(text),
		Type:     direction,
	}, nil
}

// ExtractAmount returns the magnitude of the first "INR <number>" token in text.
func ExtractAmount(text string) (decimal.Decimal, error) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, ErrAmountParse
	}

	token := strings.ReplaceAll(m[1], ",", "")
	if !numericPattern.MatchString(token) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountParse, m[1])
	}

	amount, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrAmountParse, m[1], err)
	}
	return amount, nil
}

// ExtractDate returns the first DD-MM-YY or DD-MM-YYYY token verbatim, or "".
func ExtractDate(text string) string {
	return datePattern.FindString(text)
}

// ExtractMerchant applies the merchant rules in priority order.
func ExtractMerchant(text string) string {
	for _, rule := range merchantRules {
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			return rule.extract(m)
		}
	}
	return ""
}

// ExtractDirection searches text and subject for the direction keywords.
// "debited" wins over "credited", which wins over "spent".
func ExtractDirection(text, subject string) domain.Direction {
	switch {
	case debitedPattern.MatchString(text) || debitedPattern.MatchString(subject):
		return domain.DirectionDebit
	case creditedPattern.MatchString(text) || creditedPattern.MatchString(subject):
		return domain.DirectionCredit
	case spentPattern.MatchString(text) || spentPattern.MatchString(subject):
		return domain.DirectionDebit
	}
	return domain.DirectionUnknown
}
