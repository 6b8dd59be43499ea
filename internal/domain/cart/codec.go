package cart

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Token wire format: base64(utf8("<courseID>,<title>,<quantity>,<unitPrice>|" ...)).
// The quantity field is carried for wire compatibility only; carts hold at
// most one of each course, so encoders always write 1 and decoders discard
// the parsed value.

const (
	segmentSep = "|"
	fieldSep   = ","
)

// Encode serializes cart lines into an opaque token, preserving order.
// Encode and Decode round-trip: Decode(Encode(lines)) == lines for any list
// of lines with unique course ids.
func Encode(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strconv.Itoa(l.CourseID))
		b.WriteString(fieldSep)
		b.WriteString(l.Title)
		b.WriteString(fieldSep)
		b.WriteString("1")
		b.WriteString(fieldSep)
		b.WriteString(l.UnitPrice.String())
		b.WriteString(segmentSep)
	}
	return base64.StdEncoding.EncodeToString([]byte(b.String()))
}

// Decode parses a token back into cart lines, preserving encoded order and
// dropping duplicate course ids (first occurrence wins). An empty token
// decodes to no lines. Structurally invalid input (bad base64, a segment
// with the wrong field count, or a field that fails to parse) fails the
// whole token with ErrMalformedToken; there is no partial recovery.
func Decode(token string) ([]Line, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedToken, "base64")
	}

	var (
		lines []Line
		seen  = make(map[int]struct{})
	)
	for _, segment := range strings.Split(string(raw), segmentSep) {
		if segment == "" {
			continue
		}

		fields := strings.Split(segment, fieldSep)
		if len(fields) != 4 {
			return nil, errors.Wrapf(ErrMalformedToken, "segment %q", segment)
		}

		courseID, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedToken, "course id %q", fields[0])
		}
		if _, err := strconv.Atoi(strings.TrimSpace(fields[2])); err != nil {
			return nil, errors.Wrapf(ErrMalformedToken, "quantity %q", fields[2])
		}
		unitPrice, err := decimal.NewFromString(strings.TrimSpace(fields[3]))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedToken, "unit price %q", fields[3])
		}

		if _, ok := seen[courseID]; ok {
			continue
		}
		seen[courseID] = struct{}{}

		lines = append(lines, Line{
			CourseID:  courseID,
			Title:     strings.TrimSpace(fields[1]),
			UnitPrice: unitPrice,
		})
	}

	return lines, nil
}
