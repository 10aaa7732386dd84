package scoring

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mahjong/apperrors"
)

// Points is a score in tenths of a point. Discard wins split the base between
// two players, so half points must be representable exactly.
type Points int64

const pointScale = 10

// FromInt converts a whole number of points.
func FromInt(n int64) Points {
	return Points(n * pointScale)
}

// MaxScore bounds any single score in either direction. It is exact as a
// float64 and leaves room to add several scores without overflow.
const MaxScore Points = 1 << 53

var ErrScoreTooLarge = apperrors.Validation("score is too large")

// InRange reports whether p lies within [-MaxScore, MaxScore].
func (p Points) InRange() bool {
	return p >= -MaxScore && p <= MaxScore
}

// ParsePoints accepts a decimal with at most one fractional digit, e.g. "-2.5".
func ParsePoints(s string) (Points, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty score")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, fmt.Errorf("invalid score")
	}
	if whole == "" {
		whole = "0"
	}
	if whole[0] < '0' || whole[0] > '9' {
		return 0, fmt.Errorf("invalid score %q", s)
	}
	if hasFrac && len(frac) != 1 {
		return 0, fmt.Errorf("score %q has more than one decimal place", s)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if errors.Is(err, strconv.ErrRange) || w > int64(MaxScore/pointScale) {
		return 0, ErrScoreTooLarge
	}
	if err != nil {
		return 0, fmt.Errorf("invalid score %q", s)
	}
	var f int64
	if hasFrac {
		if frac[0] < '0' || frac[0] > '9' {
			return 0, fmt.Errorf("invalid score %q", s)
		}
		f = int64(frac[0] - '0')
	}

	p := Points(w*pointScale + f)
	if neg {
		p = -p
	}
	if !p.InRange() {
		return 0, ErrScoreTooLarge
	}
	return p, nil
}

func (p Points) Float64() float64 {
	return float64(p) / pointScale
}

func (p Points) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	if v%pointScale == 0 {
		return sign + strconv.FormatInt(v/pointScale, 10)
	}
	return fmt.Sprintf("%s%d.%d", sign, v/pointScale, v%pointScale)
}

func (p Points) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Points) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePoints(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Sum adds the points of every value in m.
func Sum[K comparable](m map[K]Points) Points {
	var total Points
	for _, v := range m {
		total += v
	}
	return total
}
