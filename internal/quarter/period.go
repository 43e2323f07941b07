// Package quarter models fiscal quarters used to bucket case audits.
package quarter

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/claimaudit/internal/clock"
)

const (
	MinYear = 2000
	MaxYear = 2100
)

var ErrInvalidQuarterFormat = errors.New("invalid_quarter_format")

var keyPattern = regexp.MustCompile(`^Q([1-4])-(\d{4})$`)

// Period is a fiscal quarter. The zero value is not a valid quarter.
type Period struct {
	Number int
	Year   int
}

// FromDate returns the quarter containing t.
func FromDate(t time.Time) Period {
	return Period{
		Number: (int(t.Month())-1)/3 + 1,
		Year:   t.Year(),
	}
}

// Current derives the quarter from the injected clock.
func Current(c clock.Clock) Period {
	return FromDate(c.Now())
}

// Parse accepts the canonical "Q<n>-<yyyy>" form.
func Parse(s string) (Period, error) {
	m := keyPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Period{}, ErrInvalidQuarterFormat
	}
	number, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	p := Period{Number: number, Year: year}
	if !p.Valid() {
		return Period{}, ErrInvalidQuarterFormat
	}
	return p, nil
}

func (p Period) Valid() bool {
	return p.Number >= 1 && p.Number <= 4 && p.Year >= MinYear && p.Year <= MaxYear
}

func (p Period) Previous() Period {
	if p.Number == 1 {
		return Period{Number: 4, Year: p.Year - 1}
	}
	return Period{Number: p.Number - 1, Year: p.Year}
}

func (p Period) Next() Period {
	if p.Number == 4 {
		return Period{Number: 1, Year: p.Year + 1}
	}
	return Period{Number: p.Number + 1, Year: p.Year}
}

// Start is the first instant of the quarter in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month((p.Number-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following quarter in UTC (exclusive bound).
func (p Period) End() time.Time {
	return p.Next().Start()
}

func (p Period) Contains(t time.Time) bool {
	return FromDate(t) == p
}

func (p Period) String() string {
	return fmt.Sprintf("Q%d-%d", p.Number, p.Year)
}

func (p Period) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, ErrInvalidQuarterFormat
	}
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the quarter as its canonical key.
func (p Period) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, ErrInvalidQuarterFormat
	}
	return p.String(), nil
}

func (p *Period) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	case nil:
		*p = Period{}
		return nil
	default:
		return fmt.Errorf("quarter: cannot scan %T", src)
	}
}
