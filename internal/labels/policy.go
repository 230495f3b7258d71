package labels

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyTitle is returned for blank label titles.
	ErrEmptyTitle = errors.New("label title cannot be empty")
	// ErrReservedTitle is returned for titles the messaging provider reserves.
	ErrReservedTitle = errors.New("label title is reserved")
	// ErrTitleTooLong is returned for titles over MaxTitleLength.
	ErrTitleTooLong = errors.New("label title exceeds maximum length")
	// ErrInvalidColor is returned for colors that are not #rrggbb.
	ErrInvalidColor = errors.New("label color must be a #rrggbb hex string")
)

// MaxTitleLength bounds label titles.
const MaxTitleLength = 64

// DefaultReserved are the titles used to mark provider-internal states.
var DefaultReserved = []string{"bot", "bot-off", "human", "agente", "ventia", "resolved"}

// Palette is the set of swatches offered when creating a label. The first
// entry is used when no color is given.
var Palette = []string{
	"#1f93ff", "#10b981", "#f59e0b", "#ef4444",
	"#8b5cf6", "#ec4899", "#14b8a6", "#6b7280",
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Policy validates label titles against a reserved-name list.
type Policy struct {
	reserved map[string]struct{}
}

// NewPolicy builds a policy. Names are compared trimmed and case-insensitively.
func NewPolicy(reserved []string) Policy {
	p := Policy{reserved: make(map[string]struct{}, len(reserved))}
	for _, name := range reserved {
		if n := normalize(name); n != "" {
			p.reserved[n] = struct{}{}
		}
	}
	return p
}

// IsReserved reports whether title matches a reserved name.
func (p Policy) IsReserved(title string) bool {
	_, ok := p.reserved[normalize(title)]
	return ok
}

// CheckTitle validates a title for a new label.
func (p Policy) CheckTitle(title string) error {
	t := strings.TrimSpace(title)
	if t == "" {
		return ErrEmptyTitle
	}
	if len(t) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if p.IsReserved(t) {
		return ErrReservedTitle
	}
	return nil
}

// NormalizeColor returns the color to store for a new label.
func NormalizeColor(color string) (string, error) {
	c := strings.TrimSpace(color)
	if c == "" {
		return Palette[0], nil
	}
	if !hexColor.MatchString(c) {
		return "", ErrInvalidColor
	}
	return strings.ToLower(c), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
