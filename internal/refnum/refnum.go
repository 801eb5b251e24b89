// Package refnum generates human-readable reference numbers such as ORD-1718000000000-7QX2M.
package refnum

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	suffixLength = 5
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

const (
	PrefixOrder   = "ORD"
	PrefixInvoice = "INV"
)

// Pattern matches every number produced by a Generator.
var Pattern = regexp.MustCompile(`^[A-Z]+-\d+-[A-Z0-9]{5}$`)

var ErrInvalidPrefix = errors.New("refnum: prefix must be uppercase letters")

type Generator struct {
	prefix string
	now    func() time.Time
	rand   io.Reader
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

func New(prefix string, opts ...Option) (*Generator, error) {
	if prefix == "" || strings.Trim(prefix, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}

	g := &Generator{prefix: prefix, now: time.Now, rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func MustNew(prefix string, opts ...Option) *Generator {
	g, err := New(prefix, opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// Next returns PREFIX-<unix millis>-<5 random characters>.
func (g *Generator) Next() (string, error) {
	suffix, err := g.suffix()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(g.prefix) + 21 + suffixLength)
	b.WriteString(g.prefix)
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(g.now().UnixMilli(), 10))
	b.WriteByte('-')
	b.WriteString(suffix)
	return b.String(), nil
}

// suffix draws characters by rejection sampling so every character is equally likely.
func (g *Generator) suffix() (string, error) {
	const limit = 256 - 256%len(alphabet)

	out := make([]byte, 0, suffixLength)
	buf := make([]byte, suffixLength*2)
	for len(out) < suffixLength {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("refnum: failed to read random bytes: %w", err)
		}
		for _, c := range buf {
			if int(c) >= limit {
				continue
			}
			out = append(out, alphabet[int(c)%len(alphabet)])
			if len(out) == suffixLength {
				break
			}
		}
	}
	return string(out), nil
}
