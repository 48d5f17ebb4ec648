// Package outcome draws every random result that moves money.
package outcome

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

type Side string

const (
	Heads Side = "heads"
	Tails Side = "tails"
)

var ErrInvalidSide = errors.New("side must be heads or tails")

func ParseSide(raw string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(raw))) {
	case Heads:
		return Heads, nil
	case Tails:
		return Tails, nil
	}
	return "", ErrInvalidSide
}

type Generator interface {
	// PickWinner returns an index uniform in [0, n).
	PickWinner(n int) (int, error)
	// Flip returns heads or tails with equal probability.
	Flip() (Side, error)
}

// CryptoGenerator reads from a cryptographically secure source. rand.Int rejects
// out-of-range samples so no index is favoured.
type CryptoGenerator struct {
	source io.Reader
}

func NewCryptoGenerator() *CryptoGenerator {
	return &CryptoGenerator{source: rand.Reader}
}

func (g *CryptoGenerator) PickWinner(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("pick winner among %d participants", n)
	}
	v, err := rand.Int(g.reader(), big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random source: %w", err)
	}
	return int(v.Int64()), nil
}

func (g *CryptoGenerator) Flip() (Side, error) {
	idx, err := g.PickWinner(2)
	if err != nil {
		return "", err
	}
	if idx == 0 {
		return Heads, nil
	}
	return Tails, nil
}

func (g *CryptoGenerator) reader() io.Reader {
	if g.source == nil {
		return rand.Reader
	}
	return g.source
}
