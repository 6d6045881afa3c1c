package services

import (
	"errors"
	"fmt"

	"github.com/charlesng35/weddingdesk/pkg/crypto"
)

const (
	defaultTokenBytes = 32
	// 48 random bytes encode to 64 characters, the width of the token columns.
	maxTokenBytes = 48
)

// TokenKind selects which action a token authorises.
type TokenKind string

const (
	TokenAccept  TokenKind = "accept"
	TokenDecline TokenKind = "decline"
)

// TokenPair is the accept and decline token minted for one event.
type TokenPair struct {
	Accept  string
	Decline string
}

// TokenIssuer mints opaque URL-safe tokens. Uniqueness is enforced by the
// event table's unique indexes, not by the issuer.
type TokenIssuer struct {
	size     int
	generate func(int) (string, error)
}

// TokenOption customises a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenSize adjusts the number of random bytes per token.
func WithTokenSize(size int) TokenOption {
	return func(i *TokenIssuer) {
		if size > 0 && size <= maxTokenBytes {
			i.size = size
		}
	}
}

// WithTokenGenerator swaps the random source, primarily for tests.
func WithTokenGenerator(fn func(int) (string, error)) TokenOption {
	return func(i *TokenIssuer) {
		if fn != nil {
			i.generate = fn
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer backed by crypto/rand.
func NewTokenIssuer(opts ...TokenOption) *TokenIssuer {
	issuer := &TokenIssuer{
		size:     defaultTokenBytes,
		generate: crypto.GenerateToken,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// Pair returns two distinct tokens.
func (i *TokenIssuer) Pair() (TokenPair, error) {
	accept, err := i.generate(i.size)
	if err != nil {
		return TokenPair{}, fmt.Errorf("token issuer: accept token: %w", err)
	}
	decline, err := i.generate(i.size)
	if err != nil {
		return TokenPair{}, fmt.Errorf("token issuer: decline token: %w", err)
	}
	if accept == "" || accept == decline {
		return TokenPair{}, errors.New("token issuer: generator returned unusable tokens")
	}
	return TokenPair{Accept: accept, Decline: decline}, nil
}
