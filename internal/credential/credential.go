// Package credential supplies bearer tokens for outbound collaborator calls.
package credential

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissing = errors.New("credential missing")
	ErrExpired = errors.New("credential expired")
)

// Source yields the bearer token to present. An empty token with a nil error
// means the source has nothing to offer.
type Source interface {
	Token(ctx context.Context) (string, error)
}

type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type static string

func Static(token string) Source { return static(strings.TrimSpace(token)) }

func (s static) Token(context.Context) (string, error) { return string(s), nil }

type ctxKey struct{}

// WithToken stores a caller's token on ctx for FromContext.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(token))
}

// FromContext reads the token stored by WithToken.
func FromContext() Source {
	return SourceFunc(func(ctx context.Context) (string, error) {
		token, _ := ctx.Value(ctxKey{}).(string)
		return token, nil
	})
}

// Chain returns the first non-empty token among sources.
func Chain(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context) (string, error) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			token, err := src.Token(ctx)
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	})
}

// Resolve fetches a token from src and validates it.
func Resolve(ctx context.Context, src Source) (string, error) {
	if src == nil {
		return "", ErrMissing
	}
	token, err := src.Token(ctx)
	if err != nil {
		return "", err
	}
	if err := Validate(token, time.Now()); err != nil {
		return "", err
	}
	return token, nil
}

// Validate rejects empty tokens and JWTs whose exp claim is not after now.
// Tokens that are not JWTs are opaque to us and pass.
func Validate(token string, now time.Time) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissing
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !exp.After(now) {
		return ErrExpired
	}
	return nil
}
