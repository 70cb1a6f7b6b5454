package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	trackingPrefix    = "PTW/RV"
	trackingCodeLen   = 6
	trackingAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxTrackingTrials = 5
)

type trackingIDChecker interface {
	TrackingIDExists(ctx context.Context, trackingID string) (bool, error)
}

// IdentifierAssigner mints tracking IDs and approval tokens.
type IdentifierAssigner struct {
	repo    trackingIDChecker
	now     func() time.Time
	entropy io.Reader
}

// AssignerOption configures the assigner.
type AssignerOption func(*IdentifierAssigner)

// WithClock overrides the time source.
func WithClock(now func() time.Time) AssignerOption {
	return func(a *IdentifierAssigner) {
		if now != nil {
			a.now = now
		}
	}
}

// WithEntropy overrides the random source for tracking codes.
func WithEntropy(r io.Reader) AssignerOption {
	return func(a *IdentifierAssigner) {
		if r != nil {
			a.entropy = r
		}
	}
}

// NewIdentifierAssigner constructs an assigner. A nil repo skips the uniqueness lookup.
func NewIdentifierAssigner(repo trackingIDChecker, opts ...AssignerOption) *IdentifierAssigner {
	a := &IdentifierAssigner{repo: repo, now: time.Now, entropy: rand.Reader}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assign returns a fresh tracking ID for siteID and a new approval token.
func (a *IdentifierAssigner) Assign(ctx context.Context, siteID string) (string, string, error) {
	fy := FinancialYear(a.now())
	site := strings.ToUpper(strings.TrimSpace(siteID))
	for attempt := 0; attempt < maxTrackingTrials; attempt++ {
		code, err := a.randomCode()
		if err != nil {
			return "", "", err
		}
		trackingID := fmt.Sprintf("%s/%s/%s/%s", trackingPrefix, site, fy, code)
		if a.repo == nil {
			return trackingID, NewApprovalToken(), nil
		}
		exists, err := a.repo.TrackingIDExists(ctx, trackingID)
		if err != nil {
			return "", "", err
		}
		if !exists {
			return trackingID, NewApprovalToken(), nil
		}
	}
	return "", "", fmt.Errorf("could not allocate a unique tracking id after %d attempts", maxTrackingTrials)
}

// NewApprovalToken returns an unguessable single-use capability token.
func NewApprovalToken() string {
	return uuid.NewString()
}

// FinancialYear labels the April to March fiscal year containing t, e.g. "2024-25".
func FinancialYear(t time.Time) string {
	year := t.Year()
	if t.Month() >= time.April {
		return fmt.Sprintf("%d-%02d", year, (year+1)%100)
	}
	return fmt.Sprintf("%d-%02d", year-1, year%100)
}

func (a *IdentifierAssigner) randomCode() (string, error) {
	// 252 is the largest multiple of 36 below 256; higher bytes are discarded to avoid bias.
	const limit = 252
	out := make([]byte, 0, trackingCodeLen)
	buf := make([]byte, trackingCodeLen*2)
	for len(out) < trackingCodeLen {
		if _, err := io.ReadFull(a.entropy, buf); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, trackingAlphabet[int(b)%len(trackingAlphabet)])
			if len(out) == trackingCodeLen {
				break
			}
		}
	}
	return string(out), nil
}
