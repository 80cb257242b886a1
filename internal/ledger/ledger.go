// Package ledger tracks client parking sessions and prices them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"parking-status-backend/internal/keylock"
	"parking-status-backend/internal/parse"
)

// DefaultClientID is used when a request names no client.
const DefaultClientID = "default"

var (
	// ErrSessionNotFound is returned when a client has no open session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMissingSpot is returned when a claim names no spot.
	ErrMissingSpot = errors.New("spot reference is required")
	// ErrInvalidSpot is returned when a claim names a spot that does not exist.
	ErrInvalidSpot = errors.New("invalid spot reference")
)

// Session is an open client claim on a spot.
type Session struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	SpotID    int64     `json:"spot_id"`
	SpotName  string    `json:"vaga"`
	StartedAt time.Time `json:"start_time"`
	Paid      bool      `json:"paid"`
}

// Quote is the running price of an open session.
type Quote struct {
	Amount  float64
	Elapsed time.Duration
}

// Receipt closes a session.
type Receipt struct {
	Session  Session
	Amount   float64
	Duration time.Duration
	PaidAt   time.Time
}

// Tariff prices a session as a base fee plus a rate per started hour beyond
// the first, i.e. BaseFee + HourlyRate * floor(hours).
type Tariff struct {
	BaseFee    float64
	HourlyRate float64
}

// Price returns the amount owed after elapsed.
func (t Tariff) Price(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	hours := math.Floor(elapsed.Hours())
	return t.BaseFee + t.HourlyRate*hours
}

// SpotOverrider forces spot state on behalf of a client.
type SpotOverrider interface {
	Known(id int64) bool
	Override(ctx context.Context, id int64, occupied bool, at time.Time) error
}

// Ledger holds one open session per client. A new claim by the same client
// replaces the previous one. Claims by different clients on the same spot
// are not detected.
type Ledger struct {
	sessions *cache.Cache
	locks    *keylock.Map[string]
	spots    SpotOverrider
	tariff   Tariff
	now      func() time.Time
	log      *zap.Logger
}

// New creates an empty ledger.
func New(spots SpotOverrider, tariff Tariff, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		sessions: cache.New(cache.NoExpiration, 0),
		locks:    keylock.New[string](),
		spots:    spots,
		tariff:   tariff,
		now:      time.Now,
		log:      log.Named("ledger"),
	}
}

// Tariff returns the configured pricing.
func (l *Ledger) Tariff() Tariff {
	return l.tariff
}

// NormalizeClientID applies the default client id to blank input.
func NormalizeClientID(clientID string) string {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return DefaultClientID
	}
	return clientID
}

// Claim opens a session for clientID on spotRef ("A1", "a1" or "1") and
// marks the spot occupied.
func (l *Ledger) Claim(ctx context.Context, clientID, spotRef string) (Session, error) {
	clientID = NormalizeClientID(clientID)
	if strings.TrimSpace(spotRef) == "" {
		return Session{}, ErrMissingSpot
	}
	spotID, err := parse.ParseSpotRef(spotRef)
	if err != nil || !l.spots.Known(spotID) {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidSpot, spotRef)
	}

	unlock := l.locks.Lock(clientID)
	defer unlock()

	now := l.now()
	if err := l.spots.Override(ctx, spotID, true, now); err != nil {
		return Session{}, fmt.Errorf("failed to occupy spot %d: %w", spotID, err)
	}

	if prev, ok := l.lookup(clientID); ok {
		l.log.Info("Replacing open session", zap.String("client", clientID), zap.String("previous_spot", prev.SpotName))
	}

	s := Session{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		SpotID:    spotID,
		SpotName:  parse.SpotName(spotID),
		StartedAt: now,
	}
	l.sessions.Set(clientID, s, cache.NoExpiration)
	l.log.Info("Session opened", zap.String("client", clientID), zap.String("spot", s.SpotName), zap.String("session", s.ID))
	return s, nil
}

// Pay prices and closes the client's session and frees its spot. The
// session is kept if the spot cannot be freed.
func (l *Ledger) Pay(ctx context.Context, clientID string) (Receipt, error) {
	clientID = NormalizeClientID(clientID)

	unlock := l.locks.Lock(clientID)
	defer unlock()

	s, ok := l.lookup(clientID)
	if !ok {
		return Receipt{}, ErrSessionNotFound
	}

	now := l.now()
	elapsed := now.Sub(s.StartedAt)
	if err := l.spots.Override(ctx, s.SpotID, false, now); err != nil {
		return Receipt{}, fmt.Errorf("failed to free spot %d: %w", s.SpotID, err)
	}
	l.sessions.Delete(clientID)

	s.Paid = true
	r := Receipt{
		Session:  s,
		Amount:   l.tariff.Price(elapsed),
		Duration: elapsed,
		PaidAt:   now,
	}
	l.log.Info("Session paid", zap.String("client", clientID), zap.String("spot", s.SpotName), zap.Float64("amount", r.Amount))
	return r, nil
}

// Get returns the client's open session and its running price.
func (l *Ledger) Get(clientID string) (Session, Quote, bool) {
	s, ok := l.lookup(NormalizeClientID(clientID))
	if !ok {
		return Session{}, Quote{}, false
	}
	elapsed := l.now().Sub(s.StartedAt)
	return s, Quote{Amount: l.tariff.Price(elapsed), Elapsed: elapsed}, true
}

// Count is the number of open sessions.
func (l *Ledger) Count() int {
	return l.sessions.ItemCount()
}

func (l *Ledger) lookup(clientID string) (Session, bool) {
	v, ok := l.sessions.Get(clientID)
	if !ok {
		return Session{}, false
	}
	return v.(Session), true
}
