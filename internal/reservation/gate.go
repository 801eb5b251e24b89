// Package reservation decrements stock for a checkout and undoes it when the checkout fails.
package reservation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidQuantity = errors.New("reservation quantity must be positive")
	ErrNoRequests      = errors.New("nothing to reserve")
	ErrAlreadyReleased = errors.New("reservation already released")
)

const (
	defaultMaxParallel       = 8
	defaultCompensateTimeout = 10 * time.Second
)

// Stock is the catalog capability the gate needs. DecrementStockIfAvailable must be a single
// conditional update that fails without side effects when stock is short.
type Stock interface {
	DecrementStockIfAvailable(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	IncrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, error)
}

type Request struct {
	ProductID uuid.UUID
	Quantity  int
}

// Reservation is one applied decrement. Release re-credits it at most once.
type Reservation struct {
	ProductID uuid.UUID
	Quantity  int
	// StockAfter is the stock level right after the decrement.
	StockAfter int

	stock    Stock
	timeout  time.Duration
	mu       sync.Mutex
	released bool
}

// Release increments stock by the reserved quantity. A second call returns ErrAlreadyReleased
// without touching stock. A failed increment leaves the reservation unreleased so it can be retried.
func (r *Reservation) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrAlreadyReleased
	}

	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.stock.IncrementStock(callCtx, r.ProductID, r.Quantity); err != nil {
		return fmt.Errorf("reservation: failed to release %d of product %s: %w", r.Quantity, r.ProductID, err)
	}
	r.released = true
	return nil
}

func (r *Reservation) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Set holds the reservations applied for one checkout, in the order they were taken.
type Set struct {
	reservations []*Reservation
}

func (s *Set) Reservations() []*Reservation {
	if s == nil {
		return nil
	}
	return s.reservations
}

// Release compensates every reservation in reverse order. Already released reservations are skipped.
func (s *Set) Release(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs []error
	for i := len(s.reservations) - 1; i >= 0; i-- {
		res := s.reservations[i]
		err := res.Release(ctx)
		switch {
		case err == nil:
			log.Info().Stringer("product_id", res.ProductID).Int("quantity", res.Quantity).Msg("Stock reservation released")
		case errors.Is(err, ErrAlreadyReleased):
		default:
			log.Error().Err(err).Stringer("product_id", res.ProductID).Int("quantity", res.Quantity).Msg("Failed to release stock reservation")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Gate struct {
	stock             Stock
	concurrent        bool
	maxParallel       int
	callTimeout       time.Duration
	compensateTimeout time.Duration
}

type Option func(*Gate)

// WithConcurrency dispatches the per-product decrements in parallel, at most maxParallel at a time.
func WithConcurrency(enabled bool, maxParallel int) Option {
	return func(g *Gate) {
		g.concurrent = enabled
		if maxParallel > 0 {
			g.maxParallel = maxParallel
		}
	}
}

// WithCallTimeout bounds every single decrement and increment.
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.callTimeout = d
	}
}

func NewGate(stock Stock, opts ...Option) *Gate {
	g := &Gate{
		stock:             stock,
		maxParallel:       defaultMaxParallel,
		compensateTimeout: defaultCompensateTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Normalize merges requests for the same product and sorts them by ascending product ID.
func Normalize(requests []Request) ([]Request, error) {
	if len(requests) == 0 {
		return nil, ErrNoRequests
	}

	totals := make(map[uuid.UUID]int, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s quantity %d", ErrInvalidQuantity, req.ProductID, req.Quantity)
		}
		totals[req.ProductID] += req.Quantity
	}

	merged := make([]Request, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Request{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].ProductID.Bytes(), merged[j].ProductID.Bytes()) < 0
	})
	return merged, nil
}

// Reserve applies all requests or none. If any decrement fails, the ones that succeeded are
// released before the error is returned.
func (g *Gate) Reserve(ctx context.Context, requests []Request) (*Set, error) {
	normalized, err := Normalize(requests)
	if err != nil {
		return nil, err
	}

	var set *Set
	if g.concurrent && len(normalized) > 1 {
		set, err = g.reserveConcurrently(ctx, normalized)
	} else {
		set, err = g.reserveSequentially(ctx, normalized)
	}
	if err == nil {
		return set, nil
	}

	// Compensation must run even if the caller has gone away.
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.compensateTimeout)
	defer cancel()

	if releaseErr := set.Release(compCtx); releaseErr != nil {
		return nil, errors.Join(err, releaseErr)
	}
	return nil, err
}

// Compensate releases a set with a context detached from the caller's cancellation.
func (g *Gate) Compensate(ctx context.Context, set *Set) error {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.compensateTimeout)
	defer cancel()
	return set.Release(compCtx)
}

func (g *Gate) reserveSequentially(ctx context.Context, requests []Request) (*Set, error) {
	set := &Set{reservations: make([]*Reservation, 0, len(requests))}
	for _, req := range requests {
		res, err := g.reserveOne(ctx, req)
		if err != nil {
			return set, err
		}
		set.reservations = append(set.reservations, res)
	}
	return set, nil
}

// reserveConcurrently lets every decrement finish instead of cancelling siblings on the first
// failure, so the set of applied decrements is known exactly before compensation.
func (g *Gate) reserveConcurrently(ctx context.Context, requests []Request) (*Set, error) {
	results := make([]*Reservation, len(requests))
	errs := make([]error, len(requests))

	var eg errgroup.Group
	eg.SetLimit(g.maxParallel)
	for i, req := range requests {
		eg.Go(func() error {
			results[i], errs[i] = g.reserveOne(ctx, req)
			return nil
		})
	}
	_ = eg.Wait()

	set := &Set{reservations: make([]*Reservation, 0, len(requests))}
	var firstErr error
	for i := range requests {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		set.reservations = append(set.reservations, results[i])
	}
	return set, firstErr
}

func (g *Gate) reserveOne(ctx context.Context, req Request) (*Reservation, error) {
	callCtx, cancel := withTimeout(ctx, g.callTimeout)
	defer cancel()

	stockAfter, err := g.stock.DecrementStockIfAvailable(callCtx, req.ProductID, req.Quantity)
	if err != nil {
		log.Warn().Err(err).Stringer("product_id", req.ProductID).Int("quantity", req.Quantity).Msg("Stock reservation rejected")
		return nil, fmt.Errorf("reservation: product %s: %w", req.ProductID, err)
	}

	return &Reservation{
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		StockAfter: stockAfter,
		stock:      g.stock,
		timeout:    g.callTimeout,
	}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
