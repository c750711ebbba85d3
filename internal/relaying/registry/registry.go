// Package registry assigns every configured source chain its feed on the target chain.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/vietddude/feedrelay/internal/core/domain"
)


// FeedCreator requests a new feed on the target chain.
type FeedCreator interface {
	CreateFeed(ctx context.Context, source domain.SourceDescriptor) (domain.FeedID, error)
}

// StartupError reports a failed registry creation.
type StartupError struct {
	SourceIndex int
	Err         error
}

func (e *StartupError) Error() string {
	if e.SourceIndex < 0 {
		return fmt.Sprintf("feed registry: %v", e.Err)
	}
	return fmt.Sprintf("feed registry: source %d: %v", e.SourceIndex, e.Err)
}

func (e *StartupError) Unwrap() []error {
	return []error{domain.ErrStartup, e.Err}
}

// Options tunes registry creation.
type Options struct {
	// MaxFeeds caps the number of sources; zero or negative means no cap.
	MaxFeeds int
}

// Registry is the immutable source to feed mapping of a run.
type Registry struct {
	sources     []domain.SourceDescriptor
	feeds       []domain.FeedID
	assignments []domain.FeedAssignment
}

// ValidateSources requires a non-empty list of endpoints whose indices form 0..n-1.
// A maxFeeds of zero or less disables the cap.
func ValidateSources(sources []domain.SourceDescriptor, maxFeeds int) error {
	if len(sources) == 0 {
		return fmt.Errorf("%w: no sources configured", domain.ErrInvalidSources)
	}
	if maxFeeds > 0 && len(sources) > maxFeeds {
		return fmt.Errorf("%w: %d sources exceed the limit of %d feeds",
			domain.ErrInvalidSources, len(sources), maxFeeds)
	}

	seen := make([]bool, len(sources))
	for _, s := range sources {
		if s.Endpoint == "" {
			return fmt.Errorf("%w: source %d has no endpoint", domain.ErrInvalidSources, s.Index)
		}
		if s.Index < 0 || s.Index >= len(sources) {
			return fmt.Errorf("%w: source index %d out of range [0,%d)",
				domain.ErrInvalidSources, s.Index, len(sources))
		}
		if seen[s.Index] {
			return fmt.Errorf("%w: duplicate source index %d", domain.ErrInvalidSources, s.Index)
		}
		seen[s.Index] = true
	}
	return nil
}

// Create requests one feed per source in index order. Any failure aborts creation;
// feeds already created on the target are not reused by a later run.
func Create(ctx context.Context, creator FeedCreator, sources []domain.SourceDescriptor, opts Options) (*Registry, error) {
	if err := ValidateSources(sources, opts.MaxFeeds); err != nil {
		return nil, &StartupError{SourceIndex: -1, Err: err}
	}

	ordered := make([]domain.SourceDescriptor, len(sources))
	copy(ordered, sources)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	log := slog.Default().With("component", "registry")
	r := &Registry{
		sources:     ordered,
		feeds:       make([]domain.FeedID, len(ordered)),
		assignments: make([]domain.FeedAssignment, 0, len(ordered)),
	}
	owner := make(map[domain.FeedID]int, len(ordered))

	for _, src := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, &StartupError{SourceIndex: src.Index, Err: err}
		}

		id, err := creator.CreateFeed(ctx, src)
		if err != nil {
			return nil, &StartupError{SourceIndex: src.Index, Err: fmt.Errorf("create feed: %w", err)}
		}
		if prev, dup := owner[id]; dup {
			return nil, &StartupError{
				SourceIndex: src.Index,
				Err:         fmt.Errorf("feed %s already assigned to source %d", id, prev),
			}
		}
		owner[id] = src.Index
		r.feeds[src.Index] = id
		r.assignments = append(r.assignments, domain.FeedAssignment{
			FeedID:      id,
			SourceIndex: src.Index,
			Endpoint:    src.Endpoint,
			CreatedAt:   time.Now(),
		})

		log.Info("Feed created", "source", src.Index, "endpoint", src.Endpoint, "feed_id", uint64(id))
	}

	return r, nil
}

// ErrUnknownSource is returned for an index outside the registry.
var ErrUnknownSource = errors.New("unknown source index")

// FeedID returns the feed assigned to the source index.
func (r *Registry) FeedID(index int) (domain.FeedID, error) {
	if index < 0 || index >= len(r.feeds) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownSource, index)
	}
	return r.feeds[index], nil
}

// Sources returns the sources ordered by index.
func (r *Registry) Sources() []domain.SourceDescriptor {
	out := make([]domain.SourceDescriptor, len(r.sources))
	copy(out, r.sources)
	return out
}

// Assignments returns the mapping in index order.
func (r *Registry) Assignments() []domain.FeedAssignment {
	out := make([]domain.FeedAssignment, len(r.assignments))
	copy(out, r.assignments)
	return out
}

// Len returns the number of feeds.
func (r *Registry) Len() int {
	return len(r.feeds)
}
