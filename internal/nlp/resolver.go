package nlp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoCandidate reports that the upstream answered but produced no
// usable datetime entity. This is a user-facing outcome, not a fault.
var ErrNoCandidate = errors.New("nlp: no datetime candidate found")

// OffsetLookup resolves a user's UTC offset in whole hours.
type OffsetLookup interface {
	UTCOffsetHours(ctx context.Context, userID string) (int, error)
}

// Querier is the NLP call the resolver drives; *Client satisfies it.
type Querier interface {
	Query(ctx context.Context, q string, ref time.Time) (*Response, error)
}

// Resolver combines the timezone lookup and the NLP query into one
// operation: free text in, candidate instants out. Any collaborator
// failure surfaces as ErrUpstream so a conversation turn can report a
// single "try again" outcome.
type Resolver struct {
	nlp     Querier
	offsets OffsetLookup
	log     zerolog.Logger
}

func NewResolver(q Querier, offsets OffsetLookup, log zerolog.Logger) *Resolver {
	return &Resolver{nlp: q, offsets: offsets, log: log.With().Str("component", "resolver").Logger()}
}

// Resolve returns candidate instants for the query, ordered by the
// upstream's confidence. Callers take the first candidate; ties are not
// disambiguated further. The reference time sent upstream is the event
// timestamp rendered in the user's UTC offset.
func (r *Resolver) Resolve(ctx context.Context, userID, query string, eventTime time.Time) ([]time.Time, error) {
	offset, err := r.offsets.UTCOffsetHours(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone lookup: %v", ErrUpstream, err)
	}

	ref := eventTime.In(time.FixedZone("", offset*3600))
	resp, err := r.nlp.Query(ctx, query, ref)
	if err != nil {
		return nil, err
	}

	entities := resp.Entities["datetime"]
	if len(entities) == 0 {
		return nil, ErrNoCandidate
	}

	var out []time.Time
	for _, e := range entities {
		t, err := time.Parse(time.RFC3339, e.Value)
		if err != nil {
			r.log.Debug().Str("value", e.Value).Msg("skipping unparsable datetime entity")
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, ErrNoCandidate
	}
	return out, nil
}
