// Package nlp talks to the wit.ai-style message endpoint and turns free
// text plus a reference time into candidate instants.
package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// ErrUpstream reports a failed or timed-out call to the NLP service.
var ErrUpstream = errors.New("nlp: upstream unavailable")

// referenceTimeLayout matches the context format the upstream expects:
// local time with milliseconds and an explicit offset.
const referenceTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Config configures the NLP client.
type Config struct {
	APIBase string
	Token   string
	Version string
	Timeout time.Duration
}

// Entity is one extracted value with the upstream's confidence score.
type Entity struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Response is the entity map returned for a query. Datetime candidates
// live under the "datetime" key, ordered by upstream confidence.
type Response struct {
	Entities map[string][]Entity `json:"entities"`
}

type referenceTime struct {
	ReferenceTime string `json:"reference_time"`
}

// Client issues message queries over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "nlp").Logger(),
	}
}

// Query sends the free text together with a reference instant so the
// upstream resolves relative expressions ("tomorrow at 4pm") against
// the user's clock, not the server's.
func (c *Client) Query(ctx context.Context, q string, ref time.Time) (*Response, error) {
	refJSON, err := json.Marshal(referenceTime{ReferenceTime: ref.Format(referenceTimeLayout)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	u, err := url.Parse(c.cfg.APIBase + "/message")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	vals := url.Values{}
	vals.Set("v", c.cfg.Version)
	vals.Set("q", q)
	vals.Set("context", string(refJSON))
	u.RawQuery = vals.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	c.log.Debug().Str("query", q).Msg("querying nlp service")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return &out, nil
}
