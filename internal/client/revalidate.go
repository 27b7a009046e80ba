package client

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/solestoreapp/solestore-client/internal/debounce"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// revalidateTimeout bounds each revalidation POST; the rendering layer may be
// slow or gone and must never stall the client.
const revalidateTimeout = 5 * time.Second

// Revalidator batches tag invalidation signals. Tags reported during one
// quiescence window are deduplicated and flushed together; each POST is
// rate limited and aborted after revalidateTimeout. Entirely best effort.
//
// Tag patterns: favorites-{userId}, shoe-{shoeId}, cart-{userId}, user-{username}.
type Revalidator struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	flusher *debounce.Debouncer[struct{}, struct{}]
}

// NewRevalidator creates a revalidator posting to baseURL's /revalidate
// endpoint, flushing one wait window after the last reported tag.
func NewRevalidator(baseURL string, wait time.Duration, log *logger.Logger) *Revalidator {
	r := &Revalidator{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: revalidateTimeout},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		logger:     log,
		pending:    make(map[string]struct{}),
	}
	r.flusher = debounce.New(wait, func(ctx context.Context, _ struct{}) (struct{}, error) {
		r.flush(ctx)
		return struct{}{}, nil
	})
	return r
}

// Revalidate implements TagInvalidator. Returns immediately; the tag is
// posted after the debounce window closes.
func (r *Revalidator) Revalidate(tag string) {
	r.mu.Lock()
	r.pending[tag] = struct{}{}
	r.mu.Unlock()
	r.flusher.Trigger(struct{}{})
}

// Flush posts any pending tags immediately. Called on shutdown.
func (r *Revalidator) Flush(ctx context.Context) {
	if p := r.flusher.Flush(); p != nil {
		_, _ = p.Wait(ctx)
	}
}

// Stop cancels any scheduled flush.
func (r *Revalidator) Stop() {
	r.flusher.Stop()
}

// flush drains the pending set and posts one request per unique tag.
func (r *Revalidator) flush(ctx context.Context) {
	r.mu.Lock()
	tags := r.pending
	r.pending = make(map[string]struct{})
	r.mu.Unlock()

	for tag := range tags {
		if err := r.post(ctx, tag); err != nil {
			r.logger.Warn("revalidate failed", "tag", tag, "error", err)
		}
	}
}

// post sends POST /revalidate?tag=<tag> with a bounded deadline.
func (r *Revalidator) post(ctx context.Context, tag string) error {
	ctx, cancel := context.WithTimeout(ctx, revalidateTimeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := r.baseURL + "/revalidate?tag=" + url.QueryEscape(tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	r.logger.Debug("revalidated tag", "tag", tag, "status", resp.StatusCode)
	return nil
}
