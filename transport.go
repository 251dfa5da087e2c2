package psyclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	internalaudit "github.com/deineapp/psyclient/internal/audit"
	internalmetrics "github.com/deineapp/psyclient/internal/metrics"
	"github.com/deineapp/psyclient/token"
)

// pipeline is the [http.RoundTripper] wrapping every authenticated call.
// Pre-request it attaches a valid access token, silently refreshing an
// expired one first; post-response it recovers from a single 401 by
// refreshing and resubmitting the original request exactly once.
type pipeline struct {
	base      http.RoundTripper
	session   *sessionManager
	log       zerolog.Logger
	metrics   *internalmetrics.Metrics
	userAgent string
}

func newPipeline(base http.RoundTripper, session *sessionManager, log zerolog.Logger, m *internalmetrics.Metrics) *pipeline {
	if base == nil {
		base = http.DefaultTransport
	}
	return &pipeline{
		base:    base,
		session: session,
		log:     log,
		metrics: m,
	}
}

func (p *pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()
	requestID := uuid.NewString()

	out := req.Clone(ctx)
	out.Header.Set("X-Request-ID", requestID)
	if p.userAgent != "" && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", p.userAgent)
	}
	if out.Header.Get("Authorization") == "" {
		if access := p.accessToken(ctx); access != "" {
			out.Header.Set("Authorization", "Bearer "+access)
		}
	}

	resp, err := p.base.RoundTrip(out)
	if err != nil {
		// Network-layer failure: no response to interpret, nothing to retry
		// at this layer.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		p.metrics.Observe(internalmetrics.MetricRequestLatency, time.Since(start))
		return resp, nil
	}

	retryResp, retried := p.recoverUnauthorized(ctx, req, resp, requestID)
	p.metrics.Observe(internalmetrics.MetricRequestLatency, time.Since(start))
	if !retried {
		return resp, nil
	}
	return retryResp, nil
}

// accessToken implements the pre-request stage. No token means the request
// goes out unauthenticated; an expired access token with a live refresh
// token triggers a silent single-flight refresh; a failed refresh degrades
// to an unauthenticated request rather than blocking the call.
func (p *pipeline) accessToken(ctx context.Context) string {
	pair, err := p.session.tokens(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("token store read failed, sending unauthenticated")
		return ""
	}
	if pair.Access == "" {
		return ""
	}

	if p.session.expired(pair.Access) {
		if pair.Refresh != "" && !token.Expired(pair.Refresh, p.session.now()) {
			access, err := p.session.refreshAccess(ctx)
			if err != nil {
				p.log.Debug().Err(err).Msg("pre-request refresh failed")
				return ""
			}
			return access
		}
		// No viable refresh token. Attach the stale access token and let the
		// 401 recovery settle the session's fate.
	}
	return pair.Access
}

// recoverUnauthorized implements the post-response stage: one refresh, one
// resubmit. The retried flag lives in the call frame; a second 401 on the
// retried request never triggers a third attempt. Returns retried=false when
// the original response should be handed to the caller as-is.
func (p *pipeline) recoverUnauthorized(ctx context.Context, req *http.Request, first *http.Response, requestID string) (*http.Response, bool) {
	p.metrics.Inc(internalmetrics.MetricRetry401)

	access, err := p.session.refreshAccess(ctx)
	if err != nil {
		// Session is already Expired and cleared; the caller sees the 401.
		return nil, false
	}

	retry, err := rewindRequest(ctx, req)
	if err != nil {
		p.log.Warn().Err(err).Msg("401 retry skipped: request body not replayable")
		return nil, false
	}
	retry.Header.Set("X-Request-ID", requestID)
	retry.Header.Set("Authorization", "Bearer "+access)

	drain(first)
	p.emitRetry(ctx, requestID)

	resp, err := p.base.RoundTrip(retry)
	if err != nil {
		// The retried transport call failed outright. The original response
		// body is already drained, so surface the 401 status without it.
		p.log.Warn().Err(err).Msg("401 retry transport failure")
		return nil, false
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Refreshed and still rejected: the session is not salvageable.
		p.metrics.Inc(internalmetrics.MetricRetryExhausted)
		_ = p.session.expireSession(ctx, ErrUnauthorized)
	}
	return resp, true
}

func (p *pipeline) emitRetry(ctx context.Context, requestID string) {
	if p.session.audit == nil {
		return
	}
	p.session.audit.Emit(ctx, internalaudit.Event{
		Timestamp: p.session.now(),
		EventType: internalaudit.EventRetry,
		RequestID: requestID,
		Success:   true,
	})
}

// rewindRequest rebuilds the original request with a fresh body so it can be
// resubmitted once. Bodyless requests clone directly; buffered bodies replay
// through GetBody.
func rewindRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	retry := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errNoGetBody
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

var errNoGetBody = errors.New("request body not replayable")

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
