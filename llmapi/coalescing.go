package llmapi

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"llmfs/config"
	"llmfs/session"
)

// CoalescingClient wraps a Client and collapses concurrent, identical
// in-flight stateless queries into a single upstream call using
// singleflight.Group. It does not retain results across calls once
// they complete — the Models handler's own response cache already
// serves that role — it only protects against duplicate concurrent
// writes to the same /models/<name> resolving to redundant upstream
// traffic.
type CoalescingClient struct {
	inner Client
	sf    singleflight.Group
}

// NewCoalescingClient wraps inner with request coalescing.
func NewCoalescingClient(inner Client) *CoalescingClient {
	return &CoalescingClient{inner: inner}
}

var _ Client = (*CoalescingClient)(nil)

// Query coalesces concurrent calls sharing the same model, prompt, and
// effective parameters onto a single upstream request.
func (c *CoalescingClient) Query(ctx context.Context, model string, params config.ModelParameters, prompt string) (string, error) {
	key := fmt.Sprintf("query:%s:%s:%s", model, paramsKey(params), prompt)
	v, err, _ := c.sf.Do(key, func() (any, error) {
		return c.inner.Query(ctx, model, params, prompt)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// paramsKey flattens parameters into a stable key component. The
// pointer fields must be dereferenced here: two calls carrying equal
// values in distinct allocations still coalesce.
func paramsKey(p config.ModelParameters) string {
	temp := "-"
	if p.Temperature != nil {
		temp = fmt.Sprintf("%g", *p.Temperature)
	}
	sys := ""
	if p.SystemPrompt != nil {
		sys = *p.SystemPrompt
	}
	return temp + ":" + sys
}

// Converse is not coalesced: conversation-oriented calls are keyed by
// full history, which is effectively unique per call and not worth
// deduplicating.
func (c *CoalescingClient) Converse(ctx context.Context, model string, params config.ModelParameters, conv session.Conversation) (string, error) {
	return c.inner.Converse(ctx, model, params, conv)
}

// ListModels is not coalesced; it is called infrequently (on readdir)
// and the underlying endpoint is expected to answer quickly.
func (c *CoalescingClient) ListModels(ctx context.Context) ([]string, error) {
	return c.inner.ListModels(ctx)
}
