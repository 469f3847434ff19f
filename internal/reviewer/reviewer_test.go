package reviewer

import (
	"context"
	"testing"
	"time"

	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/agent"
	"github.com/seele-review/seele/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent returns a canned answer and counts calls
type fakeAgent struct {
	calls   int
	reviews []*model.ReviewItem
	err     error
}

func (a *fakeAgent) Review(ctx context.Context, extendedDiff string) ([]*model.ReviewItem, error) {
	a.calls++
	return a.reviews, a.err
}

func newTestReviewer(fa *fakeAgent) *Reviewer {
	return &Reviewer{
		cfg:      Config{MaxRetries: 3, RetryDelay: time.Millisecond},
		agent:    fa,
		budgeter: newTestBudgeter(1000, 10),
		logger:   logze.With("component", "reviewer"),
	}
}

func TestReviewChunkSuccess(t *testing.T) {
	fa := &fakeAgent{reviews: []*model.ReviewItem{
		{NewPath: "a.go", StartLine: 1, EndLine: 2, Type: model.SideNew},
	}}
	r := newTestReviewer(fa)

	result := r.reviewChunk(context.Background(), 0, "diff chunk", r.logger)

	require.NoError(t, result.Err)
	assert.Equal(t, 1, fa.calls)
	assert.Len(t, result.Reviews, 1)
	assert.Equal(t, len("diff chunk"), result.TokenCount)
}

func TestReviewChunkNoReviewIsZeroFindings(t *testing.T) {
	fa := &fakeAgent{err: agent.ErrNoReview}
	r := newTestReviewer(fa)

	result := r.reviewChunk(context.Background(), 0, "diff chunk", r.logger)

	assert.NoError(t, result.Err, "a response without findings is not a chunk failure")
	assert.Empty(t, result.Reviews)
	assert.Equal(t, 1, fa.calls, "nothing to retry when the model answered")
}

func TestReviewChunkUnparsableIsZeroFindings(t *testing.T) {
	fa := &fakeAgent{err: agent.ErrUnparsableReview}
	r := newTestReviewer(fa)

	result := r.reviewChunk(context.Background(), 0, "diff chunk", r.logger)

	assert.NoError(t, result.Err, "irreparable YAML must not fail the run")
	assert.Empty(t, result.Reviews)
	assert.Equal(t, 1, fa.calls, "retrying cannot fix a malformed answer")
}

func TestReviewChunkRetriesTransportErrors(t *testing.T) {
	fa := &fakeAgent{err: assert.AnError}
	r := newTestReviewer(fa)

	result := r.reviewChunk(context.Background(), 0, "diff chunk", r.logger)

	assert.ErrorIs(t, result.Err, assert.AnError)
	assert.Equal(t, 3, fa.calls, "transient errors are retried up to the limit")
}
