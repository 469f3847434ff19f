package reviewer

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/seele-review/seele/internal/agent"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
)

var _ interfaces.ReviewService = (*Reviewer)(nil)

// Reviewer implements the ReviewService interface: it drives one webhook
// event through diff fetching, annotation, chunking, model review and
// publishing.
type Reviewer struct {
	cfg      Config
	forge    interfaces.ForgeClient
	agent    interfaces.ReviewAgent
	notifier interfaces.Notifier
	budgeter *Budgeter
	pool     *ants.Pool
	logger   logze.Logger

	// inFlight guards against concurrent runs for the same merge request,
	// reviewedSHAs against duplicate webhook deliveries for the same commit.
	inFlight     map[string]bool
	inFlightMu   sync.Mutex
	reviewedSHAs *abstract.SafeMap[string, time.Time]
}

// New creates a new reviewer
func New(
	cfg Config,
	modelName string,
	forge interfaces.ForgeClient,
	reviewAgent interfaces.ReviewAgent,
	notifier interfaces.Notifier,
) (*Reviewer, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	budgeter, err := NewBudgeter(modelName, cfg.MaxTokens, cfg.ChunkOverlap)
	if err != nil {
		return nil, errm.Wrap(err, "failed to create budgeter")
	}

	pool, err := ants.NewPool(cfg.ChunkFanOut)
	if err != nil {
		return nil, errm.Wrap(err, "failed to create ants pool")
	}

	return &Reviewer{
		cfg:          cfg,
		forge:        forge,
		agent:        reviewAgent,
		notifier:     notifier,
		budgeter:     budgeter,
		pool:         pool,
		logger:       logze.With("component", "reviewer"),
		inFlight:     make(map[string]bool),
		reviewedSHAs: abstract.NewSafeMap[string, time.Time](),
	}, nil
}

// HandleEvent runs the full review pipeline for one webhook event
func (r *Reviewer) HandleEvent(ctx context.Context, event *model.CodeEvent, opts model.ReviewOptions) error {
	if event.MergeRequest == nil {
		return errm.New("merge request is nil in event")
	}

	log := r.logger.WithFields(
		"project_id", event.ProjectID,
		"mr_iid", event.MergeRequest.IID,
		"action", event.Action,
	)

	key := event.ProjectID + ":" + strconv.Itoa(event.MergeRequest.IID)
	if !r.acquire(key) {
		log.Info("review already in progress, skipping")
		return nil
	}
	defer r.release(key)

	req := &model.ReviewRequest{
		ProjectID:    event.ProjectID,
		ProjectName:  event.ProjectName,
		MergeRequest: event.MergeRequest,
		Options:      opts,
	}

	dedupKey := req.String()
	if _, ok := r.reviewedSHAs.Lookup(dedupKey); ok {
		log.Info("commit already reviewed, skipping", "sha", event.MergeRequest.SHA)
		return nil
	}

	log.Info("starting review")

	result, err := r.process(ctx, req, log)
	if err != nil {
		r.notifyError(ctx, req, err, log)
		return errm.Wrap(err, "failed to process review")
	}

	r.reviewedSHAs.Set(dedupKey, time.Now())

	log.Info("review completed",
		"files", result.ProcessedFiles,
		"reviews", result.ReviewsFound,
		"comments", result.CommentsCreated)
	return nil
}

// process runs the pipeline steps and returns the aggregate result
func (r *Reviewer) process(ctx context.Context, req *model.ReviewRequest, log logze.Logger) (*model.ReviewResult, error) {
	forge := r.forge
	if req.Options.APIToken != "" {
		var err error
		forge, err = r.forge.WithToken(req.Options.APIToken)
		if err != nil {
			return nil, errm.Wrap(err, "failed to apply token override")
		}
	}

	mr, err := forge.GetMergeRequest(ctx, req.ProjectID, req.MergeRequest.IID)
	if err != nil {
		return nil, errm.Wrap(err, "failed to get merge request details")
	}
	req.MergeRequest = mr

	diffs, err := forge.GetMergeRequestDiffs(ctx, req.ProjectID, mr.IID)
	if err != nil {
		return nil, errm.Wrap(err, "failed to get merge request diffs")
	}

	reviewable := make([]*model.FileDiff, 0, len(diffs))
	for _, diff := range diffs {
		if diff.IsReviewable() {
			reviewable = append(reviewable, diff)
		}
	}
	if len(reviewable) == 0 {
		log.Info("no reviewable files in merge request", "total_files", len(diffs))
		return &model.ReviewResult{Success: true}, nil
	}

	files := ExtendDiff(reviewable)
	extendedDiff := BuildExtendedDiff(mr.Title, files)

	chunks := r.budgeter.SplitDiff(extendedDiff)
	log.Debug("extended diff prepared",
		"files", len(files), "chunks", len(chunks),
		"tokens", r.budgeter.CountTokens(extendedDiff))

	results := r.reviewChunks(ctx, chunks, log)

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}
	if len(results) > 0 && failed == len(results) {
		return nil, errm.New("all chunks failed to review")
	}

	reviews := MergeReviews(results)

	publisher := NewPublisher(forge, r.cfg.BotName)
	created, err := publisher.Publish(ctx, req, reviews, files)
	if err != nil {
		return nil, errm.Wrap(err, "failed to publish reviews")
	}

	result := &model.ReviewResult{
		Success:         true,
		ProcessedFiles:  len(files),
		ReviewsFound:    len(reviews),
		CommentsCreated: created,
	}

	r.notifySuccess(ctx, req, result, log)

	return result, nil
}

// reviewChunks fans chunk reviews out over the worker pool and collects the
// results in chunk order so merging stays deterministic.
func (r *Reviewer) reviewChunks(ctx context.Context, chunks []string, log logze.Logger) []*ChunkResult {
	results := make([]*ChunkResult, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		i, chunk := i, chunk
		wg.Add(1)

		err := r.pool.Submit(func() {
			defer wg.Done()
			results[i] = r.reviewChunk(ctx, i, chunk, log)
		})
		if err != nil {
			wg.Done()
			results[i] = &ChunkResult{ChunkIndex: i, Content: chunk, Err: err}
		}
	}
	wg.Wait()

	return results
}

// reviewChunk calls the model for one chunk with retries. A chunk that still
// fails after retries yields zero findings and does not abort the pipeline.
func (r *Reviewer) reviewChunk(ctx context.Context, index int, chunk string, log logze.Logger) *ChunkResult {
	result := &ChunkResult{
		ChunkIndex: index,
		Content:    chunk,
		TokenCount: r.budgeter.CountTokens(chunk),
	}

	var err error
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		result.Reviews, err = r.agent.Review(ctx, chunk)
		if err == nil {
			return result
		}
		if errors.Is(err, agent.ErrNoReview) || errors.Is(err, agent.ErrUnparsableReview) {
			log.Warn("model response had no usable review, counting zero findings",
				"chunk", index, "error", err)
			return result
		}

		log.Warn("chunk review attempt failed",
			"chunk", index, "attempt", attempt, "error", err)

		if attempt < r.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				result.Err = ctx.Err()
				return result
			case <-time.After(r.cfg.RetryDelay):
			}
		}
	}

	log.Err(err, "chunk review failed after all retries", "chunk", index)
	result.Err = err
	return result
}

func (r *Reviewer) notifySuccess(ctx context.Context, req *model.ReviewRequest, result *model.ReviewResult, log logze.Logger) {
	mr := req.MergeRequest
	err := r.notifier.SendReviewNotification(ctx, model.Notification{
		ProjectName:  lang.Check(req.ProjectName, req.ProjectID),
		UserName:     lang.Check(mr.Author.Name, mr.Author.Username),
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		MRTitle:      mr.Title,
		MRURL:        mr.URL,
		ReviewsCount: result.ReviewsFound,
		PushURL:      req.Options.PushURL,
	})
	if err != nil {
		log.Warn("failed to send review notification", "error", err)
	}
}

func (r *Reviewer) notifyError(ctx context.Context, req *model.ReviewRequest, reviewErr error, log logze.Logger) {
	mr := req.MergeRequest
	err := r.notifier.SendErrorNotification(ctx, model.Notification{
		ProjectName: lang.Check(req.ProjectName, req.ProjectID),
		MRTitle:     mr.Title,
		MRURL:       mr.URL,
		Error:       reviewErr.Error(),
		PushURL:     req.Options.PushURL,
	})
	if err != nil {
		log.Warn("failed to send error notification", "error", err)
	}
}

func (r *Reviewer) acquire(key string) bool {
	r.inFlightMu.Lock()
	defer r.inFlightMu.Unlock()
	if r.inFlight[key] {
		return false
	}
	r.inFlight[key] = true
	return true
}

func (r *Reviewer) release(key string) {
	r.inFlightMu.Lock()
	defer r.inFlightMu.Unlock()
	delete(r.inFlight, key)
}
