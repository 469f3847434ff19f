package server

import (
	"context"
	"net/http"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/servex/v2"
	"github.com/seele-review/seele/internal/forge"
	"github.com/seele-review/seele/internal/model"
	"github.com/seele-review/seele/internal/model/interfaces"
)

// webhookResponse is the JSON body for accepted and skipped deliveries
type webhookResponse struct {
	OK      bool   `json:"ok"`
	Skipped string `json:"skipped,omitempty"`
}

// Server handles webhook requests from the configured forges
type Server struct {
	forges    map[forge.ForgeType]interfaces.ForgeClient
	reviewers map[forge.ForgeType]interfaces.ReviewService
	config    Config
	log       logze.Logger
	server    *servex.Server
}

// New creates a new webhook server. One endpoint is registered per
// configured forge.
func New(cfg Config, forges map[forge.ForgeType]interfaces.ForgeClient, reviewers map[forge.ForgeType]interfaces.ReviewService) (*Server, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}
	if len(forges) == 0 {
		return nil, erro.New("at least one forge must be configured")
	}

	log := logze.With("module", "server")

	srv, err := servex.NewServer(
		servex.WithReadTimeout(cfg.Timeout),
		servex.WithIdleTimeout(cfg.Timeout*2),
		servex.WithLogger(log),
		servex.WithHealthEndpoint(),
		servex.WithDefaultMetrics(),
		servex.WithCertificate(cfg.Certificate),
	)
	if err != nil {
		return nil, erro.Wrap(err, "failed to create server")
	}

	h := &Server{
		forges:    forges,
		reviewers: reviewers,
		config:    cfg,
		log:       log,
		server:    srv,
	}

	srv.HandleFunc(livenessEndpoint, h.handleLiveness)
	if _, ok := forges[forge.GitHub]; ok {
		srv.HandleFunc(githubEndpoint, h.handleGitHubWebhook)
	}
	if _, ok := forges[forge.GitLab]; ok {
		srv.HandleFunc(gitlabEndpoint, h.handleGitLabWebhook)
	}

	return h, nil
}

// Start starts the webhook server
func (h *Server) Start(ctx context.Context) error {
	if h.config.EnableHTTPS {
		return h.server.StartHTTPS(h.config.Address)
	}
	return h.server.StartHTTP(h.config.Address)
}

// Stop stops the webhook server
func (h *Server) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// handleLiveness responds to liveness probes
func (h *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)
	ctx.Response(http.StatusOK, map[string]string{"status": "ok"})
}

// handleGitHubWebhook handles GitHub pull request webhooks. Review mode and
// push URL overrides arrive as query parameters.
func (h *Server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)
	client := h.forges[forge.GitHub]

	body, err := ctx.Read()
	if err != nil {
		ctx.BadRequest(err, "failed to read webhook body")
		return
	}

	// Raw body bytes are verified before any parsing
	if err := client.VerifyWebhook(body, r.Header.Get("X-Hub-Signature-256")); err != nil {
		ctx.Unauthorized(err, "webhook verification failed")
		return
	}

	if eventType := r.Header.Get("X-GitHub-Event"); eventType != "pull_request" {
		h.skip(w, r, "event "+eventType)
		return
	}

	event, err := client.ParseWebhookEvent(body)
	if err != nil {
		ctx.BadRequest(err, "failed to parse webhook event")
		return
	}

	if ok, reason := client.ShouldReview(event); !ok {
		h.skip(w, r, reason)
		return
	}

	opts := model.ReviewOptions{
		Mode:    model.ParseReviewMode(r.URL.Query().Get("mode")),
		PushURL: r.URL.Query().Get("push_url"),
	}

	h.review(w, r, h.reviewers[forge.GitHub], event, opts)
}

// handleGitLabWebhook handles GitLab merge request webhooks. Overrides arrive
// as custom headers: X-Ai-Mode, X-Push-Url and X-Gitlab-Api-Token.
func (h *Server) handleGitLabWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)
	client := h.forges[forge.GitLab]

	body, err := ctx.Read()
	if err != nil {
		ctx.BadRequest(err, "failed to read webhook body")
		return
	}

	if err := client.VerifyWebhook(body, r.Header.Get("X-Gitlab-Token")); err != nil {
		ctx.Unauthorized(err, "webhook verification failed")
		return
	}

	event, err := client.ParseWebhookEvent(body)
	if err != nil {
		ctx.BadRequest(err, "failed to parse webhook event")
		return
	}

	if ok, reason := client.ShouldReview(event); !ok {
		h.skip(w, r, reason)
		return
	}

	opts := model.ReviewOptions{
		Mode:     model.ParseReviewMode(r.Header.Get("X-Ai-Mode")),
		PushURL:  r.Header.Get("X-Push-Url"),
		APIToken: r.Header.Get("X-Gitlab-Api-Token"),
	}

	h.review(w, r, h.reviewers[forge.GitLab], event, opts)
}

func (h *Server) review(w http.ResponseWriter, r *http.Request, reviewer interfaces.ReviewService, event *model.CodeEvent, opts model.ReviewOptions) {
	ctx := servex.NewContext(w, r)

	h.log.Info("received merge request event",
		"project_id", event.ProjectID,
		"mr_title", event.MergeRequest.Title,
		"action", event.Action,
		"mode", string(opts.Mode))

	if err := reviewer.HandleEvent(r.Context(), event, opts); err != nil {
		ctx.InternalServerError(err, "failed to handle event")
		return
	}

	ctx.Response(http.StatusOK, webhookResponse{OK: true})
}

func (h *Server) skip(w http.ResponseWriter, r *http.Request, reason string) {
	h.log.Debug("skipping webhook event", "reason", reason)
	servex.NewContext(w, r).Response(http.StatusOK, webhookResponse{OK: true, Skipped: reason})
}
