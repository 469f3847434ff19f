package app

import (
	"context"

	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/agent"
	"github.com/seele-review/seele/internal/config"
	"github.com/seele-review/seele/internal/forge"
	"github.com/seele-review/seele/internal/model/interfaces"
	"github.com/seele-review/seele/internal/notify"
	"github.com/seele-review/seele/internal/reviewer"
	"github.com/seele-review/seele/internal/server"
)

// Seele is the main service that wires all components together
type Seele struct {
	agent    interfaces.ReviewAgent
	notifier interfaces.Notifier
	server   *server.Server

	forges    map[forge.ForgeType]interfaces.ForgeClient
	reviewers map[forge.ForgeType]interfaces.ReviewService

	cfg config.Config
	log logze.Logger
}

// New creates a new review service
func New(ctx contem.Context, cfg config.Config) (*Seele, error) {
	service := &Seele{
		cfg:       cfg,
		log:       logze.With("component", "app"),
		forges:    make(map[forge.ForgeType]interfaces.ForgeClient),
		reviewers: make(map[forge.ForgeType]interfaces.ReviewService),
	}

	if err := service.init(ctx, cfg); err != nil {
		return nil, errm.Wrap(err, "failed to initialize service")
	}

	return service, nil
}

// StartWebhook starts the webhook server and blocks until shutdown
func (s *Seele) StartWebhook(ctx context.Context) error {
	s.log.Info("starting webhook server",
		"address", s.cfg.Server.Address,
		"github", s.cfg.HasGitHub(),
		"gitlab", s.cfg.HasGitLab(),
		"notify", string(s.cfg.Notify.Platform))

	if err := s.server.Start(ctx); err != nil {
		return errm.Wrap(err, "failed to start webhook server")
	}
	return nil
}

func (s *Seele) init(ctx contem.Context, cfg config.Config) (err error) {
	s.notifier, err = notify.New(cfg.Notify)
	if err != nil {
		return errm.Wrap(err, "failed to create notifier")
	}

	s.agent, err = agent.New(ctx, cfg.Agent)
	if err != nil {
		return errm.Wrap(err, "failed to create AI agent")
	}

	if cfg.HasGitHub() {
		if err := s.addForge(cfg.GitHubForgeConfig(), cfg); err != nil {
			return errm.Wrap(err, "failed to set up GitHub forge")
		}
	}
	if cfg.HasGitLab() {
		if err := s.addForge(cfg.GitLabForgeConfig(), cfg); err != nil {
			return errm.Wrap(err, "failed to set up GitLab forge")
		}
	}

	s.server, err = server.New(cfg.Server, s.forges, s.reviewers)
	if err != nil {
		return errm.Wrap(err, "failed to create webhook server")
	}
	ctx.Add(s.server.Stop)

	return nil
}

// addForge creates a forge client with its own review pipeline
func (s *Seele) addForge(forgeCfg forge.Config, cfg config.Config) error {
	client, err := forge.NewClient(forgeCfg)
	if err != nil {
		return errm.Wrap(err, "failed to create forge client")
	}

	rev, err := reviewer.New(cfg.Review, cfg.Agent.Model, client, s.agent, s.notifier)
	if err != nil {
		return errm.Wrap(err, "failed to create reviewer")
	}

	s.forges[forgeCfg.Type] = client
	s.reviewers[forgeCfg.Type] = rev

	return nil
}
