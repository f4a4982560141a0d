// Package runtime provides the execution context every CLI command
// runs against: the open repository, its merged config, a logger, and
// the branch set built from it. It avoids threading those four values
// through every command's flags individually, the way the teacher's
// own internal/runtime package bundles its Engine and Splog.
package runtime

import (
	"context"
	"fmt"

	"gitstack.dev/gitstack/internal/branchset"
	"gitstack.dev/gitstack/internal/gitrepo/real"
	"gitstack.dev/gitstack/internal/gslog"
	"gitstack.dev/gitstack/internal/protect"
	"gitstack.dev/gitstack/internal/rcfg"
	"gitstack.dev/gitstack/internal/xerrors"
)

// Context bundles the dependencies a command needs to orchestrate a
// rewrite: an open repository, its merged "stack.*" config, a logger,
// and the current branch set.
type Context struct {
	context.Context
	Repo     *real.Repo
	Config   *rcfg.Config
	Log      *gslog.Logger
	Branches *branchset.Set
	RepoRoot string
}

// Open resolves the repository containing dir, loads its config,
// builds a logger, and classifies every local branch per the
// configured protected-branch patterns.
func Open(ctx context.Context, dir string) (*Context, error) {
	repo, err := real.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrRepository, err)
	}

	gitDir, _ := repo.Path()
	cfg, err := rcfg.Load(gitDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrConfig, err)
	}

	var log *gslog.Logger
	if logPath := cfg.String("log-file", ""); logPath != "" {
		log, err = gslog.NewWithFile(logPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", xerrors.ErrConfig, err)
		}
	} else {
		log = gslog.New()
	}

	matcher, err := protect.New(cfg.ProtectedBranches())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrConfig, err)
	}

	branches, err := branchset.Build(ctx, repo, matcher)
	if err != nil {
		return nil, err
	}

	return &Context{
		Context:  ctx,
		Repo:     repo,
		Config:   cfg,
		Log:      log,
		Branches: branches,
		RepoRoot: dir,
	}, nil
}
