// Package rcfg is the hierarchical configuration surface: the
// "stack.*" keys layered system -> global -> local via go-git's own
// scoped config reader, then overridden by GITSTACK_* environment
// variables. It supersedes the teacher's bespoke JSON config file
// (DESIGN.md) while keeping its accessor-function naming idiom.
package rcfg

import (
	"os"
	"strconv"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gogitconfig "github.com/go-git/go-git/v5/config"
)

const section = "stack"

// Config is the merged view of the "stack" config section across
// every scope the repository's git config is read from.
type Config struct {
	scalars map[string]string
	multi   map[string][]string
}

// Load opens the repository at gitDir and merges its system, global,
// and local "stack.*" settings: scalar keys take the most specific
// scope's value, multi-valued keys (protected-branch) accumulate
// across every scope in system -> global -> local order.
func Load(gitDir string) (*Config, error) {
	repo, err := gogit.PlainOpenWithOptions(gitDir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}

	cfg := &Config{scalars: map[string]string{}, multi: map[string][]string{}}
	for _, scope := range []gogitconfig.Scope{gogitconfig.SystemScope, gogitconfig.GlobalScope, gogitconfig.LocalScope} {
		scoped, err := repo.ConfigScoped(scope)
		if err != nil {
			continue
		}
		sec := scoped.Raw.Section(section)
		if sec == nil {
			continue
		}
		for _, opt := range sec.Options {
			key := strings.ToLower(opt.Key)
			cfg.scalars[key] = opt.Value
			cfg.multi[key] = append(cfg.multi[key], opt.Value)
		}
	}
	return cfg, nil
}

func envKey(key string) string {
	return "GITSTACK_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// String returns a scalar "stack.<key>" value, env override first.
func (c *Config) String(key string, fallback string) string {
	if v, ok := os.LookupEnv(envKey(key)); ok {
		return v
	}
	if v, ok := c.scalars[key]; ok {
		return v
	}
	return fallback
}

// StringSlice returns a multi-valued "stack.<key>" setting
// (e.g. repeated `protected-branch` lines), env override (comma
// separated) first.
func (c *Config) StringSlice(key string) []string {
	if v, ok := os.LookupEnv(envKey(key)); ok {
		if v == "" {
			return nil
		}
		return strings.Split(v, ",")
	}
	return c.multi[key]
}

// Int returns an integer "stack.<key>" value, or fallback if unset or
// unparsable.
func (c *Config) Int(key string, fallback int) int {
	v := c.String(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Bool returns a boolean "stack.<key>" value, or fallback if unset or
// unparsable.
func (c *Config) Bool(key string, fallback bool) bool {
	v := c.String(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Duration returns a "stack.<key>" value parsed as a Go duration
// (e.g. "720h" for protect-commit-age), or fallback if unset/unparsable.
func (c *Config) Duration(key string, fallback time.Duration) time.Duration {
	v := c.String(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// ProtectedBranches returns "stack.protected-branch" patterns, or a
// single-entry default of "main" when unset.
func (c *Config) ProtectedBranches() []string {
	if v := c.StringSlice("protected-branch"); len(v) > 0 {
		return v
	}
	return []string{"main"}
}

// PushRemote returns "stack.push-remote", defaulting to "origin".
func (c *Config) PushRemote() string { return c.String("push-remote", "origin") }

// PullRemote returns "stack.pull-remote", falling back to PushRemote.
func (c *Config) PullRemote() string { return c.String("pull-remote", c.PushRemote()) }

// AutoFixup returns "stack.auto-fixup" (default true): whether fixup
// commits are squashed automatically during sync.
func (c *Config) AutoFixup() bool { return c.Bool("auto-fixup", true) }

// AutoRepair returns "stack.auto-repair" (default true): whether
// realign/merge passes run automatically during sync.
func (c *Config) AutoRepair() bool { return c.Bool("auto-repair", true) }

// ShowFormat returns "stack.show-format" (default "full").
func (c *Config) ShowFormat() string { return c.String("show-format", "full") }

// ShowStacked reports "stack.show-stacked" (default true): whether the
// tree view nests descendants or lists branches flat.
func (c *Config) ShowStacked() bool { return c.Bool("show-stacked", true) }

// Capacity returns "stack.capacity" for the snapshot stack, or nil
// (unbounded) when unset.
func (c *Config) Capacity() *int {
	v := c.String("capacity", "")
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// GPGSign returns "stack.gpgSign" (default false).
func (c *Config) GPGSign() bool { return c.Bool("gpgsign", false) }

// ProtectCommitCount returns "stack.protect-commit-count", or nil
// (unbounded) when unset.
func (c *Config) ProtectCommitCount() *int {
	v := c.String("protect-commit-count", "")
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// ProtectCommitAge returns "stack.protect-commit-age" as a duration,
// or nil when unset.
func (c *Config) ProtectCommitAge() *time.Duration {
	v := c.String("protect-commit-age", "")
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil
	}
	return &d
}

// Stack returns "stack.stack", the default snapshot stack name.
func (c *Config) Stack() string { return c.String("stack", "recent") }

// Dump returns a copy of every resolved "stack.<key>" scalar, for
// `stack --dump-config` to write out as a debugging aid.
func (c *Config) Dump() map[string]string {
	out := make(map[string]string, len(c.scalars))
	for k, v := range c.scalars {
		out[k] = v
	}
	return out
}
