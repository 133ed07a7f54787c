package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/archetype-labs/archlint/internal/exempt"
)

// ErrArchetypeUnknown is returned when no source can provide the archetype.
var ErrArchetypeUnknown = errors.New("unknown archetype")

// ExemptionLoader supplies the exemption list for an archetype. Injected so
// the resolver can be tested without the exempt package's HTTP chain.
type ExemptionLoader func(ctx context.Context, archetype string) ([]exempt.Exemption, error)

// Resolver produces immutable execution configurations. Resolution is
// idempotent per instance: repeated calls with the same name return the
// identical cached configuration.
type Resolver struct {
	server     string
	localPath  string
	options    InvocationOptions
	remote     *remoteClient
	cache      *Cache
	exemptions ExemptionLoader
	logger     *slog.Logger
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Server is the remote config server base URL. Empty disables remote
	// resolution entirely; a configured server that fails is a hard error.
	Server string
	// LocalPath is the local config directory. Empty disables local files.
	LocalPath string
	// Options is echoed onto every resolved ExecutionConfig.
	Options InvocationOptions
	// Exemptions loads the exemption list; nil uses the exempt loader with
	// the same server/local chain.
	Exemptions ExemptionLoader
	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// NewResolver builds a resolver with its own cache.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Resolver{
		server:     cfg.Server,
		localPath:  cfg.LocalPath,
		options:    cfg.Options,
		cache:      NewCache(),
		exemptions: cfg.Exemptions,
		logger:     logger,
	}
	if cfg.Server != "" {
		r.remote = newRemoteClient(cfg.Server, logger)
	}
	if r.exemptions == nil {
		loader := &exempt.Loader{
			Server:    cfg.Server,
			LocalPath: cfg.LocalPath,
			Token:     os.Getenv("ARCHLINT_EXEMPTIONS_TOKEN"),
			Logger:    logger,
		}
		r.exemptions = loader.Load
	}
	return r
}

// Cache exposes the resolver's cache for inspection and test resets.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve returns the execution configuration for an archetype, resolving
// remote, then local, then built-in sources. The result is cached for the
// lifetime of the resolver.
func (r *Resolver) Resolve(ctx context.Context, name string) (*ExecutionConfig, error) {
	if cfg, ok := r.cache.Get(name); ok {
		return cfg, nil
	}

	arch, err := r.resolveArchetype(ctx, name)
	if err != nil {
		return nil, err
	}

	rules := r.loadRules(ctx, arch)
	if len(rules) == 0 {
		r.logger.Warn("archetype resolved with no usable rules", "archetype", name)
	}

	exemptions, err := r.exemptions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading exemptions for %s: %w", name, err)
	}

	cfg := &ExecutionConfig{
		Archetype:  arch,
		Rules:      rules,
		Exemptions: exemptions,
		Options:    r.options,
	}
	r.cache.Set(name, cfg)
	r.logger.Info("archetype resolved",
		"archetype", name,
		"rules", len(rules),
		"exemptions", len(exemptions))
	return cfg, nil
}

// resolveArchetype walks the source chain. A remote network failure is
// fatal; a remote or local document failing the schema gate falls through.
func (r *Resolver) resolveArchetype(ctx context.Context, name string) (*ArchetypeConfig, error) {
	if r.remote != nil {
		raw, err := r.remote.archetype(ctx, name)
		switch {
		case err == nil:
			arch, derr := decodeArchetype(name, raw)
			if derr == nil {
				return arch, nil
			}
			r.logger.Error("remote archetype failed validation, falling back",
				"archetype", name, "error", derr)
		case errors.Is(err, errRemotePayload):
			r.logger.Error("remote archetype payload unusable, falling back",
				"archetype", name, "error", err)
		default:
			return nil, err
		}
	}

	if r.localPath != "" {
		if arch, ok := r.localArchetype(name); ok {
			return arch, nil
		}
	}

	if arch, ok := builtinArchetype(name); ok {
		r.logger.Debug("using built-in archetype", "archetype", name)
		return arch, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrArchetypeUnknown, name)
}

// localArchetype reads {localPath}/{name}.json.
func (r *Resolver) localArchetype(name string) (*ArchetypeConfig, bool) {
	path := filepath.Join(r.localPath, name+".json")
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		r.logger.Error("local archetype unreadable, falling back",
			"archetype", name, "path", path, "error", err)
		return nil, false
	}

	arch, err := decodeArchetype(name, k.Raw())
	if err != nil {
		r.logger.Error("local archetype failed validation, falling back",
			"archetype", name, "path", path, "error", err)
		return nil, false
	}
	return arch, true
}

// loadRules resolves every rule the archetype names through the same
// remote/local/built-in chain. Invalid or missing rules are dropped with a
// logged reason; they never abort the run.
func (r *Resolver) loadRules(ctx context.Context, arch *ArchetypeConfig) []RuleConfig {
	rules := make([]RuleConfig, 0, len(arch.Rules))
	for _, name := range arch.Rules {
		rule, err := r.loadRule(ctx, arch.Name, name)
		if err != nil {
			r.logger.Error("dropping rule", "archetype", arch.Name, "rule", name, "error", err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

func (r *Resolver) loadRule(ctx context.Context, archetype, name string) (RuleConfig, error) {
	if r.remote != nil {
		raw, err := r.remote.rule(ctx, archetype, name)
		if err == nil {
			return decodeRule(name, raw)
		}
		// Rule-level fetch failures degrade to the next source: the
		// archetype itself already established trust in the server.
		r.logger.Warn("remote rule unavailable, trying next source",
			"archetype", archetype, "rule", name, "error", err)
	}

	if r.localPath != "" {
		path := filepath.Join(r.localPath, "rules", archetype, name+".json")
		if _, err := os.Stat(path); err == nil {
			k := koanf.New(".")
			if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
				return RuleConfig{}, fmt.Errorf("reading %s: %w", path, err)
			}
			return decodeRule(name, k.Raw())
		}
	}

	if rule, ok := builtinRule(archetype, name); ok {
		return rule, nil
	}
	return RuleConfig{}, fmt.Errorf("no source provides rule %s/%s", archetype, name)
}
