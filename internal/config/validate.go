package config

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/archetype-labs/archlint/pkg/core"
)

// decodeArchetype converts a raw document into a typed ArchetypeConfig and
// validates its shape. Rejected documents must fall through to the next
// resolution source, so the error carries the reason for the log line only.
func decodeArchetype(name string, raw map[string]any) (*ArchetypeConfig, error) {
	var cfg ArchetypeConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("archetype %s: %w", name, err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	if err := validateArchetype(&cfg); err != nil {
		return nil, fmt.Errorf("archetype %s: %w", name, err)
	}
	return &cfg, nil
}

// validateArchetype enforces the schema gate: rules, facts, operators and
// a config block must all be present before a source is accepted.
func validateArchetype(cfg *ArchetypeConfig) error {
	var errs []error
	if len(cfg.Rules) == 0 {
		errs = append(errs, errors.New("no rules"))
	}
	if len(cfg.Facts) == 0 {
		errs = append(errs, errors.New("no facts"))
	}
	if len(cfg.Operators) == 0 {
		errs = append(errs, errors.New("no operators"))
	}
	if len(cfg.Config.MinimumDependencyVersions) == 0 &&
		len(cfg.Config.ExpectedDirectories) == 0 &&
		len(cfg.Config.BlacklistPatterns) == 0 &&
		len(cfg.Config.WhitelistPatterns) == 0 &&
		len(cfg.Config.Extra) == 0 {
		errs = append(errs, errors.New("missing config block"))
	}
	return errors.Join(errs...)
}

// decodeRule converts a raw rule document into a typed RuleConfig and
// validates it. Invalid rules are dropped by the caller, not fatal.
func decodeRule(name string, raw map[string]any) (RuleConfig, error) {
	var rule RuleConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &rule,
		TagName: "mapstructure",
	})
	if err != nil {
		return RuleConfig{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return RuleConfig{}, fmt.Errorf("rule %s: %w", name, err)
	}
	if rule.Name == "" {
		rule.Name = name
	}
	if err := validateRule(rule); err != nil {
		return RuleConfig{}, fmt.Errorf("rule %s: %w", name, err)
	}
	return rule, nil
}

func validateRule(rule RuleConfig) error {
	var errs []error
	if rule.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	if err := validateCondition(rule.Conditions, true); err != nil {
		errs = append(errs, err)
	}
	if _, ok := core.ParseSeverity(rule.Event.Type); !ok {
		errs = append(errs, fmt.Errorf("unknown event type %q", rule.Event.Type))
	}
	if rule.Event.Params.Message == "" {
		errs = append(errs, errors.New("event has no message"))
	}
	return errors.Join(errs...)
}

// validateCondition checks one node of the condition tree. The root must be
// a group; leaves must name both a fact and an operator.
func validateCondition(c Condition, root bool) error {
	if c.IsGroup() {
		if len(c.All) > 0 && len(c.Any) > 0 {
			return errors.New("condition mixes all and any at one level")
		}
		children := c.All
		if len(children) == 0 {
			children = c.Any
		}
		for _, sub := range children {
			if err := validateCondition(sub, false); err != nil {
				return err
			}
		}
		return nil
	}
	if root {
		return errors.New("top-level condition must be an all/any group")
	}
	if c.Fact == "" {
		return errors.New("condition clause missing fact")
	}
	if c.Operator == "" {
		return fmt.Errorf("condition on fact %q missing operator", c.Fact)
	}
	return nil
}
