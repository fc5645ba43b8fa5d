// Package config loads the pipeline policy: staged mode, per-type
// intent budgets, allow-lists and footer/tracker templates. Values
// come from defaults overlaid with OUTPOST_-prefixed environment
// variables; the batch itself never carries policy.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the opaque policy input consumed by the dispatcher and
// handlers. Constructed once per run.
type Config struct {
	// Staged switches every handler into dry-run mode: validate and
	// resolve, but never mutate the platform.
	Staged bool `koanf:"staged"`

	// Passes bounds the deferral re-invocation loop.
	Passes int `koanf:"passes"`

	// Target selects how handlers resolve missing targets:
	// "triggering" (ambient item only), "*" (explicit targets
	// allowed), or a pinned number.
	Target string `koanf:"target"`

	// Tracker is the tracker-id embedded in system markers.
	Tracker string `koanf:"tracker"`

	Footer struct {
		Mode     string `koanf:"mode"` // always | never | if-nonempty
		Template string `koanf:"template"`
	} `koanf:"footer"`

	Allow struct {
		Mentions   []string `koanf:"mentions"`
		Reviewers  []string `koanf:"reviewers"`
		Milestones []string `koanf:"milestones"`
		Labels     []string `koanf:"labels"`
		Reasons    []string `koanf:"reasons"`
	} `koanf:"allow"`

	Domains struct {
		Deny []string `koanf:"deny"`
	} `koanf:"domains"`

	// Max bounds side effects per intent type per batch, keyed by the
	// intent type string.
	Max map[string]int `koanf:"max"`
}

// Default per-type budgets. An agent emitting more intents of a type
// than its budget gets "max count reached" failures for the excess.
var defaultMax = map[string]int{
	"create_issue":                       5,
	"create_discussion":                  2,
	"add_comment":                        10,
	"close_issue":                        5,
	"close_pull_request":                 5,
	"link_sub_issue":                     10,
	"create_pull_request_review_comment": 20,
	"submit_pull_request_review":         1,
	"update_project":                     10,
	"assign_milestone":                   5,
	"add_reviewer":                       5,
	"add_labels":                         5,
	"hide_comment":                       5,
}

// nestedPrefixes are config sections whose member keys themselves
// contain underscores, so only the section separator becomes a dot.
var nestedPrefixes = []string{"max_", "allow_", "footer_", "domains_"}

// Load builds the configuration from defaults plus OUTPOST_*
// environment variables (e.g. OUTPOST_STAGED=true,
// OUTPOST_MAX_ADD_COMMENT=3, OUTPOST_ALLOW_MENTIONS=a,b).
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"staged":      false,
		"passes":      3,
		"target":      "triggering",
		"footer.mode": "if-nonempty",
	}
	for typ, max := range defaultMax {
		defaults["max."+typ] = max
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	err := k.Load(env.ProviderWithValue("OUTPOST_", ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, "OUTPOST_"))
		for _, prefix := range nestedPrefixes {
			if strings.HasPrefix(key, prefix) {
				key = strings.TrimSuffix(prefix, "_") + "." + strings.TrimPrefix(key, prefix)
				break
			}
		}
		// Comma-separated values become lists.
		if strings.Contains(value, ",") {
			parts := strings.Split(value, ",")
			out := make([]interface{}, 0, len(parts))
			for _, p := range parts {
				out = append(out, strings.TrimSpace(p))
			}
			return key, out
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := c.validatePasses(); err != nil {
		return err
	}
	if err := c.validateTarget(); err != nil {
		return err
	}
	return c.validateFooter()
}

func (c *Config) validatePasses() error {
	if c.Passes < 1 {
		return fmt.Errorf("passes must be at least 1, got %d", c.Passes)
	}
	return nil
}

func (c *Config) validateTarget() error {
	switch c.Target {
	case "triggering", "*":
		return nil
	}
	if _, err := strconv.Atoi(c.Target); err != nil {
		return fmt.Errorf("target must be \"triggering\", \"*\" or a number, got %q", c.Target)
	}
	return nil
}

func (c *Config) validateFooter() error {
	switch strings.ToLower(c.Footer.Mode) {
	case "", "always", "never", "if-nonempty":
		return nil
	}
	return fmt.Errorf("footer mode must be always, never or if-nonempty, got %q", c.Footer.Mode)
}

// MaxFor returns the budget for an intent type; types without an
// explicit budget are unbounded.
func (c *Config) MaxFor(intentType string) (int, bool) {
	max, ok := c.Max[intentType]
	return max, ok
}

// PinnedTarget returns the pinned target number when the target mode
// is an explicit number.
func (c *Config) PinnedTarget() (int, bool) {
	n, err := strconv.Atoi(c.Target)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
