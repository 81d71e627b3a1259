package traverse

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/gyaneshwarpardhi/nodegraph/internal/config"
)

// DefaultMaxDepth bounds recursion when settings do not say otherwise.
const DefaultMaxDepth = 4096

// Settings keys, shared by SettingsFromMap, Set and Merge.
const (
	KeyExcludedGroupTypes = "excluded_group_types"
	KeyLogicalOnly        = "logical_only"
	KeyIncludeGroups      = "include_groups"
	KeyMaxDepth           = "max_depth"
)

// Settings configures one traversal. The zero value is not valid; start from
// DefaultSettings or SettingsFromMap. Values are immutable: every With/Set
// call validates and returns a new value.
type Settings struct {
	excluded      map[string]struct{}
	logicalOnly   bool
	includeGroups bool
	maxDepth      int
}

// DefaultSettings returns no excluded group types, logical-only filtering,
// groups left out of the output and DefaultMaxDepth.
func DefaultSettings() Settings {
	return Settings{
		excluded:    map[string]struct{}{},
		logicalOnly: true,
		maxDepth:    DefaultMaxDepth,
	}
}

// ExcludedGroupTypes returns the group types never descended into, sorted.
func (s Settings) ExcludedGroupTypes() []string {
	out := make([]string, 0, len(s.excluded))
	for t := range s.excluded {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsExcluded reports whether groups of type typ are treated as plain nodes.
func (s Settings) IsExcluded(typ string) bool {
	_, ok := s.excluded[typ]
	return ok
}

func (s Settings) LogicalOnly() bool   { return s.logicalOnly }
func (s Settings) IncludeGroups() bool { return s.includeGroups }
func (s Settings) MaxDepth() int       { return s.maxDepth }

// WithExcludedGroupTypes replaces the excluded group types.
func (s Settings) WithExcludedGroupTypes(types ...string) (Settings, error) {
	if types == nil {
		types = []string{}
	}
	return s.apply(settingsDoc{ExcludedGroupTypes: &types})
}

func (s Settings) WithLogicalOnly(v bool) Settings {
	s.logicalOnly = v
	return s
}

func (s Settings) WithIncludeGroups(v bool) Settings {
	s.includeGroups = v
	return s
}

// WithMaxDepth sets the recursion ceiling; it must be positive.
func (s Settings) WithMaxDepth(n int) (Settings, error) {
	return s.apply(settingsDoc{MaxDepth: &n})
}

// Set changes one key, validating the value's type.
func (s Settings) Set(key string, value interface{}) (Settings, error) {
	return s.Merge(map[string]interface{}{key: value})
}

// Merge applies every key present in overrides on top of s.
func (s Settings) Merge(overrides map[string]interface{}) (Settings, error) {
	doc, err := decodeSettings(overrides)
	if err != nil {
		return Settings{}, err
	}
	return s.apply(doc)
}

// Map renders the settings with the same keys SettingsFromMap reads.
func (s Settings) Map() map[string]interface{} {
	return map[string]interface{}{
		KeyExcludedGroupTypes: s.ExcludedGroupTypes(),
		KeyLogicalOnly:        s.logicalOnly,
		KeyIncludeGroups:      s.includeGroups,
		KeyMaxDepth:           s.maxDepth,
	}
}

// SettingsFromMap builds settings from an explicit configuration object.
// excluded_group_types, logical_only and include_groups are required;
// max_depth is optional. Unknown keys and mistyped values are rejected.
func SettingsFromMap(m map[string]interface{}) (Settings, error) {
	doc, err := decodeSettings(m)
	if err != nil {
		return Settings{}, err
	}
	switch {
	case doc.ExcludedGroupTypes == nil:
		return Settings{}, &ConfigurationError{Key: KeyExcludedGroupTypes, Reason: "missing key"}
	case doc.LogicalOnly == nil:
		return Settings{}, &ConfigurationError{Key: KeyLogicalOnly, Reason: "missing key"}
	case doc.IncludeGroups == nil:
		return Settings{}, &ConfigurationError{Key: KeyIncludeGroups, Reason: "missing key"}
	}
	return DefaultSettings().apply(doc)
}

// SettingsFromConfig builds settings from a scene document's traversal block.
func SettingsFromConfig(c config.TraversalConf) (Settings, error) {
	types := c.ExcludedGroupTypes
	if types == nil {
		types = []string{}
	}
	maxDepth := c.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	return DefaultSettings().apply(settingsDoc{
		ExcludedGroupTypes: &types,
		LogicalOnly:        &c.LogicalOnly,
		IncludeGroups:      &c.IncludeGroups,
		MaxDepth:           &maxDepth,
	})
}

// settingsDoc is the decoded form of a settings map; nil means absent.
type settingsDoc struct {
	ExcludedGroupTypes *[]string `mapstructure:"excluded_group_types"`
	LogicalOnly        *bool     `mapstructure:"logical_only"`
	IncludeGroups      *bool     `mapstructure:"include_groups"`
	MaxDepth           *int      `mapstructure:"max_depth"`
}

func decodeSettings(m map[string]interface{}) (settingsDoc, error) {
	var doc settingsDoc
	if m == nil {
		return doc, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &doc,
	})
	if err != nil {
		return doc, fmt.Errorf("traversal settings decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) && len(merr.Errors) > 0 {
			return doc, &ConfigurationError{Reason: merr.Errors[0]}
		}
		return doc, &ConfigurationError{Reason: err.Error()}
	}
	return doc, nil
}

func (s Settings) apply(doc settingsDoc) (Settings, error) {
	if doc.ExcludedGroupTypes != nil {
		set := make(map[string]struct{}, len(*doc.ExcludedGroupTypes))
		for _, t := range *doc.ExcludedGroupTypes {
			if t == "" {
				return Settings{}, &ConfigurationError{Key: KeyExcludedGroupTypes, Reason: "group types must be non-empty strings"}
			}
			set[t] = struct{}{}
		}
		s.excluded = set
	}
	if doc.LogicalOnly != nil {
		s.logicalOnly = *doc.LogicalOnly
	}
	if doc.IncludeGroups != nil {
		s.includeGroups = *doc.IncludeGroups
	}
	if doc.MaxDepth != nil {
		if *doc.MaxDepth <= 0 {
			return Settings{}, &ConfigurationError{Key: KeyMaxDepth, Reason: "must be positive", Value: *doc.MaxDepth}
		}
		s.maxDepth = *doc.MaxDepth
	}
	return s, nil
}
