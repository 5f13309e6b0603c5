package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"chatgate/model"
)

// Version is a config schema version identifier.
type Version string

const (
	// VersionLegacy is assumed for envelopes without a version stamp.
	VersionLegacy Version = "0.0.0"
	// CurrentVersion is the schema version this build writes.
	CurrentVersion Version = "1.2.0"
)

// RawConfigs is the untyped provider -> fields shape migrations operate on.
type RawConfigs map[string]map[string]any

// VersionedConfig is the persisted envelope.
type VersionedConfig struct {
	Version Version                            `json:"version"`
	Configs map[model.ProviderID]ServiceConfig `json:"configs"`
}

// MigrationRule transforms configs stored at From into the shape of To.
type MigrationRule struct {
	From    Version
	To      Version
	Migrate func(RawConfigs) (RawConfigs, error)
}

// MigrationResult reports what CheckAndMigrate did.
type MigrationResult struct {
	Success     bool
	Migrated    bool
	FromVersion Version
	ToVersion   Version
	Err         error
}

// Migrator walks registered rules from a stored version to the current one.
// At most one rule may leave any given version.
type Migrator struct {
	current Version
	rules   map[Version]MigrationRule
	log     logrus.FieldLogger
}

// NewMigrator registers rules and verifies that every registered version
// reaches current without cycles.
func NewMigrator(current Version, log logrus.FieldLogger, rules ...MigrationRule) (*Migrator, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Migrator{
		current: current,
		rules:   make(map[Version]MigrationRule, len(rules)),
		log:     log.WithField("component", "migrator"),
	}
	for _, r := range rules {
		if err := m.Register(r); err != nil {
			return nil, err
		}
	}
	for from := range m.rules {
		if _, err := m.Path(from); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DefaultMigrator returns the migrator with the built-in rule chain.
func DefaultMigrator(log logrus.FieldLogger) *Migrator {
	m, err := NewMigrator(CurrentVersion, log, builtinRules()...)
	if err != nil {
		panic(fmt.Sprintf("built-in migration chain is broken: %v", err))
	}
	return m
}

// Register adds a rule. A second rule leaving the same version is rejected.
func (m *Migrator) Register(r MigrationRule) error {
	if r.Migrate == nil {
		return fmt.Errorf("migration %s -> %s has no transform", r.From, r.To)
	}
	if r.From == r.To {
		return &model.MigrationError{From: string(r.From), To: string(r.To), Err: fmt.Errorf("rule does not change version")}
	}
	if existing, ok := m.rules[r.From]; ok {
		return &model.MigrationError{
			From: string(r.From),
			To:   string(r.To),
			Err:  fmt.Errorf("%w: %s already migrates to %s", model.ErrAmbiguousMigration, r.From, existing.To),
		}
	}
	m.rules[r.From] = r
	return nil
}

// Current returns the target version.
func (m *Migrator) Current() Version {
	return m.current
}

// Path returns the ordered rules leading from `from` to the current version.
func (m *Migrator) Path(from Version) ([]MigrationRule, error) {
	if from == m.current {
		return nil, nil
	}

	// Breadth-first over version nodes. With one rule per source version this
	// is a linear walk, but the visited set is what rejects cycles.
	type node struct {
		version Version
		path    []MigrationRule
	}
	visited := map[Version]bool{from: true}
	queue := []node{{version: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		r, ok := m.rules[cur.version]
		if !ok {
			continue
		}
		path := append(append([]MigrationRule(nil), cur.path...), r)
		if r.To == m.current {
			return path, nil
		}
		if visited[r.To] {
			continue
		}
		visited[r.To] = true
		queue = append(queue, node{version: r.To, path: path})
	}
	return nil, &model.MigrationError{From: string(from), To: string(m.current), Err: model.ErrNoMigrationPath}
}

// CheckAndMigrate parses a persisted blob and brings it to the current
// version. On any failure the returned configs are empty, never defaults.
func (m *Migrator) CheckAndMigrate(raw string) (MigrationResult, map[model.ProviderID]ServiceConfig) {
	empty := map[model.ProviderID]ServiceConfig{}

	version, configs, err := parseEnvelope(raw)
	if err != nil {
		m.log.WithError(err).Warn("Stored config could not be parsed")
		return MigrationResult{FromVersion: VersionLegacy, ToVersion: m.current, Err: err}, empty
	}

	result := MigrationResult{FromVersion: version, ToVersion: m.current}

	if version != m.current {
		path, err := m.Path(version)
		if err != nil {
			result.Err = err
			m.log.WithError(err).Warnf("No migration from %s", version)
			return result, empty
		}
		for _, r := range path {
			configs, err = r.Migrate(configs)
			if err != nil {
				result.Err = &model.MigrationError{From: string(r.From), To: string(r.To), Err: err}
				m.log.WithError(err).Warnf("Migration %s -> %s failed", r.From, r.To)
				return result, empty
			}
			m.log.Debugf("Migrated config %s -> %s", r.From, r.To)
		}
		result.Migrated = true
	}

	typed, err := decodeRaw(configs)
	if err != nil {
		result.Err = fmt.Errorf("failed to decode migrated config: %w", err)
		return result, empty
	}

	result.Success = true
	return result, typed
}

// Envelope wraps configs in a current-version envelope.
func (m *Migrator) Envelope(configs map[model.ProviderID]ServiceConfig) VersionedConfig {
	return VersionedConfig{Version: m.current, Configs: configs}
}

func parseEnvelope(raw string) (Version, RawConfigs, error) {
	var probe struct {
		Version *string         `json:"version"`
		Configs json.RawMessage `json:"configs"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err == nil && len(probe.Configs) > 0 {
		var configs RawConfigs
		if err := json.Unmarshal(probe.Configs, &configs); err != nil {
			return "", nil, fmt.Errorf("failed to parse configs: %w", err)
		}
		// Only a missing stamp means legacy. An unrecognised one is left for
		// Path to reject.
		version := VersionLegacy
		if probe.Version != nil && *probe.Version != "" {
			version = Version(*probe.Version)
		}
		if configs == nil {
			configs = RawConfigs{}
		}
		return version, configs, nil
	}

	// Not an envelope: the whole blob is an unversioned legacy map.
	var legacy RawConfigs
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return "", nil, fmt.Errorf("failed to parse stored config: %w", err)
	}
	if legacy == nil {
		legacy = RawConfigs{}
	}
	return VersionLegacy, legacy, nil
}

func decodeRaw(raw RawConfigs) (map[model.ProviderID]ServiceConfig, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	out := map[model.ProviderID]ServiceConfig{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func builtinRules() []MigrationRule {
	return []MigrationRule{
		{From: VersionLegacy, To: "1.0.0", Migrate: migrateLegacyKeys},
		{From: "1.0.0", To: "1.1.0", Migrate: migrateTimeoutToMillis},
		{From: "1.1.0", To: "1.2.0", Migrate: migrateOllamaHost},
	}
}

// 0.0.0 stored provider keys in any case and used apiUrl/api_key.
func migrateLegacyKeys(in RawConfigs) (RawConfigs, error) {
	out := make(RawConfigs, len(in))
	for provider, fields := range in {
		cfg := make(map[string]any, len(fields))
		for k, v := range fields {
			switch k {
			case "apiUrl", "api_url":
				cfg["baseUrl"] = v
			case "api_key":
				cfg["apiKey"] = v
			default:
				cfg[k] = v
			}
		}
		out[strings.ToLower(provider)] = cfg
	}
	return out, nil
}

// 1.0.0 stored timeouts in seconds.
func migrateTimeoutToMillis(in RawConfigs) (RawConfigs, error) {
	for provider, fields := range in {
		v, ok := fields["timeout"]
		if !ok {
			continue
		}
		secs, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("%s timeout is not a number: %v", provider, v)
		}
		fields["timeout"] = int(secs * 1000)
	}
	return in, nil
}

// 1.1.0 stored the ollama endpoint as a single host string.
func migrateOllamaHost(in RawConfigs) (RawConfigs, error) {
	fields, ok := in[string(model.ProviderOllama)]
	if !ok {
		return in, nil
	}
	host, ok := fields["host"].(string)
	if !ok || host == "" {
		delete(fields, "host")
		return in, nil
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama port %q: %w", p, err)
		}
		fields["port"] = port
	}
	fields["baseUrl"] = u.Scheme + "://" + u.Hostname()
	delete(fields, "host")
	return in, nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
