package config

import (
	"fmt"
	"sort"
	"strconv"
)

var patchFields = map[string]func(p *Patch, value string) error{
	"apiKey":           func(p *Patch, v string) error { p.APIKey = &v; return nil },
	"baseUrl":          func(p *Patch, v string) error { p.BaseURL = &v; return nil },
	"defaultModel":     func(p *Patch, v string) error { p.DefaultModel = &v; return nil },
	"organization":     func(p *Patch, v string) error { p.Organization = &v; return nil },
	"apiVersion":       func(p *Patch, v string) error { p.APIVersion = &v; return nil },
	"timeout":          intField(func(p *Patch, n int) { p.Timeout = &n }),
	"maxRetries":       intField(func(p *Patch, n int) { p.MaxRetries = &n }),
	"port":             intField(func(p *Patch, n int) { p.Port = &n }),
	"includeReasoning": boolField(func(p *Patch, b bool) { p.IncludeReasoning = &b }),
}

func intField(set func(*Patch, int)) func(*Patch, string) error {
	return func(p *Patch, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", v)
		}
		set(p, n)
		return nil
	}
}

func boolField(set func(*Patch, bool)) func(*Patch, string) error {
	return func(p *Patch, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", v)
		}
		set(p, b)
		return nil
	}
}

// PatchFields lists the field names ParsePatch accepts, sorted.
func PatchFields() []string {
	names := make([]string, 0, len(patchFields))
	for name := range patchFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParsePatch builds a single-field patch from its JSON field name and a
// textual value, as typed on the command line.
func ParsePatch(field, value string) (Patch, error) {
	set, ok := patchFields[field]
	if !ok {
		return Patch{}, fmt.Errorf("unknown config field %q", field)
	}
	var p Patch
	if err := set(&p, value); err != nil {
		return Patch{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return p, nil
}
