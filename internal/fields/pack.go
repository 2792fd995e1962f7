package fields

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/idverify/internal/common"
)

//go:embed packs/*.yaml
var defaultPacks embed.FS

// Pack is one language pack as written in packs/<script>.yaml.
type Pack struct {
	Script        string               `yaml:"script" json:"script"`
	Fallback      string               `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	NameStopwords []string             `yaml:"name_stopwords,omitempty" json:"name_stopwords,omitempty"`
	Fields        map[string]FieldSpec `yaml:"fields" json:"fields"`
}

// FieldSpec lists the labels and unlabeled fallbacks for one field.
type FieldSpec struct {
	Keywords         []string        `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	NotAfter         []string        `yaml:"not_after,omitempty" json:"not_after,omitempty"`
	RequireSeparator bool            `yaml:"require_separator,omitempty" json:"require_separator,omitempty"`
	Heuristics       []HeuristicSpec `yaml:"heuristics,omitempty" json:"heuristics,omitempty"`
}

// HeuristicSpec is either a regexp whose group 1 is the value, or a builtin.
type HeuristicSpec struct {
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Builtin string `yaml:"builtin,omitempty" json:"builtin,omitempty"`
}

// PackJSONSchema returns the JSON-Schema every pack must satisfy.
func PackJSONSchema() map[string]any {
	stringList := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string", "minLength": 1},
	}
	heuristic := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string", "minLength": 1},
			"builtin": map[string]any{"enum": builtinNames()},
		},
		"oneOf": []any{
			map[string]any{"required": []string{"pattern"}},
			map[string]any{"required": []string{"builtin"}},
		},
	}
	field := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"keywords":          stringList,
			"not_after":         stringList,
			"require_separator": map[string]any{"type": "boolean"},
			"heuristics":        map[string]any{"type": "array", "items": heuristic},
		},
		"anyOf": []any{
			map[string]any{"required": []string{"keywords"}},
			map[string]any{"required": []string{"heuristics"}},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"script", "fields"},
		"properties": map[string]any{
			"script":         map[string]any{"enum": []string{"en", "hi", "ar"}},
			"fallback":       map[string]any{"enum": []string{"", "en", "hi", "ar"}},
			"name_stopwords": stringList,
			"fields": map[string]any{
				"type":                 "object",
				"minProperties":        1,
				"propertyNames":        map[string]any{"pattern": `^[a-z][a-z0-9_]*$`},
				"additionalProperties": field,
			},
		},
	}
}

// ParsePack decodes and validates one YAML pack.
func ParsePack(name string, data []byte) (Pack, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Pack{}, fmt.Errorf("pack %s: decode yaml: %w", name, err)
	}
	// round-trip through JSON so the validator sees JSON types
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return Pack{}, fmt.Errorf("pack %s: to json: %w", name, err)
	}
	if err := common.ValidateJSONAgainstSchema(PackJSONSchema(), asJSON); err != nil {
		return Pack{}, fmt.Errorf("pack %s: %w", name, err)
	}

	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pack{}, fmt.Errorf("pack %s: decode: %w", name, err)
	}
	for i, w := range p.NameStopwords {
		p.NameStopwords[i] = strings.ToLower(strings.TrimSpace(w))
	}
	return p, nil
}

// LoadPacks reads every *.yaml file under dir in fsys.
func LoadPacks(fsys fs.FS, dir string) ([]Pack, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read packs dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := path.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no packs found in %s", dir)
	}

	packs := make([]Pack, 0, len(names))
	for _, n := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, n))
		if err != nil {
			return nil, fmt.Errorf("read pack %s: %w", n, err)
		}
		p, err := ParsePack(n, data)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, nil
}
