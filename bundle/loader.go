package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/amplifier-run/amplifier/sourceresolve"
	"gopkg.in/yaml.v3"
)

// frontmatterPattern extracts YAML frontmatter delimited by "---" lines at
// the very start of a bundle.md file, mirroring frontmatter.py's
// `^---\s*\n(.*?)\n---\s*\n?` (DOTALL).
var frontmatterPattern = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n?`)

// Loader resolves a bundle source URI to a local directory (via the
// Source Resolver) and parses bundle.md or bundle.yaml into a Bundle.
type Loader struct {
	Resolver *sourceresolve.Resolver
}

// Load resolves uri and parses the bundle manifest found at its root.
func (l *Loader) Load(ctx context.Context, uri string) (*Bundle, error) {
	resolved, err := l.Resolver.Resolve(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", uri, err)
	}
	return l.LoadFromPath(resolved.ActivePath)
}

// LoadFromPath parses the bundle.md or bundle.yaml manifest at root
// directly, without going through the Source Resolver — used for bundles
// already on disk (e.g. a PreparedBundle's dependency includes).
func (l *Loader) LoadFromPath(root string) (*Bundle, error) {
	mdPath := filepath.Join(root, "bundle.md")
	yamlPath := filepath.Join(root, "bundle.yaml")

	if raw, err := os.ReadFile(mdPath); err == nil {
		return l.parseMarkdown(raw, root)
	}
	if raw, err := os.ReadFile(yamlPath); err == nil {
		return l.parseYAML(raw, root)
	}
	return nil, fmt.Errorf("load bundle at %s: no bundle.md or bundle.yaml found", root)
}

func (l *Loader) parseMarkdown(raw []byte, basePath string) (*Bundle, error) {
	text := string(raw)
	m := frontmatterPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("bundle.md at %s has no YAML frontmatter", basePath)
	}

	var data map[string]any
	if err := yaml.Unmarshal([]byte(m[1]), &data); err != nil {
		return nil, fmt.Errorf("bundle.md at %s: invalid frontmatter: %w", basePath, err)
	}
	if data == nil {
		data = map[string]any{}
	}

	body := text[len(m[0]):]

	b, err := FromMap(normalizeYAMLMap(data), basePath)
	if err != nil {
		return nil, err
	}
	b.Instruction = body
	return b, nil
}

func (l *Loader) parseYAML(raw []byte, basePath string) (*Bundle, error) {
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("bundle.yaml at %s: %w", basePath, err)
	}
	return FromMap(normalizeYAMLMap(data), basePath)
}

// normalizeYAMLMap recursively converts map[string]interface{} produced by
// some YAML decode paths (and map[interface{}]interface{} from older
// decoders) into the map[string]any shape FromMap expects, so downstream
// type assertions against map[string]any succeed uniformly.
func normalizeYAMLMap(v any) map[string]any {
	out, _ := normalizeYAMLValue(v).(map[string]any)
	return out
}

func normalizeYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAMLValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = normalizeYAMLValue(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAMLValue(val)
		}
		return out
	default:
		return v
	}
}
