package prompt

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// StyleGuide holds the writing constraints for generated analysis.
type StyleGuide struct {
	Role        string   `yaml:"role"`
	Language    string   `yaml:"language"`
	Rules       []string `yaml:"rules"`
	BannedWords []string `yaml:"banned_words"`
}

// DefaultStyleGuide returns the built-in guide: UK English, plain language,
// no emojis or exclamation marks, and the standard banned-word list.
func DefaultStyleGuide() *StyleGuide {
	return &StyleGuide{
		Role:     "You are a Google Ads expert.",
		Language: "UK English",
		Rules: []string{
			"Write in UK English at all times (for example, humanise instead of humanize, colour instead of color).",
			"Avoid jargon and unnecessarily complex word choices.",
			"Clarity is crucial. Do not use emojis or exclamation marks.",
			"Use a measured, professional tone and the past tense when describing reported results.",
		},
		BannedWords: []string{
			"Everest", "Matterhorn", "levate", "juncture", "moreover", "landscape",
			"utilise", "maze", "labyrinth", "cusp", "hurdles", "bustling", "harnessing",
			"unveiling the power", "realm", "depicted", "demystify", "insurmountable",
			"new era", "poised", "unravel", "entanglement", "unprecedented",
			"eerie connection", "unliving", "beacon", "unleash", "delve", "enrich",
			"multifaceted", "elevate", "discover", "supercharge", "unlock", "tailored",
			"elegant", "dive", "ever-evolving", "pride", "meticulously", "grappling",
			"superior", "weighing", "merely", "picture", "architect", "adventure",
			"journey", "embark", "navigate", "navigation", "navigating", "enchanting",
			"world", "dazzle", "tapestry", "in this blog", "in this article", "dive-in",
			"in today's", "right place", "let's get started", "imagine this",
			"picture this", "consider this", "just explore",
		},
	}
}

// LoadStyleGuide reads a style guide from a YAML file. Empty fields fall back
// to DefaultStyleGuide. An empty path returns the default guide.
func LoadStyleGuide(path string) (*StyleGuide, error) {
	def := DefaultStyleGuide()
	if strings.TrimSpace(path) == "" {
		return def, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: read style guide %s", path)
	}

	// The YAML may nest the guide under a top-level "style" key.
	var wrapper struct {
		Style *StyleGuide `yaml:"style"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "prompt: parse style guide")
	}
	guide := wrapper.Style
	if guide == nil {
		guide = &StyleGuide{}
		if err := yaml.Unmarshal(data, guide); err != nil {
			return nil, eris.Wrap(err, "prompt: parse style guide")
		}
	}

	if guide.Role == "" {
		guide.Role = def.Role
	}
	if guide.Language == "" {
		guide.Language = def.Language
	}
	if len(guide.Rules) == 0 {
		guide.Rules = def.Rules
	}
	if len(guide.BannedWords) == 0 {
		guide.BannedWords = def.BannedWords
	}
	return guide, nil
}

// ContainsBanned returns the banned words and phrases that appear in text,
// matched case-insensitively, in guide order.
func (g *StyleGuide) ContainsBanned(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, w := range g.BannedWords {
		if w == "" {
			continue
		}
		if containsWord(lower, strings.ToLower(w)) {
			found = append(found, w)
		}
	}
	return found
}

// containsWord matches needle only at word boundaries so "world" does not
// flag "worldwide".
func containsWord(haystack, needle string) bool {
	for from := 0; ; {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if boundary(haystack, start-1) && boundary(haystack, end) {
			return true
		}
		from = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c >= 0x80)
}
