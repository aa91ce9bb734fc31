package vault

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter holds the YAML fields notedex cares about. Unknown fields are
// ignored rather than rejected; vaults accumulate all sorts of metadata.
type frontmatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

var inlineTagRe = regexp.MustCompile(`(^|\s)#([\p{L}\p{N}_/-]+)`)

// ParseNote splits a raw note into body, title, and tags.
// Frontmatter is the block between leading "---" lines. A malformed
// frontmatter block is treated as body text, never an error.
func ParseNote(path string, raw string) (body string, title string, tags []string) {
	body = raw

	if strings.HasPrefix(raw, "---\n") || strings.HasPrefix(raw, "---\r\n") {
		rest := raw[strings.Index(raw, "\n")+1:]
		if end := strings.Index(rest, "\n---"); end >= 0 {
			var fm frontmatter
			if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err == nil {
				title = fm.Title
				tags = fm.Tags
				after := rest[end+len("\n---"):]
				if i := strings.Index(after, "\n"); i >= 0 {
					body = after[i+1:]
				} else {
					body = ""
				}
			}
		}
	}

	// Inline #tags supplement frontmatter tags.
	tags = appendInlineTags(tags, body)

	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		title = titleFromPath(path)
	}

	return body, title, dedupeTags(tags)
}

// firstHeading returns the text of the first markdown heading, if any.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return ""
}

// titleFromPath derives a title from the file name, without extension.
func titleFromPath(path string) string {
	name := path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

func appendInlineTags(tags []string, body string) []string {
	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		tags = append(tags, m[2])
	}
	return tags
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}
