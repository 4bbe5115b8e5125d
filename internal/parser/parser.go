// Package parser derives note metadata from filenames and content:
// identifiers, titles, tags, link targets, and the body below the leading
// metadata stanza.
package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/markup"
	"github.com/starford/gebo/internal/models"
)

// Note filenames follow the scheme ID--title-slug__tag1_tag2.ext with the
// identifier leading: 20240131T094500--merge-notes__gebo_draft.org.
var idRe = regexp.MustCompile(`^\d{8}T\d{6}`)

// Result holds everything parsed out of a single note.
type Result struct {
	Identifier string
	Flavor     models.Flavor
	Title      string
	Tags       []string
	Body       string
	Links      []string
}

// Parse extracts identifier, title, tags, body, and outgoing link targets
// from a note's path and raw content.
func Parse(path string, data []byte) (*Result, error) {
	flavor := models.FlavorOf(path)
	if flavor == models.FlavorUnknown {
		return nil, fmt.Errorf("parser: %s: %w", path, apperr.ErrUnsupportedFlavor)
	}

	title := frontmatterTitle(flavor, data)
	if title == "" {
		title = ParseFilenameTitle(path)
	}

	links, err := extractLinkIDs(string(data), flavor)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", path, err)
	}

	return &Result{
		Identifier: ParseIdentifier(path),
		Flavor:     flavor,
		Title:      title,
		Tags:       extractTags(flavor, path, data),
		Body:       ExtractBody(data),
		Links:      links,
	}, nil
}

// ParseIdentifier returns the identifier leading the filename, or "" when the
// filename does not carry one.
func ParseIdentifier(path string) string {
	return idRe.FindString(filepath.Base(path))
}

// ParseFilenameTitle de-slugs the title segment of the filename: the part
// between the "--" separator and the "__" tag separator (or the extension),
// with hyphens turned back into spaces.
func ParseFilenameTitle(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	i := strings.Index(name, "--")
	if i < 0 {
		return ""
	}
	slug := name[i+2:]
	if j := strings.Index(slug, "__"); j >= 0 {
		slug = slug[:j]
	}
	return strings.ReplaceAll(slug, "-", " ")
}

// ParseFilenameTags returns the tags encoded after the "__" separator of the
// filename, or nil when there are none.
func ParseFilenameTags(path string) []string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	i := strings.Index(name, "__")
	if i < 0 {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(name[i+2:], "_") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ExtractBody returns everything strictly after the first blank line (a line
// is blank when it trims to empty). A file without a blank line has no
// metadata stanza and is returned whole. Never errors on content.
func ExtractBody(data []byte) string {
	rest := data
	for len(rest) > 0 {
		var line []byte
		if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
			line = rest[:nl]
			rest = rest[nl+1:]
		} else {
			line = rest
			rest = nil
		}
		if len(bytes.TrimSpace(line)) == 0 {
			return string(rest)
		}
	}
	return string(data)
}

// frontmatterTitle resolves the in-file title for the flavor, or "" when the
// file does not declare one.
func frontmatterTitle(flavor models.Flavor, data []byte) string {
	switch flavor {
	case models.FlavorOrg:
		return keywordValue(data, "#+title:")
	case models.FlavorText:
		return keywordValue(data, "title:")
	case models.FlavorMarkdown:
		fm, _ := splitFrontmatter(data)
		if fm != nil {
			if t, ok := fm["title"].(string); ok {
				return t
			}
		}
	}
	return ""
}

// keywordValue scans the metadata stanza (the lines above the first blank
// line) for a "key: value" line and returns the trimmed value. The key match
// is case-insensitive.
func keywordValue(data []byte, key string) string {
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			break
		}
		if len(line) >= len(key) && strings.EqualFold(line[:len(key)], key) {
			return strings.TrimSpace(line[len(key):])
		}
	}
	return ""
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from a Markdown body. Missing or invalid frontmatter yields nil and the
// whole content as body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}

	return fm, body
}

// extractTags merges filename tags with the flavor's in-file tag field,
// filename tags first, deduplicated in encounter order.
func extractTags(flavor models.Flavor, path string, data []byte) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range ParseFilenameTags(path) {
		add(t)
	}

	switch flavor {
	case models.FlavorOrg:
		// #+filetags: :tag1:tag2:
		for _, t := range strings.Split(keywordValue(data, "#+filetags:"), ":") {
			add(t)
		}
	case models.FlavorMarkdown:
		fm, _ := splitFrontmatter(data)
		if fm == nil {
			break
		}
		if raw, ok := fm["tags"].([]interface{}); ok {
			for _, item := range raw {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
	}

	return out
}

// extractLinkIDs returns the deduplicated identifiers referenced by links
// anywhere in the content. The whole file is scanned, not just the body, so
// the backlink index never misses a reference the rewriter would touch.
func extractLinkIDs(content string, flavor models.Flavor) ([]string, error) {
	re, err := markup.LinkPattern(flavor)
	if err != nil {
		return nil, err
	}
	matches := re.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		id := m[1]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
