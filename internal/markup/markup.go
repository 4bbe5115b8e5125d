// Package markup renders flavor-correct headings, inline links, and region
// blocks, and owns the link patterns the identifier rewriter matches against.
package markup

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/models"
)

// Link patterns per flavor. The identifier is always capture group 1 so the
// rewriter can splice a replacement in without touching the decoration
// around it.
var (
	orgLinkRe      = regexp.MustCompile(`\[\[note:(\d{8}T\d{6})(?:\]\[[^][]*)?\]\]`)
	markdownLinkRe = regexp.MustCompile(`\[[^][]*\]\(note:(\d{8}T\d{6})\)`)
)

// Annotate joins a configurable annotation prefix with a label. An empty
// prefix yields the label alone, with no stray separator.
func Annotate(prefix, label string) string {
	if prefix == "" {
		return label
	}
	return prefix + ": " + label
}

// Heading renders the block-opening heading inserted above merged content.
// Unsupported flavors are an error rather than a default: emitting the wrong
// heading syntax would corrupt the destination file.
func Heading(label string, flavor models.Flavor, prefix string) (string, error) {
	line := Annotate(prefix, label)
	switch flavor {
	case models.FlavorOrg:
		return "* " + line + "\n\n", nil
	case models.FlavorMarkdown:
		return "# " + line + "\n\n", nil
	case models.FlavorText:
		return line + "\n" + strings.Repeat("-", utf8.RuneCountInString(label)) + "\n", nil
	default:
		return "", fmt.Errorf("markup: heading for flavor %q: %w", flavor, apperr.ErrUnsupportedFlavor)
	}
}

// Link renders an inline link to the note with the given identifier. The
// flavor is the referencing note's flavor, since the link is embedded in that
// note's text. Org and text notes share the bracket syntax; an empty
// description renders the bare form there and falls back to the identifier
// for Markdown.
func Link(identifier, description string, flavor models.Flavor) (string, error) {
	switch flavor {
	case models.FlavorOrg, models.FlavorText:
		if description == "" {
			return "[[note:" + identifier + "]]", nil
		}
		return "[[note:" + identifier + "][" + description + "]]", nil
	case models.FlavorMarkdown:
		if description == "" {
			description = identifier
		}
		return "[" + description + "](note:" + identifier + ")", nil
	default:
		return "", fmt.Errorf("markup: link for flavor %q: %w", flavor, apperr.ErrUnsupportedFlavor)
	}
}

// LinkPattern returns the matcher for "link embedding a note identifier" in
// the given flavor, with the identifier as capture group 1.
func LinkPattern(flavor models.Flavor) (*regexp.Regexp, error) {
	switch flavor {
	case models.FlavorOrg, models.FlavorText:
		return orgLinkRe, nil
	case models.FlavorMarkdown:
		return markdownLinkRe, nil
	default:
		return nil, fmt.Errorf("markup: link pattern for flavor %q: %w", flavor, apperr.ErrUnsupportedFlavor)
	}
}

// FormatRegion wraps fragment in the structural template selected by kind.
// The annotation arrives fully rendered (prefix plus back-link); when empty
// no annotation line is emitted. The result always ends in a single trailing
// newline: one is appended when the fragment lacks it, never doubled.
// Unknown kinds format as plain, which is valid for every flavor.
func FormatRegion(fragment string, kind FormatKind, annotation string, indentWidth int) string {
	if !strings.HasSuffix(fragment, "\n") {
		fragment += "\n"
	}
	ann := ""
	if annotation != "" {
		ann = annotation + "\n"
	}

	switch kind {
	case KindPlainIndented:
		return ann + indentTail(fragment, indentWidth)
	case KindSrcBlock:
		return ann + "#+begin_src\n" + fragment + "#+end_src\n"
	case KindQuoteBlock:
		return ann + "#+begin_quote\n" + fragment + "#+end_quote\n"
	case KindExampleBlock:
		return ann + "#+begin_example\n" + fragment + "#+end_example\n"
	case KindMarkdownQuote:
		return quoteLines(ann + fragment)
	case KindMarkdownFence:
		return ann + "```\n" + fragment + "```\n"
	default:
		return ann + fragment
	}
}

// indentTail prefixes every line after the first with indentWidth spaces.
// The first line stays flush with the annotation above it and blank lines
// are left alone so no trailing whitespace is produced.
func indentTail(s string, width int) string {
	if width <= 0 {
		return s
	}
	indent := strings.Repeat(" ", width)
	var b strings.Builder
	for i, line := range strings.SplitAfter(s, "\n") {
		if i > 0 && line != "" && line != "\n" {
			b.WriteString(indent)
		}
		b.WriteString(line)
	}
	return b.String()
}

// quoteLines prefixes every line, annotation included, with the Markdown
// quote marker. Blank lines get a bare ">" to keep the block contiguous.
func quoteLines(s string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(s, "\n") {
		switch line {
		case "":
		case "\n":
			b.WriteString(">\n")
		default:
			b.WriteString("> ")
			b.WriteString(line)
		}
	}
	return b.String()
}
