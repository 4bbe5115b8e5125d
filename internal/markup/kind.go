package markup

import "github.com/starford/gebo/internal/models"

// FormatKind selects the structural template a merged region is wrapped in.
type FormatKind string

const (
	KindPlain         FormatKind = "plain"
	KindPlainIndented FormatKind = "plain-indented"
	KindSrcBlock      FormatKind = "src-block"
	KindQuoteBlock    FormatKind = "quote-block"
	KindExampleBlock  FormatKind = "example-block"
	KindMarkdownQuote FormatKind = "markdown-quote"
	KindMarkdownFence FormatKind = "markdown-fence"
)

// Kinds lists every recognized format kind, in a stable order.
func Kinds() []FormatKind {
	return []FormatKind{
		KindPlain,
		KindPlainIndented,
		KindSrcBlock,
		KindQuoteBlock,
		KindExampleBlock,
		KindMarkdownQuote,
		KindMarkdownFence,
	}
}

// ParseKind maps a string to a FormatKind. Values outside the recognized set
// fall back to KindPlain, which is valid for every flavor.
func ParseKind(s string) FormatKind {
	switch FormatKind(s) {
	case KindPlain, KindPlainIndented, KindSrcBlock, KindQuoteBlock,
		KindExampleBlock, KindMarkdownQuote, KindMarkdownFence:
		return FormatKind(s)
	default:
		return KindPlain
	}
}

// KindValidFor reports whether kind may be written into a note of the given
// flavor. The block kinds emit outline-markup delimiters and the markdown
// kinds emit Markdown syntax, so each is restricted to its own flavor; the
// plain kinds are valid everywhere.
func KindValidFor(kind FormatKind, flavor models.Flavor) bool {
	switch kind {
	case KindSrcBlock, KindQuoteBlock, KindExampleBlock:
		return flavor == models.FlavorOrg
	case KindMarkdownQuote, KindMarkdownFence:
		return flavor == models.FlavorMarkdown
	case KindPlain, KindPlainIndented:
		return flavor == models.FlavorOrg || flavor == models.FlavorMarkdown || flavor == models.FlavorText
	default:
		// Unknown kinds format as plain, so they share plain's legality.
		return flavor == models.FlavorOrg || flavor == models.FlavorMarkdown || flavor == models.FlavorText
	}
}
