package merge

import "github.com/starford/gebo/internal/markup"

// RegionCommand describes one region-merge variant for surfaces that expose
// the format kinds as named operations.
type RegionCommand struct {
	Name  string
	Kind  markup.FormatKind
	Usage string
}

// RegionCommands lists the region-merge variants in a stable order.
func RegionCommands() []RegionCommand {
	return []RegionCommand{
		{Name: "plain", Kind: markup.KindPlain, Usage: "Move a region verbatim"},
		{Name: "indent", Kind: markup.KindPlainIndented, Usage: "Move a region, indenting continuation lines"},
		{Name: "src", Kind: markup.KindSrcBlock, Usage: "Move a region into an Org source block"},
		{Name: "quote", Kind: markup.KindQuoteBlock, Usage: "Move a region into an Org quote block"},
		{Name: "example", Kind: markup.KindExampleBlock, Usage: "Move a region into an Org example block"},
		{Name: "md-quote", Kind: markup.KindMarkdownQuote, Usage: "Move a region as a Markdown blockquote"},
		{Name: "md-fence", Kind: markup.KindMarkdownFence, Usage: "Move a region into a Markdown code fence"},
	}
}
