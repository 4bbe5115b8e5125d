package merge

import (
	"strings"

	"github.com/starford/gebo/internal/markup"
	"github.com/starford/gebo/internal/models"
)

// RewriteIdentifier returns content with every link reference to oldID
// retargeted at newID, plus the number of replacements. Only the identifier
// capture inside each link match is spliced; brackets and descriptions are
// left byte-for-byte intact.
func RewriteIdentifier(content string, flavor models.Flavor, oldID, newID string) (string, int, error) {
	re, err := markup.LinkPattern(flavor)
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	last := 0
	count := 0
	for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
		start, end := m[2], m[3]
		if start < 0 || content[start:end] != oldID {
			continue
		}
		b.WriteString(content[last:start])
		b.WriteString(newID)
		last = end
		count++
	}
	if count == 0 {
		return content, 0, nil
	}
	b.WriteString(content[last:])
	return b.String(), count, nil
}
