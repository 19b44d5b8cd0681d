// Package htmlutil turns rich text stored by the admin dashboard into plain
// text suitable for chat replies and prompts.
package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// PlainText strips tags and decodes entities. Strings without markup are only
// trimmed.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html2text.HTML2Text(s))
}
