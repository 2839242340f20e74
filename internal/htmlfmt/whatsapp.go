package htmlfmt

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	waBoldRe   = regexp.MustCompile(`(?i)<(?:b|strong)>(.*?)</(?:b|strong)>`)
	waItalicRe = regexp.MustCompile(`(?i)<(?:i|em|u)>(.*?)</(?:i|em|u)>`)
	waStrikeRe = regexp.MustCompile(`(?i)<(?:s|strike|del)>(.*?)</(?:s|strike|del)>`)
	waCodeRe   = regexp.MustCompile(`(?is)<(?:code|pre)>(.*?)</(?:code|pre)>`)
	anyTagRe   = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// WhatsApp converts HTML to WhatsApp's inline markup. Tags WhatsApp has no
// markup for are dropped.
func WhatsApp(s string) string {
	s = brRe.ReplaceAllString(s, "\n")
	s = waBoldRe.ReplaceAllString(s, "*$1*")
	s = headingRe.ReplaceAllString(s, "*$1*")
	s = waItalicRe.ReplaceAllString(s, "_${1}_")
	s = waStrikeRe.ReplaceAllString(s, "~$1~")
	s = waCodeRe.ReplaceAllString(s, "```$1```")
	s = blockCloseRe.ReplaceAllString(s, "\n")
	s = listItems(ulRe, s, func(int) string { return "* " })
	s = listItems(olRe, s, func(i int) string { return fmt.Sprintf("%d. ", i+1) })
	s = inlineLinks(s)
	s = anyTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
