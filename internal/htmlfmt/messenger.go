package htmlfmt

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	brRe         = regexp.MustCompile(`(?i)<br\s*/?>`)
	boldRe       = regexp.MustCompile(`(?i)<b>(.*?)</b>`)
	headingRe    = regexp.MustCompile(`(?i)<h[1-6]>(.*?)</h[1-6]>`)
	underlineRe  = regexp.MustCompile(`(?i)<u>(.*?)</u>`)
	blockCloseRe = regexp.MustCompile(`(?i)</(div|p)>`)
	blockOpenRe  = regexp.MustCompile(`(?i)<(div|p)[^>]*>`)
	spanRe       = regexp.MustCompile(`(?i)<span[^>]*>(.*?)</span>`)
	ulRe         = regexp.MustCompile(`(?is)<ul>(.*?)</ul>`)
	olRe         = regexp.MustCompile(`(?is)<ol>(.*?)</ol>`)
	liRe         = regexp.MustCompile(`(?is)<li>(.*?)</li>`)
)

// Messenger converts HTML to the markdown-ish text Facebook Messenger shows.
func Messenger(s string) string {
	s = brRe.ReplaceAllString(s, "\n")
	s = boldRe.ReplaceAllString(s, "*$1*")
	s = headingRe.ReplaceAllString(s, "*$1*")
	s = underlineRe.ReplaceAllString(s, "_${1}_")
	s = blockCloseRe.ReplaceAllString(s, "\n")
	s = blockOpenRe.ReplaceAllString(s, "")
	s = spanRe.ReplaceAllString(s, "$1")
	s = listItems(ulRe, s, func(int) string { return "* " })
	s = listItems(olRe, s, func(i int) string { return fmt.Sprintf("%d. ", i+1) })
	s = inlineLinks(s)
	return strings.TrimSpace(s)
}

func listItems(list *regexp.Regexp, s string, bullet func(int) string) string {
	return list.ReplaceAllStringFunc(s, func(m string) string {
		inner := list.FindStringSubmatch(m)[1]
		items := liRe.FindAllStringSubmatch(inner, -1)
		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = bullet(i) + strings.TrimSpace(item[1])
		}
		return strings.Join(lines, "\n")
	})
}
