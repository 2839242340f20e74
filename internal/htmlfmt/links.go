package htmlfmt

import (
	"regexp"
	"strings"
)

const quote = `["'“”‘’]`

var (
	mailtoRe  = regexp.MustCompile(`(?i)<a\s+href=` + quote + `(mailto:([^"'“”‘’?]+)(?:\?[^"'“”‘’]*)?)` + quote + `>(.*?)</a>`)
	webLinkRe = regexp.MustCompile(`(?i)<a\s+href=` + quote + `(https?://([^"'“”‘’]+))` + quote + `>(.*?)</a>`)
)

// inlineLinks rewrites anchors as plain text. A link whose text is its own
// target collapses to the target without the scheme; otherwise it renders
// as "text - target".
func inlineLinks(s string) string {
	s = mailtoRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := mailtoRe.FindStringSubmatch(m)
		email, text := sub[2], sub[3]
		if strings.EqualFold(text, email) {
			return email
		}
		return text + " - " + email
	})
	return webLinkRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := webLinkRe.FindStringSubmatch(m)
		target, text := sub[2], sub[3]
		if text == target || text == "http://"+target || text == "https://"+target {
			return target
		}
		return text + " - " + target
	})
}
