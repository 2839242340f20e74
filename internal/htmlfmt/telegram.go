// Package htmlfmt converts the small HTML dialect bot handlers write into
// what each messaging platform accepts.
package htmlfmt

import (
	"regexp"
	"strings"
)

var (
	escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

	escapedTagRe = regexp.MustCompile(`&lt;(/)?([a-zA-Z0-9]+)([^&]*?)&gt;`)
	hrefAttrRe   = regexp.MustCompile(`(?i)^href=("[^"]*"|'[^']*')$`)
	spoilerRe    = regexp.MustCompile(`(?i)^class=("tg-spoiler"|'tg-spoiler')$`)

	telegramSimpleTags = map[string]bool{
		"b": true, "strong": true, "i": true, "em": true, "u": true,
		"s": true, "strike": true, "del": true, "code": true, "pre": true,
	}
)

type tagToken struct {
	text    string // set for text runs
	raw     string
	name    string
	closing bool
	allowed bool
	restore bool
	href    string
	spoiler bool
}

// TelegramHTML escapes input for parse_mode HTML, restoring only balanced
// pairs of the tags Telegram understands. Anything else, including an
// unmatched allowed tag, stays escaped.
func TelegramHTML(input string) string {
	if input == "" {
		return input
	}
	escaped := escaper.Replace(input)

	var tokens []tagToken
	last := 0
	for _, m := range escapedTagRe.FindAllStringSubmatchIndex(escaped, -1) {
		if m[0] > last {
			tokens = append(tokens, tagToken{text: escaped[last:m[0]]})
		}
		t := tagToken{
			raw:     escaped[m[0]:m[1]],
			closing: m[2] >= 0,
			name:    strings.ToLower(escaped[m[4]:m[5]]),
		}
		attr := strings.TrimSpace(escaped[m[6]:m[7]])
		switch {
		case t.closing:
			t.allowed = attr == "" && (telegramSimpleTags[t.name] || t.name == "a" || t.name == "span")
		case telegramSimpleTags[t.name]:
			t.allowed = attr == ""
		case t.name == "a":
			if hm := hrefAttrRe.FindStringSubmatch(attr); hm != nil {
				t.allowed = true
				t.href = hm[1]
			}
		case t.name == "span":
			t.spoiler = spoilerRe.MatchString(attr)
			t.allowed = t.spoiler
		}
		tokens = append(tokens, t)
		last = m[1]
	}
	if last < len(escaped) {
		tokens = append(tokens, tagToken{text: escaped[last:]})
	}

	var stack []int
	for i := range tokens {
		t := &tokens[i]
		if t.raw == "" || !t.allowed {
			continue
		}
		if !t.closing {
			stack = append(stack, i)
			continue
		}
		if n := len(stack); n > 0 && tokens[stack[n-1]].name == t.name {
			tokens[stack[n-1]].restore = true
			t.restore = true
			stack = stack[:n-1]
		}
	}

	var b strings.Builder
	for _, t := range tokens {
		switch {
		case t.raw == "":
			b.WriteString(t.text)
		case !t.restore:
			b.WriteString(t.raw)
		case t.closing:
			b.WriteString("</" + t.name + ">")
		case t.name == "a":
			b.WriteString("<a href=" + t.href + ">")
		case t.name == "span":
			b.WriteString(`<span class="tg-spoiler">`)
		default:
			b.WriteString("<" + t.name + ">")
		}
	}
	return b.String()
}
