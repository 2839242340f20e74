package htmlfmt

import (
	"regexp"
	"strings"
)

var (
	videoRe = regexp.MustCompile(`(?is)<video\b([^>]*)>(?:(.*?)</video>)?`)
	srcRe   = regexp.MustCompile(`(?i)\bsrc\s*=\s*["']([^"']+)["']`)
)

// Video is a video tag found in a reply.
type Video struct {
	URL       string
	Remaining string
}

// ExtractVideo finds the first <video> element in text. The source comes
// from the element's src attribute or a nested <source>. The text around the
// element is trimmed and joined with a newline.
func ExtractVideo(text string) (Video, bool) {
	loc := videoRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Video{}, false
	}

	var src string
	if m := srcRe.FindStringSubmatch(text[loc[2]:loc[3]]); m != nil {
		src = m[1]
	} else if loc[4] >= 0 {
		if m := srcRe.FindStringSubmatch(text[loc[4]:loc[5]]); m != nil {
			src = m[1]
		}
	}
	if src == "" {
		return Video{}, false
	}

	var parts []string
	for _, p := range []string{text[:loc[0]], text[loc[1]:]} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return Video{URL: src, Remaining: strings.Join(parts, "\n")}, true
}
