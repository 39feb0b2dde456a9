package render

import (
	"html"
	"net/url"
	"strings"
)

// EmbedURL converts a YouTube or Vimeo page URL into its player URL. Other
// URLs are returned unchanged with ok false.
func EmbedURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")

	switch host {
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); path == "watch" && id != "" {
			return "https://www.youtube.com/embed/" + url.PathEscape(id), true
		}
		if strings.HasPrefix(path, "embed/") {
			return u.String(), true
		}
	case "youtu.be":
		if path != "" && !strings.Contains(path, "/") {
			return "https://www.youtube.com/embed/" + url.PathEscape(path), true
		}
	case "vimeo.com":
		if path != "" && isDigits(path) {
			return "https://player.vimeo.com/video/" + path, true
		}
	case "player.vimeo.com":
		return u.String(), true
	}
	return raw, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// attrURL escapes u for an HTML attribute, replacing script and other
// non-web schemes with "#".
func attrURL(u string) string {
	u = strings.TrimSpace(u)
	if p, err := url.Parse(u); err != nil {
		return "#"
	} else if p.Scheme != "" && p.Scheme != "http" && p.Scheme != "https" {
		return "#"
	}
	return html.EscapeString(u)
}
