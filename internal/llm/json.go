package llm

import (
	"regexp"
	"strings"
)

var (
	thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fenceOpen = regexp.MustCompile("^```[a-zA-Z0-9_-]*\\s*\n?")
)

// StripCodeFence removes reasoning tags and a code fence wrapping the whole reply.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(thinkTags.ReplaceAllString(s, ""))
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = fenceOpen.ReplaceAllString(s, "")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
