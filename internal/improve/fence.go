package improve

import (
	"regexp"
	"strings"
)

var fenceBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \t]*\n?(.*?)```")

// Strip extracts the body of the first fenced block, or failing that drops
// any stray fence delimiter lines. Models decorate replies with fences no
// matter how firmly the prompt forbids them.
func Strip(s string) string {
	if m := fenceBlock.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
