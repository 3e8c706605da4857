package hsds

import (
	"strings"
)

// ParseListing extracts bare file names from hsls output.
//
// A line is an entry when it has at least five whitespace-separated tokens
// and its second token is "domain" (any case); folders and headers are
// skipped. The last token is the remote path, stripped of rootPrefix. Only
// names ending in suffix (any case) are returned, in listing order.
func ParseListing(output, rootPrefix, suffix string) []string {
	suffix = strings.ToLower(suffix)
	var names []string
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) < 5 || !strings.EqualFold(tokens[1], "domain") {
			continue
		}
		name := strings.TrimPrefix(tokens[len(tokens)-1], rootPrefix)
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			names = append(names, name)
		}
	}
	return names
}
