package votes

import (
	"fmt"
	"io"
	"regexp"
	"strconv"

	"golang.org/x/net/html"
)

var votesPattern = regexp.MustCompile(`from\s+(\d+)\s+votes?`)

// ExtractVotes parses a route page and returns the count from the first text node in
// <body> that reads like "from 12 votes".
func ExtractVotes(r io.Reader) (int, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return 0, fmt.Errorf("votes: failed to parse html: %w", err)
	}

	body := findElement(doc, "body")
	if body == nil {
		return 0, ErrVotesNotFound
	}

	var match []string
	walkText(body, func(text string) bool {
		match = votesPattern.FindStringSubmatch(text)
		return match != nil
	})
	if match == nil {
		return 0, ErrVotesNotFound
	}

	votes, err := strconv.ParseUint(match[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q out of range", ErrVotesNotFound, match[1])
	}
	return int(votes), nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// walkText visits text nodes in document order until visit returns true.
func walkText(n *html.Node, visit func(string) bool) bool {
	if n.Type == html.TextNode {
		return visit(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if walkText(c, visit) {
			return true
		}
	}
	return false
}
