// Package selectors holds the CSS selectors used to read a rendered timeline.
package selectors

import (
	"regexp"
	"strings"
)

// Set contains CSS selectors for one site. Item is matched against the whole
// document, every other selector is matched inside an item.
type Set struct {
	Item      string
	Author    string
	Text      string
	Media     string
	Image     string
	Time      string
	Permalink string

	Reply    string
	Repost   string
	Like     string
	Bookmark string
	Views    string
}

// Twitter returns the selectors for twitter.com and x.com status pages
func Twitter() Set {
	return Set{
		Item:      `article[data-testid="tweet"]`,
		Author:    `[data-testid="User-Name"] a`,
		Text:      `[data-testid="tweetText"]`,
		Media:     `[data-testid="tweetPhoto"], [data-testid="tweetVideo"]`,
		Image:     `[data-testid="tweetPhoto"] img`,
		Time:      `time`,
		Permalink: `a[href*="/status/"]`,
		Reply:     `[data-testid="reply"]`,
		Repost:    `[data-testid="retweet"]`,
		Like:      `[data-testid="like"]`,
		Bookmark:  `[data-testid="bookmark"]`,
		Views:     `a[href$="/analytics"]`,
	}
}

// HandleFromHref returns the account name of a profile link such as "/alice" or
// "https://x.com/alice", empty when href is not a profile link
func HandleFromHref(href string) string {
	href = strings.TrimPrefix(href, "https://")
	href = strings.TrimPrefix(href, "http://")
	for _, host := range []string{"twitter.com", "x.com", "mobile.twitter.com", "www.twitter.com", "www.x.com"} {
		if strings.HasPrefix(href, host+"/") {
			href = href[len(host):]
			break
		}
	}
	href = strings.TrimPrefix(href, "/")
	if i := strings.IndexAny(href, "/?#"); i >= 0 {
		href = href[:i]
	}
	return href
}

var statusID = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// StatusID extracts the numeric id of a status URL or permalink
func StatusID(u string) string {
	if m := statusID.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return ""
}
