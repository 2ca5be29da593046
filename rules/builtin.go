package rules

// Built-in domain lists, consulted only after the user's own rules.

var productiveDomains = []string{
	"github.com",
	"gitlab.com",
	"bitbucket.org",
	"stackoverflow.com",
	"stackexchange.com",
	"developer.mozilla.org",
	"pkg.go.dev",
	"readthedocs.io",
	"atlassian.net",
	"jira.com",
	"trello.com",
	"notion.so",
	"linear.app",
	"figma.com",
	"leetcode.com",
}

var distractingDomains = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"tiktok.com",
	"youtube.com",
	"netflix.com",
	"twitch.tv",
	"reddit.com",
	"9gag.com",
	"hulu.com",
	"disneyplus.com",
	"primevideo.com",
	"pinterest.com",
}

// Keyword fallback on the host, weaker than the domain lists.

var productiveHostKeywords = []string{"mail.", "calendar.", "docs.", "drive."}

var distractingHostKeywords = []string{"news.", "video.", "play.", "game."}
