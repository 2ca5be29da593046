package rules

import (
	"strings"

	"main/entity"
)

// Input is one observation to classify.
type Input struct {
	AppName     string
	WindowTitle string
	URL         string
}

// Classify assigns a category with strict precedence, first match wins:
// custom rules with an exact application match, custom rules with a partial
// application match, built-in productive domains, built-in distracting
// domains, host keyword heuristics, then neutral. It is a pure function of
// the input and the snapshot; snap may be nil when no rules ever loaded.
func Classify(in Input, snap *Snapshot) entity.Category {
	if snap != nil {
		if cat, ok := matchTier(in, snap, appExact); ok {
			return cat
		}
		if cat, ok := matchTier(in, snap, appPartial); ok {
			return cat
		}
	}

	host := entity.URLHost(in.URL)
	if host != "" {
		if hostContainsAny(host, productiveDomains) {
			return entity.CategoryProductive
		}
		if hostContainsAny(host, distractingDomains) {
			return entity.CategoryDistracting
		}
		if hostContainsAny(host, productiveHostKeywords) {
			return entity.CategoryProductive
		}
		if hostContainsAny(host, distractingHostKeywords) {
			return entity.CategoryDistracting
		}
	}

	return entity.CategoryNeutral
}

func appExact(pattern, appName string) bool {
	return pattern != "" && pattern == appName
}

// appPartial also admits rules without an application pattern, so a bare
// URL or title rule still applies to every application.
func appPartial(pattern, appName string) bool {
	if pattern == "" {
		return true
	}
	p := strings.ToLower(pattern)
	a := strings.ToLower(appName)
	return strings.Contains(a, p) || strings.Contains(p, a)
}

// matchTier checks the rules admitted by appMatch in order: URL pattern
// first, then window title, then application-level rules with no pattern
// at all.
func matchTier(in Input, snap *Snapshot, appMatch func(pattern, appName string) bool) (entity.Category, bool) {
	host := entity.URLHost(in.URL)
	title := strings.ToLower(in.WindowTitle)

	var tier []entity.CategoryRule
	for _, rule := range snap.Rules {
		if appMatch(rule.AppPattern, in.AppName) {
			tier = append(tier, rule)
		}
	}
	if len(tier) == 0 {
		return "", false
	}

	for _, rule := range tier {
		if rule.URLPattern == "" || host == "" {
			continue
		}
		if strings.Contains(host, strings.ToLower(rule.URLPattern)) {
			if cat, ok := resolveCategory(snap, rule.CategoryID); ok {
				return cat, true
			}
		}
	}
	for _, rule := range tier {
		if rule.TitlePattern == "" || in.WindowTitle == "" {
			continue
		}
		if strings.Contains(title, strings.ToLower(rule.TitlePattern)) {
			if cat, ok := resolveCategory(snap, rule.CategoryID); ok {
				return cat, true
			}
		}
	}
	for _, rule := range tier {
		if rule.AppPattern != "" && rule.URLPattern == "" && rule.TitlePattern == "" {
			if cat, ok := resolveCategory(snap, rule.CategoryID); ok {
				return cat, true
			}
		}
	}
	return "", false
}

// resolveCategory maps a rule's category id through the snapshot. Rules
// pointing at a category missing from the snapshot are skipped rather than
// failing the whole classification.
func resolveCategory(snap *Snapshot, id int64) (entity.Category, bool) {
	info, ok := snap.Categories[id]
	if !ok {
		return "", false
	}
	return entity.Category(info.Name), true
}

func hostContainsAny(host string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(host, needle) {
			return true
		}
	}
	return false
}
