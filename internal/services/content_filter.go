package services

import (
	"regexp"
	"sync"
)

var bannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "shitty", "bullshit",
	"ass", "asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "chink", "spic", "kike", "faggot", "fag",
	"retard", "retarded", "tranny",
	"porn", "porno", "nude", "nudes",
	"spam", "scam", "scammer", "phishing", "malware",
}

// ContentFilter is a regex heuristic over report text: banned vocabulary,
// links, contact info and shouting. It backs the local scoring oracle when
// no external scoring service is configured.
type ContentFilter struct {
	bannedWordRegexps   []*regexp.Regexp
	urlPattern          *regexp.Regexp
	emailPattern        *regexp.Regexp
	phonePattern        *regexp.Regexp
	repeatedCharPattern *regexp.Regexp
	allCapsPattern      *regexp.Regexp
	compiled            bool
	mu                  sync.RWMutex
}

func NewContentFilter() *ContentFilter {
	f := &ContentFilter{}
	f.compilePatterns()
	return f
}

func (f *ContentFilter) compilePatterns() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.compiled {
		return
	}

	f.bannedWordRegexps = make([]*regexp.Regexp, 0, len(bannedWords))
	for _, word := range bannedWords {
		pattern := `(?i)\b` + regexp.QuoteMeta(word) + `\b`
		re, err := regexp.Compile(pattern)
		if err == nil {
			f.bannedWordRegexps = append(f.bannedWordRegexps, re)
		}
	}

	f.urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+\.\S+)`)
	f.emailPattern = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	f.phonePattern = regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}|\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`)
	f.repeatedCharPattern = regexp.MustCompile(`(?i)(a{4,}|b{4,}|c{4,}|d{4,}|e{4,}|f{4,}|g{4,}|h{4,}|i{4,}|j{4,}|k{4,}|l{4,}|m{4,}|n{4,}|o{4,}|p{4,}|q{4,}|r{4,}|s{4,}|t{4,}|u{4,}|v{4,}|w{4,}|x{4,}|y{4,}|z{4,}|!{4,}|\?{4,}|\.{4,})`)
	f.allCapsPattern = regexp.MustCompile(`[A-Z]{5,}`)
	f.compiled = true
}

// Flags returned by Check, strongest signal first.
const (
	FlagProfanity   = "inappropriate_language"
	FlagURL         = "url_not_allowed"
	FlagContactInfo = "contact_info_not_allowed"
	FlagSpam        = "spam_detected"
	FlagCaps        = "excessive_caps"
)

// Check returns whether the text is clean, and the first flag hit if not.
func (f *ContentFilter) Check(text string) (bool, string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if text == "" {
		return true, ""
	}
	for _, re := range f.bannedWordRegexps {
		if re.MatchString(text) {
			return false, FlagProfanity
		}
	}
	if f.urlPattern.MatchString(text) {
		return false, FlagURL
	}
	if f.emailPattern.MatchString(text) {
		return false, FlagContactInfo
	}
	if f.phonePattern.MatchString(text) {
		return false, FlagContactInfo
	}
	if f.repeatedCharPattern.MatchString(text) {
		return false, FlagSpam
	}
	capsMatches := f.allCapsPattern.FindAllString(text, -1)
	if len(capsMatches) > 2 {
		return false, FlagCaps
	}
	return true, ""
}

func (f *ContentFilter) ContainsProfanity(text string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, re := range f.bannedWordRegexps {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
