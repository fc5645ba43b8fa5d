// Package sanitize neutralizes injection vectors in agent-authored
// text before it is published. Everything here runs strictly before
// tracking markers are appended, so user text can never forge a
// system marker: any comment syntax it contains is gone by the time
// the real marker is added.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	reHTMLComments = regexp.MustCompile(`<!--[\s\S]*?-->`)

	reInvisible  = regexp.MustCompile("[\u200B\u200C\u200D\uFEFF]")
	reControl    = regexp.MustCompile("[\u0000-\u0008\u000B\u000C\u000E-\u001F\u007F-\u009F]")
	reSoftHyphen = regexp.MustCompile("\u00AD")
	reBidi       = regexp.MustCompile("[\u202A-\u202E\u2066-\u2069]")

	// Tags that can execute, hide, or restyle content. Neutralized to
	// a literal parenthesized name so the author's intent stays
	// legible without the markup being live.
	reUnsafeTag = regexp.MustCompile(`(?i)<\s*/?\s*(script|style|iframe|frame|frameset|object|embed|applet|form|input|button|textarea|select|option|link|meta|base|body|head|html|svg|math|noscript)\b[^>]*>`)
	reTagName   = regexp.MustCompile(`(?i)[a-z][a-z0-9]*`)

	// An @mention: start of text or a non-word, non-backtick boundary,
	// then @ and a platform-shaped login.
	reMention = regexp.MustCompile("(^|[^\\w`@])@([a-zA-Z0-9](?:[a-zA-Z0-9-]{0,37}[a-zA-Z0-9])?)")

	reURL = regexp.MustCompile(`(?i)https?://[^\s<>)\]"']+`)

	reTokenClassic      = regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`)
	reTokenOAuth        = regexp.MustCompile(`\bgho_[A-Za-z0-9]{36}\b`)
	reTokenInstallation = regexp.MustCompile(`\bghs_[A-Za-z0-9]{36}\b`)
	reTokenRefresh      = regexp.MustCompile(`\bghr_[A-Za-z0-9]{36}\b`)
	reTokenFineGrained  = regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{11,221}\b`)
)

// Sanitizer holds the allow/deny policy applied to free text. The
// zero value neutralizes every mention and redacts nothing by domain.
type Sanitizer struct {
	allowedMentions map[string]bool
	badDomains      []string
}

// New builds a sanitizer. allowedMentions are logins that may be
// notified; badDomains are link hosts (including subdomains) to
// redact.
func New(allowedMentions, badDomains []string) *Sanitizer {
	allowed := make(map[string]bool, len(allowedMentions))
	for _, m := range allowedMentions {
		allowed[strings.ToLower(strings.TrimPrefix(m, "@"))] = true
	}
	domains := make([]string, 0, len(badDomains))
	for _, d := range badDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &Sanitizer{allowedMentions: allowed, badDomains: domains}
}

// Sanitize applies the full cleaning pipeline to untrusted text.
func (s *Sanitizer) Sanitize(text string) string {
	if text == "" {
		return text
	}
	text = StripHTMLComments(text)
	text = StripInvisibleCharacters(text)
	text = NeutralizeTags(text)
	text = s.neutralizeMentions(text)
	text = s.redactBadLinks(text)
	text = RedactTokens(text)
	return strings.TrimSpace(text)
}

// StripHTMLComments removes HTML/XML comments from user-authored text.
// They could forge tracking markers or smuggle hidden instructions.
func StripHTMLComments(s string) string {
	return reHTMLComments.ReplaceAllString(s, "")
}

// StripInvisibleCharacters removes zero-width, control, soft hyphen
// and bidi override characters.
func StripInvisibleCharacters(s string) string {
	s = reInvisible.ReplaceAllString(s, "")
	s = reControl.ReplaceAllString(s, "")
	s = reSoftHyphen.ReplaceAllString(s, "")
	s = reBidi.ReplaceAllString(s, "")
	return s
}

// NeutralizeTags rewrites executable or structural markup tags as
// literal parenthesized tag names: "<script>" becomes "(script)".
func NeutralizeTags(s string) string {
	return reUnsafeTag.ReplaceAllStringFunc(s, func(tag string) string {
		name := reTagName.FindString(tag)
		return "(" + strings.ToLower(name) + ")"
	})
}

func (s *Sanitizer) neutralizeMentions(text string) string {
	return reMention.ReplaceAllStringFunc(text, func(match string) string {
		sub := reMention.FindStringSubmatch(match)
		prefix, login := sub[1], sub[2]
		if s.allowedMentions[strings.ToLower(login)] {
			return match
		}
		// Inert code-span form; cannot trigger a notification.
		return prefix + "`@" + login + "`"
	})
}

func (s *Sanitizer) redactBadLinks(text string) string {
	if len(s.badDomains) == 0 {
		return text
	}
	return reURL.ReplaceAllStringFunc(text, func(raw string) string {
		host := urlHost(raw)
		for _, bad := range s.badDomains {
			if host == bad || strings.HasSuffix(host, "."+bad) {
				return "(redacted)"
			}
		}
		return raw
	})
}

func urlHost(raw string) string {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	for _, sep := range []string{"/", "?", "#", ":"} {
		if i := strings.Index(rest, sep); i >= 0 {
			rest = rest[:i]
		}
	}
	return strings.ToLower(rest)
}

// RedactTokens censors GitHub token-shaped strings.
func RedactTokens(s string) string {
	s = reTokenClassic.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = reTokenOAuth.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = reTokenInstallation.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = reTokenRefresh.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = reTokenFineGrained.ReplaceAllString(s, "[REDACTED_TOKEN]")
	return s
}

// CountMentionTokens reports how many live mention tokens a sanitized
// or composed text still carries. Shared with the constraint layer so
// both use one grammar.
func CountMentionTokens(text string) int {
	matches := reMention.FindAllStringSubmatch(text, -1)
	count := 0
	for _, m := range matches {
		if validMentionLogin(m[2]) {
			count++
		}
	}
	return count
}

func validMentionLogin(login string) bool {
	if login == "" {
		return false
	}
	// An all-digit tail is issue-reference noise, not a login.
	for _, r := range login {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}

// MentionPattern exposes the mention grammar for callers that need to
// scan rather than rewrite.
func MentionPattern() *regexp.Regexp { return reMention }
