package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// GitignoreParser loads a project's .gitignore and answers whether a
// root-relative path should be excluded from indexing, matching git's own
// precedence: later rules override earlier ones, and a "!"-prefixed rule
// un-ignores a path an earlier rule matched.
type GitignoreParser struct {
	rules []ignoreRule

	// regexCache shares compiled regexes across rules with an identical
	// glob shape, since sibling .gitignore files in a large tree often
	// repeat the same handful of patterns.
	regexCache sync.Map
}

// ignoreRule is one compiled .gitignore line. match is built once, at
// parse time, so ShouldIgnore's hot path never re-inspects pattern text.
type ignoreRule struct {
	raw      string // pattern text with negation/directory/anchor markers stripped
	negate   bool
	dirOnly  bool
	anchored bool // pattern had a leading "/": match only at the root, not any depth
	match    func(path string) bool
}

// NewGitignoreParser creates a parser with no rules loaded.
func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads rules from rootPath's .gitignore file. A missing
// file is not an error — the project simply has no ignore rules.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	f, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()
	return gp.loadRules(f)
}

func (gp *GitignoreParser) loadRules(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.rules = append(gp.rules, gp.compileRule(line))
	}
	return scanner.Err()
}

// AddPattern registers one rule directly, bypassing file I/O.
func (gp *GitignoreParser) AddPattern(line string) {
	gp.rules = append(gp.rules, gp.compileRule(line))
}

// compileRule strips a pattern's negation/directory/anchor markers and
// builds its matcher closure.
func (gp *GitignoreParser) compileRule(line string) ignoreRule {
	var rule ignoreRule

	if strings.HasPrefix(line, "!") {
		rule.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		rule.anchored = true
		line = line[1:]
	}

	rule.raw = line
	rule.match = gp.buildMatcher(line)
	return rule
}

// buildMatcher picks the cheapest correct matcher for pattern: a plain
// string comparison for the exact/prefix/suffix shapes that cover most
// real .gitignore lines, falling back to a cached regex (or, failing
// that, filepath.Match) for anything more exotic.
func (gp *GitignoreParser) buildMatcher(pattern string) func(string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return func(path string) bool { return path == pattern }
	}

	if isPureAsteriskGlob(pattern) {
		if suffix, ok := trailingLiteral(pattern); ok {
			return func(path string) bool { return strings.HasSuffix(path, suffix) }
		}
		if prefix, ok := leadingLiteral(pattern); ok {
			return func(path string) bool { return strings.HasPrefix(path, prefix) }
		}
	}

	return gp.regexMatcher(pattern)
}

// isPureAsteriskGlob reports whether pattern's only glob metacharacter is
// "*" — the shape simple enough to match without a regex.
func isPureAsteriskGlob(pattern string) bool {
	return strings.Contains(pattern, "*") && !strings.ContainsAny(pattern, "?[")
}

// trailingLiteral extracts the literal suffix from a pattern like
// "*.log" (a single leading asterisk, nothing after it).
func trailingLiteral(pattern string) (string, bool) {
	if strings.HasPrefix(pattern, "*") && !strings.Contains(pattern[1:], "*") {
		return pattern[1:], true
	}
	return "", false
}

// leadingLiteral extracts the literal prefix from a pattern like "test*"
// (a single trailing asterisk, nothing before it).
func leadingLiteral(pattern string) (string, bool) {
	if strings.HasSuffix(pattern, "*") && !strings.Contains(pattern[:len(pattern)-1], "*") {
		return pattern[:len(pattern)-1], true
	}
	return "", false
}

func (gp *GitignoreParser) regexMatcher(pattern string) func(string) bool {
	src := globToRegex(pattern)

	if cached, ok := gp.regexCache.Load(src); ok {
		return cached.(*regexp.Regexp).MatchString
	}

	re, err := regexp.Compile(src)
	if err != nil {
		return func(path string) bool {
			matched, _ := filepath.Match(pattern, path)
			return matched
		}
	}
	gp.regexCache.Store(src, re)
	return re.MatchString
}

func globToRegex(pattern string) string {
	regex := regexp.QuoteMeta(pattern)
	regex = strings.ReplaceAll(regex, `\*`, `.*`)
	regex = strings.ReplaceAll(regex, `\?`, `.`)
	regex = strings.ReplaceAll(regex, `\[`, `[`)
	regex = strings.ReplaceAll(regex, `\]`, `]`)
	return "^" + regex + "$"
}

// ShouldIgnore reports whether path — relative to the project root —
// should be excluded from indexing.
func (gp *GitignoreParser) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	ignored := false
	for _, rule := range gp.rules {
		if gp.ruleMatches(rule, path, isDir) {
			ignored = !rule.negate
		}
	}
	return ignored
}

// ruleMatches applies one rule to path. Directory-only rules ignore the
// anchored flag entirely (git itself treats "build/" and "/build/"
// identically once the directory check below takes over); anchored
// file rules match only the full path, unanchored ones also match any
// trailing path segment.
func (gp *GitignoreParser) ruleMatches(rule ignoreRule, path string, isDir bool) bool {
	if rule.dirOnly {
		if isDir {
			return gp.matchesAsDirectory(rule, path)
		}
		return gp.matchesInsideDirectory(rule, path)
	}

	if rule.anchored {
		return rule.match(path)
	}
	if rule.match(path) {
		return true
	}
	segments := strings.Split(path, "/")
	for i := 1; i < len(segments); i++ {
		if rule.match(strings.Join(segments[i:], "/")) {
			return true
		}
	}
	return false
}

func (gp *GitignoreParser) matchesAsDirectory(rule ignoreRule, path string) bool {
	if rule.match(path) {
		return true
	}
	if strings.HasSuffix(rule.raw, "/**") {
		base := strings.TrimSuffix(rule.raw, "/**")
		return path == base || strings.HasPrefix(path, base+"/")
	}
	return false
}

func (gp *GitignoreParser) matchesInsideDirectory(rule ignoreRule, path string) bool {
	if strings.HasPrefix(path, rule.raw+"/") {
		return true
	}
	return rule.match(path)
}

// GetExclusionPatterns renders every non-negated rule as a doublestar
// glob the scanner's include/exclude matcher understands. Negated rules
// are dropped: un-ignoring a path from a plain exclude-list model (no
// layered override) would require re-deriving whatever earlier rule it
// was meant to override, which this simple conversion does not attempt.
func (gp *GitignoreParser) GetExclusionPatterns() []string {
	var patterns []string
	for _, rule := range gp.rules {
		if rule.negate {
			continue
		}
		if p := toDoublestarGlob(rule); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func toDoublestarGlob(rule ignoreRule) string {
	if rule.dirOnly {
		if rule.anchored {
			return rule.raw + "/**"
		}
		return "**/" + rule.raw + "/**"
	}
	if rule.anchored {
		return rule.raw
	}
	return "**/" + rule.raw
}
