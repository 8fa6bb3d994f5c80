package patterns

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RolePattern matches emails that belong to a configured role, e.g.
// "Treasurer" mail for the church account.
type RolePattern struct {
	Role            string   `yaml:"role"`
	Senders         []string `yaml:"senders"`
	SubjectKeywords []string `yaml:"subject_keywords"`
	Labels          []string `yaml:"labels"`
}

// AccountPatterns is the per-account section of the pattern file.
type AccountPatterns struct {
	VIPSenders []string      `yaml:"vip_senders"`
	Roles      []RolePattern `yaml:"roles"`
}

type fileFormat struct {
	Accounts          map[string]AccountPatterns `yaml:"accounts"`
	ActionPatterns    []string                   `yaml:"action_patterns"`
	ExclusionPatterns []string                   `yaml:"exclusion_patterns"`
	SensitiveDomains  []string                   `yaml:"sensitive_domains"`
	SensitiveLabels   []string                   `yaml:"sensitive_labels"`
}

// CompiledPattern keeps the raw pattern next to its compiled form so
// matches can be reported by source pattern.
type CompiledPattern struct {
	Raw string
	Re  *regexp.Regexp
}

// Library is the global, read-mostly pattern set. Reload swaps the
// whole snapshot atomically.
type Library struct {
	mu sync.RWMutex

	path              string
	accounts          map[string]AccountPatterns
	actionPatterns    []CompiledPattern
	exclusionPatterns []CompiledPattern
	sensitiveDomains  []string
	sensitiveLabels   []string
}

// Load reads and compiles the pattern file. An invalid regex fails the
// whole load with the offending pattern named.
func Load(path string) (*Library, error) {
	lib := &Library{path: path}
	if err := lib.Reload(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Reload re-reads the pattern file and swaps the snapshot.
func (l *Library) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("failed to read pattern file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse pattern file: %w", err)
	}

	action, err := compileAll(f.ActionPatterns)
	if err != nil {
		return err
	}
	exclusion, err := compileAll(f.ExclusionPatterns)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = f.Accounts
	l.actionPatterns = action
	l.exclusionPatterns = exclusion
	l.sensitiveDomains = lowerAll(f.SensitiveDomains)
	l.sensitiveLabels = lowerAll(f.SensitiveLabels)
	return nil
}

func compileAll(raw []string) ([]CompiledPattern, error) {
	out := make([]CompiledPattern, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, CompiledPattern{Raw: p, Re: re})
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

// VIPSenders returns the VIP sender list for an account.
func (l *Library) VIPSenders(account string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[account].VIPSenders
}

// Roles returns the role pattern set for an account.
func (l *Library) Roles(account string) []RolePattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[account].Roles
}

// FirstActionMatch returns the first action-required pattern matching
// the text, or "" when none match.
func (l *Library) FirstActionMatch(text string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.actionPatterns {
		if p.Re.MatchString(text) {
			return p.Raw
		}
	}
	return ""
}

// FirstExclusionMatch returns the first soft-exclusion pattern
// matching the text, or "" when none match. Exclusion wins over
// inclusion in the regex tier.
func (l *Library) FirstExclusionMatch(text string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.exclusionPatterns {
		if p.Re.MatchString(text) {
			return p.Raw
		}
	}
	return ""
}

// IsSensitiveDomain reports whether the sender's domain is marked
// sensitive.
func (l *Library) IsSensitiveDomain(sender string) bool {
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(strings.TrimSuffix(sender[at+1:], ">"))

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, d := range l.sensitiveDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// HasSensitiveLabel reports whether any of the email's labels is
// marked sensitive.
func (l *Library) HasSensitiveLabel(labels []string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, label := range labels {
		lower := strings.ToLower(label)
		for _, s := range l.sensitiveLabels {
			if lower == s {
				return true
			}
		}
	}
	return false
}
