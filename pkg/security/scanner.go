package security

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/dukex/autograph/pkg/apperr"
	"github.com/dukex/autograph/pkg/models"
)

// Check names the independent policy checks.
type Check string

const (
	CheckDeniedNodeType Check = "denied_node_type"
	CheckLiteralSecret  Check = "literal_secret"
	CheckDeniedHost     Check = "denied_host"
)

// Finding is one policy violation.
type Finding struct {
	Check  Check  `json:"check"`
	Node   string `json:"node"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the scan verdict. Reason is the first finding's reason.
type Result struct {
	Safe     bool      `json:"safe"`
	Reason   string    `json:"reason,omitempty"`
	Findings []Finding `json:"findings,omitempty"`
}

var urlPattern = regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s"'<>]+`)

var expressionBlock = regexp.MustCompile(`(?s)\{\{.*?\}\}`)

// Scanner applies a Policy to graphs. It is safe for concurrent use.
type Scanner struct {
	policy      Policy
	deniedTypes map[string]struct{}
	deniedHosts []string
	patterns    []*regexp.Regexp
	keyNames    []string
}

// NewScanner compiles policy.
func NewScanner(policy Policy) (*Scanner, error) {
	if policy.EntropyThreshold <= 0 {
		policy.EntropyThreshold = defaultEntropyThreshold
	}

	if policy.EntropyMinLength <= 0 {
		policy.EntropyMinLength = defaultEntropyMinLength
	}

	s := &Scanner{
		policy:      policy,
		deniedTypes: make(map[string]struct{}, len(policy.DeniedNodeTypes)),
	}

	for _, nodeType := range policy.DeniedNodeTypes {
		s.deniedTypes[nodeType] = struct{}{}
	}

	for _, host := range policy.DeniedHosts {
		s.deniedHosts = append(s.deniedHosts, strings.TrimRight(strings.ToLower(strings.Trim(host, "[]")), "."))
	}

	for _, pattern := range policy.SecretPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid secret pattern %q: %w", pattern, err)
		}

		s.patterns = append(s.patterns, re)
	}

	for _, name := range policy.SecretKeyNames {
		s.keyNames = append(s.keyNames, normalizeKey(name))
	}

	return s, nil
}

// MustNewScanner is NewScanner that panics on an invalid policy.
func MustNewScanner(policy Policy) *Scanner {
	s, err := NewScanner(policy)
	if err != nil {
		panic(err)
	}

	return s
}

// Scan runs every check over graph and reports all findings.
func (s *Scanner) Scan(graph *models.AutomationGraph) Result {
	var findings []Finding

	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		base := fmt.Sprintf("nodes.%d", i)

		if _, denied := s.deniedTypes[node.Type]; denied {
			findings = append(findings, Finding{
				Check:  CheckDeniedNodeType,
				Node:   node.Name,
				Path:   base + ".type",
				Reason: fmt.Sprintf("node %q uses forbidden type %q", node.Name, node.Type),
			})
		}

		s.walk(node, base+".parameters", "", node.Parameters, &findings, false)
		s.walk(node, base+".credentials", "", node.Credentials, &findings, true)
	}

	result := Result{Safe: len(findings) == 0, Findings: findings}
	if !result.Safe {
		result.Reason = findings[0].Reason
	}

	return result
}

// Check returns a security policy violation when graph is unsafe.
func (s *Scanner) Check(graph *models.AutomationGraph) (Result, error) {
	result := s.Scan(graph)
	if result.Safe {
		return result, nil
	}

	violations := make([]apperr.Violation, 0, len(result.Findings))
	for _, f := range result.Findings {
		violations = append(violations, apperr.Violation{Path: f.Path, Message: f.Reason})
	}

	return result, &apperr.Error{
		Op:         "security.Check",
		Kind:       apperr.KindSecurityPolicy,
		Message:    result.Reason,
		Violations: violations,
	}
}

// walk visits every string reachable from value. Credential values only get the
// pattern check; a credential reference is an object, a matching literal is a leak.
func (s *Scanner) walk(node *models.Node, path, key string, value any, findings *[]Finding, credentials bool) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			s.walk(node, path+"."+k, k, v[k], findings, credentials)
		}
	case []any:
		for i, item := range v {
			s.walk(node, fmt.Sprintf("%s.%d", path, i), key, item, findings, credentials)
		}
	case string:
		if credentials {
			if s.matchesPattern(v) {
				*findings = append(*findings, s.secretFinding(node, path, "a literal secret instead of a credential reference"))
			}

			return
		}

		s.inspectString(node, path, key, v, findings)
	}
}

func (s *Scanner) inspectString(node *models.Node, path, key, value string, findings *[]Finding) {
	literal, expression := literalText(value)

	switch {
	case s.matchesPattern(value):
		*findings = append(*findings, s.secretFinding(node, path, "a value matching a known credential format"))
	case !expression && value != "" && s.isSecretKey(key):
		*findings = append(*findings, s.secretFinding(node, path, "a literal value under a secret-like key"))
	case s.highEntropy(literal):
		*findings = append(*findings, s.secretFinding(node, path, "a high-entropy token"))
	}

	for _, raw := range urlPattern.FindAllString(value, -1) {
		if host, denied := s.deniedURL(raw); denied {
			*findings = append(*findings, Finding{
				Check:  CheckDeniedHost,
				Node:   node.Name,
				Path:   path,
				Reason: fmt.Sprintf("node %q targets forbidden host %q at %s", node.Name, host, path),
			})
		}
	}
}

// literalText returns the text of value outside expression blocks. A value is an
// expression only when it starts with "=" and holds at least one {{ ... }} block.
func literalText(value string) (string, bool) {
	if !strings.HasPrefix(value, "=") || !expressionBlock.MatchString(value) {
		return value, false
	}

	return strings.TrimSpace(expressionBlock.ReplaceAllString(value[1:], "")), true
}

func (s *Scanner) secretFinding(node *models.Node, path, what string) Finding {
	return Finding{
		Check:  CheckLiteralSecret,
		Node:   node.Name,
		Path:   path,
		Reason: fmt.Sprintf("node %q has %s at %s; secrets must be supplied through credentials", node.Name, what, path),
	}
}

func (s *Scanner) matchesPattern(value string) bool {
	for _, re := range s.patterns {
		if re.MatchString(value) {
			return true
		}
	}

	return false
}

func (s *Scanner) isSecretKey(key string) bool {
	normalized := normalizeKey(key)
	if normalized == "" {
		return false
	}

	for _, name := range s.keyNames {
		if strings.HasSuffix(normalized, name) {
			return true
		}
	}

	return false
}

func (s *Scanner) highEntropy(value string) bool {
	if len(value) < s.policy.EntropyMinLength || strings.Contains(value, "://") {
		return false
	}

	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return false
	}

	return Entropy(value) >= s.policy.EntropyThreshold
}

func (s *Scanner) deniedURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimRight(raw, ".,;)"))
	if err != nil {
		return "", false
	}

	host := strings.TrimRight(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", false
	}

	ip := hostIP(host)

	for _, denied := range s.deniedHosts {
		if host == denied || strings.HasSuffix(host, "."+denied) {
			return host, true
		}

		if ip != nil && ip.Equal(net.ParseIP(denied)) {
			return host, true
		}
	}

	if s.policy.DenyPrivateNetworks && ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return host, true
		}
	}

	return "", false
}

// hostIP parses host as an IP address. Besides the canonical forms it accepts
// the shortened, decimal, octal and hex IPv4 spellings resolvers honor, such as
// 127.1, 2130706433 and 0x7f.0.0.1.
func hostIP(host string) net.IP {
	if zone := strings.IndexByte(host, '%'); zone >= 0 {
		host = host[:zone]
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip
	}

	parts := strings.Split(host, ".")
	if len(parts) > 4 {
		return nil
	}

	values := make([]uint64, len(parts))

	for i, part := range parts {
		if part == "" || part[0] < '0' || part[0] > '9' || strings.Contains(part, "_") {
			return nil
		}

		v, err := strconv.ParseUint(part, 0, 32)
		if err != nil {
			return nil
		}

		values[i] = v
	}

	// The last part fills every byte the leading parts leave.
	last := len(values) - 1
	if values[last] >= 1<<(8*(4-last)) {
		return nil
	}

	addr := values[last]

	for i, v := range values[:last] {
		if v > 255 {
			return nil
		}

		addr |= v << (8 * (3 - i))
	}

	return net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

// Entropy returns the Shannon entropy of s in bits per character.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}

	counts := make(map[rune]int)
	total := 0

	for _, r := range s {
		counts[r]++
		total++
	}

	var entropy float64

	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}

	return entropy
}

func normalizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			return -1
		}

		return unicode.ToLower(r)
	}, key)
}
