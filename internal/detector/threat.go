package detector

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"time"

	"github.com/networkbuster/aidefense/internal/models"
)

// maximum log lines inspected per file per scan
const threatScanTailLines = 100

// ThreatPattern is one known threat signature.
type ThreatPattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Confidence  float64
	Description string
}

// DefaultThreatPatterns returns the built-in signature set.
func DefaultThreatPatterns() []ThreatPattern {
	return []ThreatPattern{
		{
			Name:        "suspicious_file_access",
			Pattern:     regexp.MustCompile(`\.env|config\.json|secrets\.|private_key`),
			Confidence:  0.88,
			Description: "Access to sensitive configuration files",
		},
		{
			Name:        "unusual_network_activity",
			Pattern:     regexp.MustCompile(`(?i)(sql_injection|script|iframe|onload)`),
			Confidence:  0.88,
			Description: "Potential injection or XSS attempts",
		},
		{
			Name:        "brute_force_attempt",
			Pattern:     regexp.MustCompile(`(?i)(failed password|authentication failure)`),
			Confidence:  0.75,
			Description: "Multiple failed authentication attempts",
		},
		{
			Name:        "data_exfiltration",
			Pattern:     regexp.MustCompile(`(?i)(download|export|backup).*large_file`),
			Confidence:  0.88,
			Description: "Potential data exfiltration attempt",
		},
		{
			Name:        "privilege_escalation",
			Pattern:     regexp.MustCompile(`(?i)(sudo|admin|root|su)\b`),
			Confidence:  0.95,
			Description: "Attempted privilege escalation",
		},
	}
}

// ThreatDetector matches recent log lines against a signature set. Finding
// kinds are prefixed "threat_" so the response planner can route them.
type ThreatDetector struct {
	logPaths []string
	patterns []ThreatPattern

	// offsets of lines already reported, per file, to avoid re-reporting the
	// same tail on every scan
	reported map[string]int
}

func NewThreatDetector(logPaths []string) *ThreatDetector {
	return &ThreatDetector{
		logPaths: logPaths,
		patterns: DefaultThreatPatterns(),
		reported: make(map[string]int),
	}
}

func (d *ThreatDetector) Name() string {
	return "threat_analyzer"
}

// SetPatterns replaces the signature set. Used by tests and future dynamic
// pattern loading.
func (d *ThreatDetector) SetPatterns(patterns []ThreatPattern) {
	d.patterns = patterns
}

// Scan reads the tail of each configured log file and reports one finding
// per matched line. Missing or unreadable files are skipped silently, the
// same as the original behaviour.
func (d *ThreatDetector) Scan(ctx context.Context) ([]models.Finding, error) {
	var findings []models.Finding

	for _, path := range d.logPaths {
		select {
		case <-ctx.Done():
			return findings, ctx.Err()
		default:
		}

		lines, total, err := tailLines(path, threatScanTailLines)
		if err != nil {
			continue
		}

		// Skip lines already inspected in previous scans.
		start := 0
		if seen, ok := d.reported[path]; ok && total > seen {
			alreadyInTail := len(lines) - (total - seen)
			if alreadyInTail > 0 {
				start = alreadyInTail
			}
		} else if ok && total <= seen {
			// File truncated or rotated, rescan the tail.
			start = 0
		}
		d.reported[path] = total

		for i := start; i < len(lines); i++ {
			if finding, ok := d.checkLine(lines[i], path); ok {
				findings = append(findings, finding)
			}
		}
	}

	return findings, nil
}

func (d *ThreatDetector) checkLine(line, source string) (models.Finding, bool) {
	for _, pattern := range d.patterns {
		if !pattern.Pattern.MatchString(line) {
			continue
		}

		matched := line
		if len(matched) > 200 {
			matched = matched[:200]
		}

		return models.Finding{
			Kind:       "threat_" + pattern.Name,
			Confidence: pattern.Confidence,
			OccurredAt: time.Now().UTC(),
			Origin:     d.Name(),
			Payload: map[string]interface{}{
				"description":     pattern.Description,
				"source":          source,
				"matched_content": matched,
			},
		}, true
	}

	return models.Finding{}, false
}

// tailLines returns the last n lines of a file along with the total line
// count observed.
func tailLines(path string, n int) ([]string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var tail []string
	total := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		total++
		tail = append(tail, scanner.Text())
		if len(tail) > n {
			tail = tail[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}

	return tail, total, nil
}
