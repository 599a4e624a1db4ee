package detector_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/networkbuster/aidefense/internal/detector"
	"github.com/stretchr/testify/assert"
)

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	assert.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	assert.NoError(t, err)
}

func TestThreatDetector_MatchesBruteForce(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "auth.log",
		"service started ok\n"+
			"Failed password for invalid user from 203.0.113.7\n")

	det := detector.NewThreatDetector([]string{path})
	findings, err := det.Scan(context.Background())

	assert.NoError(t, err)
	assert.Len(t, findings, 1)

	finding := findings[0]
	assert.Equal(t, "threat_brute_force_attempt", finding.Kind)
	assert.Equal(t, 0.75, finding.Confidence)
	assert.Equal(t, "threat_analyzer", finding.Origin)
	assert.Equal(t, path, finding.Payload["source"])
	assert.Contains(t, finding.Payload["matched_content"], "Failed password")
}

func TestThreatDetector_MatchesPrivilegeEscalation(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "app.log", "user invoked sudo command unexpectedly\n")

	det := detector.NewThreatDetector([]string{path})
	findings, err := det.Scan(context.Background())

	assert.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, "threat_privilege_escalation", findings[0].Kind)
	assert.Equal(t, 0.95, findings[0].Confidence)
}

func TestThreatDetector_MatchesSensitiveFileAccess(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "access.log", "GET /.env HTTP/1.1 404\n")

	det := detector.NewThreatDetector([]string{path})
	findings, err := det.Scan(context.Background())

	assert.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, "threat_suspicious_file_access", findings[0].Kind)
}

func TestThreatDetector_DoesNotRereportOldLines(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "auth.log", "Failed password for invalid user\n")

	det := detector.NewThreatDetector([]string{path})

	first, err := det.Scan(context.Background())
	assert.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := det.Scan(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, second, "Lines already inspected are not reported again.")
}

func TestThreatDetector_ReportsOnlyNewLines(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "auth.log", "Failed password for invalid user\n")

	det := detector.NewThreatDetector([]string{path})
	_, err := det.Scan(context.Background())
	assert.NoError(t, err)

	appendLog(t, path, "service heartbeat\nauthentication failure for client\n")

	findings, err := det.Scan(context.Background())
	assert.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, "threat_brute_force_attempt", findings[0].Kind)
	assert.Contains(t, findings[0].Payload["matched_content"], "authentication failure")
}

func TestThreatDetector_MissingFileIsSkipped(t *testing.T) {
	det := detector.NewThreatDetector([]string{"/nonexistent/path/auth.log"})

	findings, err := det.Scan(context.Background())

	assert.NoError(t, err, "Missing log files are skipped, not errors.")
	assert.Empty(t, findings)
}

func TestThreatDetector_BenignLinesProduceNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "app.log",
		"service started ok\n"+
			"request handled in 12ms\n"+
			"cache refreshed\n")

	det := detector.NewThreatDetector([]string{path})
	findings, err := det.Scan(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, findings)
}

func TestThreatDetector_CustomPatterns(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "app.log", "MARKER line present\n")

	det := detector.NewThreatDetector([]string{path})
	det.SetPatterns([]detector.ThreatPattern{{
		Name:        "marker",
		Pattern:     regexp.MustCompile("MARKER"),
		Confidence:  0.6,
		Description: "test marker",
	}})

	findings, err := det.Scan(context.Background())

	assert.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, "threat_marker", findings[0].Kind)
	assert.Equal(t, 0.6, findings[0].Confidence)
}
