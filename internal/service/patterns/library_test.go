package patterns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPatterns = `
accounts:
  church:
    vip_senders:
      - pastor@church.example.org
    roles:
      - role: treasurer
        senders:
          - bank@church.example.org
        subject_keywords:
          - invoice
        labels:
          - finance

action_patterns:
  - '(?i)\baction required\b'
  - '(?i)\bdeadline\b'

exclusion_patterns:
  - '(?i)\bunsubscribe\b'

sensitive_domains:
  - counseling.example.org

sensitive_labels:
  - Confidential
`

func writePatternFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndMatch(t *testing.T) {
	lib, err := Load(writePatternFile(t, testPatterns))
	require.NoError(t, err)

	assert.Equal(t, []string{"pastor@church.example.org"}, lib.VIPSenders("church"))
	assert.Empty(t, lib.VIPSenders("unknown"))

	roles := lib.Roles("church")
	require.Len(t, roles, 1)
	assert.Equal(t, "treasurer", roles[0].Role)

	assert.NotEmpty(t, lib.FirstActionMatch("ACTION REQUIRED: sign the form"))
	assert.Empty(t, lib.FirstActionMatch("nothing to see here"))
	assert.Equal(t, `(?i)\bunsubscribe\b`, lib.FirstExclusionMatch("click to Unsubscribe"))
}

func TestLoadInvalidRegexFails(t *testing.T) {
	bad := `
action_patterns:
  - '([unclosed'
`
	_, err := Load(writePatternFile(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "([unclosed")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSensitiveDomainSuffixMatch(t *testing.T) {
	lib, err := Load(writePatternFile(t, testPatterns))
	require.NoError(t, err)

	assert.True(t, lib.IsSensitiveDomain("someone@counseling.example.org"))
	assert.True(t, lib.IsSensitiveDomain("Someone@COUNSELING.example.org"))
	assert.False(t, lib.IsSensitiveDomain("someone@example.org"))
}

func TestSensitiveLabelCaseInsensitive(t *testing.T) {
	lib, err := Load(writePatternFile(t, testPatterns))
	require.NoError(t, err)

	assert.True(t, lib.HasSensitiveLabel([]string{"INBOX", "confidential"}))
	assert.True(t, lib.HasSensitiveLabel([]string{"CONFIDENTIAL"}))
	assert.False(t, lib.HasSensitiveLabel([]string{"INBOX"}))
	assert.False(t, lib.HasSensitiveLabel(nil))
}

func TestReloadSwapsSnapshot(t *testing.T) {
	path := writePatternFile(t, testPatterns)
	lib, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, lib.FirstActionMatch("deadline tomorrow"))

	updated := `
action_patterns:
  - '(?i)\burgent\b'
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, lib.Reload())

	assert.Empty(t, lib.FirstActionMatch("deadline tomorrow"))
	assert.NotEmpty(t, lib.FirstActionMatch("URGENT: read this"))
}

func TestReloadKeepsOldSnapshotOnError(t *testing.T) {
	path := writePatternFile(t, testPatterns)
	lib, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("action_patterns:\n  - '([bad'\n"), 0o644))
	require.Error(t, lib.Reload())

	// old patterns still in effect
	assert.NotEmpty(t, lib.FirstActionMatch("deadline tomorrow"))
}
