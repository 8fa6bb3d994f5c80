package privacy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attention-engine/internal/model"
	"attention-engine/internal/service/patterns"
)

func testLibrary(t *testing.T) *patterns.Library {
	t.Helper()
	content := `
sensitive_domains:
  - counseling.example.org
sensitive_labels:
  - pastoral-care
`
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	lib, err := patterns.Load(path)
	require.NoError(t, err)
	return lib
}

func testEngine(t *testing.T) *Engine {
	return NewEngine(testLibrary(t), []model.BlocklistEntry{
		{Sender: "soft@example.com", Hard: false},
		{Sender: "hard@example.com", Hard: true},
	})
}

func TestEvaluateUnknownSenderFailsOpen(t *testing.T) {
	d := testEngine(t).Evaluate(model.Email{From: "anyone@example.com"}, false)

	assert.True(t, d.CanSeeBody)
	assert.Empty(t, d.BlockedReason)
	assert.False(t, d.OverrideGranted)
}

func TestEvaluateSoftBlockedSender(t *testing.T) {
	e := testEngine(t)

	d := e.Evaluate(model.Email{From: "soft@example.com"}, false)
	assert.False(t, d.CanSeeBody)
	assert.Equal(t, model.BlockedSender, d.BlockedReason)

	// override grants access for this call only
	d = e.Evaluate(model.Email{From: "soft@example.com"}, true)
	assert.True(t, d.CanSeeBody)
	assert.True(t, d.OverrideGranted)
	assert.Equal(t, model.BlockedSender, d.BlockedReason)

	// next call without the override is blocked again
	d = e.Evaluate(model.Email{From: "soft@example.com"}, false)
	assert.False(t, d.CanSeeBody)
}

func TestEvaluateHardBlockedSenderNeverOverridable(t *testing.T) {
	e := testEngine(t)

	d := e.Evaluate(model.Email{From: "hard@example.com"}, true)
	assert.False(t, d.CanSeeBody)
	assert.False(t, d.OverrideGranted)
	assert.Equal(t, model.BlockedSender, d.BlockedReason)
}

func TestEvaluateSenderCaseInsensitive(t *testing.T) {
	d := testEngine(t).Evaluate(model.Email{From: "HARD@Example.COM"}, true)
	assert.False(t, d.CanSeeBody)
}

func TestEvaluateSensitiveDomain(t *testing.T) {
	e := testEngine(t)

	d := e.Evaluate(model.Email{From: "pastor@counseling.example.org"}, false)
	assert.False(t, d.CanSeeBody)
	assert.Equal(t, model.BlockedDomain, d.BlockedReason)

	d = e.Evaluate(model.Email{From: "pastor@counseling.example.org"}, true)
	assert.True(t, d.CanSeeBody)
	assert.True(t, d.OverrideGranted)
}

func TestEvaluateSensitiveLabel(t *testing.T) {
	e := testEngine(t)

	d := e.Evaluate(model.Email{From: "x@example.com", Labels: []string{"pastoral-care"}}, false)
	assert.False(t, d.CanSeeBody)
	assert.Equal(t, model.BlockedLabel, d.BlockedReason)
}

func TestEvaluateCheckOrder(t *testing.T) {
	// sender blocklist outranks sensitive domain and label
	e := NewEngine(testLibrary(t), []model.BlocklistEntry{
		{Sender: "who@counseling.example.org", Hard: false},
	})

	d := e.Evaluate(model.Email{
		From:   "who@counseling.example.org",
		Labels: []string{"pastoral-care"},
	}, false)
	assert.Equal(t, model.BlockedSender, d.BlockedReason)
}
