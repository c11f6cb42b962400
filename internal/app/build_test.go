package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/enrollassist/internal/config"
	"github.com/ent0n29/enrollassist/internal/knowledge"
	"github.com/ent0n29/enrollassist/internal/session"
)

func testConfig(name string) config.Config {
	cfg := *config.Default()
	cfg.MetricsNamespace = "test_app_" + name + "_" + time.Now().Format("150405000000")
	cfg.ThinkDelayMin, cfg.ThinkDelayMax = 0, 0
	cfg.RevealDelayMin, cfg.RevealDelayMax = 0, 0
	return cfg
}

func TestBuildEmbeddedServesAndCountsTurns(t *testing.T) {
	res, err := Build(context.Background(), testConfig("embedded"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Equal(t, knowledge.ModeEmbedded, res.Mode)
	assert.Nil(t, res.Watcher)
	assert.Equal(t, float64(res.Registry.Current().Len()), testutil.ToFloat64(res.Metrics.KnowledgeEntries))

	ts := httptest.NewServer(res.API.Router())
	defer ts.Close()
	ready, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)

	sess := res.Sessions.Create(session.CreateRequest{VisitorID: "v1"})
	accepted, _, err := res.Sessions.Submit(sess.ID, "what are the fees")
	require.NoError(t, err)
	require.True(t, accepted)

	conv, err := res.Sessions.Conversation(sess.ID)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conv.WaitIdle(ctx))

	// OnTurnComplete runs just after the state returns to idle.
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(res.Metrics.Turns.WithLabelValues("matched", "fees")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBuildFileModeWithWatcher(t *testing.T) {
	dir := t.TempDir()
	rule := []byte(`version: "t1"
entries:
  - id: hours
    keywords: [hours, open]
    response: We are open 9 to 5.
    confidence: 90
    category: contact
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), rule, 0o644))

	cfg := testConfig("file")
	cfg.KnowledgeSource = knowledge.ModeFile
	cfg.KnowledgePath = []string{filepath.Join(dir, "*.yaml")}
	cfg.KnowledgeWatch = true

	res, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Equal(t, knowledge.ModeFile, res.Mode)
	require.NotNil(t, res.Watcher)
	assert.Equal(t, "t1", res.Registry.Current().Version())
	assert.Equal(t, []string{dir}, res.Watcher.WatchedDirs())
}

func TestBuildTracksSwappedTables(t *testing.T) {
	res, err := Build(context.Background(), testConfig("swap"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	next, err := knowledge.NewTable("t2", "test", []knowledge.Entry{
		{ID: "hours", Keywords: []string{"hours"}, Response: "We are open 9 to 5.", BaseConfidence: 90},
		{ID: "fees", Keywords: []string{"fees"}, Response: "The program is free.", BaseConfidence: 90},
	})
	require.NoError(t, err)

	res.Registry.Swap(next)
	assert.Equal(t, float64(2), testutil.ToFloat64(res.Metrics.KnowledgeEntries))
}

func TestBuildRejectsMissingRuleFiles(t *testing.T) {
	cfg := testConfig("missing")
	cfg.KnowledgeSource = knowledge.ModeFile
	cfg.KnowledgePath = []string{filepath.Join(t.TempDir(), "*.yaml")}

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestResolvePacing(t *testing.T) {
	cfg := testConfig("pacing")
	cfg.ThinkDelayMin, cfg.ThinkDelayMax = 200*time.Millisecond, 200*time.Millisecond
	cfg.RevealDelayMin, cfg.RevealDelayMax = 10*time.Millisecond, 20*time.Millisecond

	opts := resolvePacing(cfg)
	assert.Equal(t, 200*time.Millisecond, opts.ThinkDelay())
	for range 20 {
		d := opts.RevealDelay()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
	assert.Equal(t, 5, opts.ContextWindow)
}
