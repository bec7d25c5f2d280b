package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/clearance"
	"github.com/poiesic/clearance/access"
	"github.com/poiesic/clearance/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	db   string
	data string
}

type run struct {
	stdout string
	stderr string
	err    error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	assistantOptions = []clearance.Option{clearance.WithAIProvider(mock.NewMockProvider())}
	t.Cleanup(func() { assistantOptions = nil })

	data := t.TempDir()
	files := map[string]string{
		"marketing/campaign.md": "# Q3 Campaign\nThe Q3 campaign reached 1.2M impressions. Paid social drove most clicks.",
		"finance/summary.csv":   "metric,value\nRevenue growth,12%\n",
		"general/handbook.md":   "# Handbook\nOffice hours are nine to five.",
	}
	for name, content := range files {
		path := filepath.Join(data, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return &harness{db: filepath.Join(t.TempDir(), "db"), data: data}
}

func (h *harness) run(stdin string, args ...string) run {
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(stdin)

	full := append([]string{"clearance", "--log-level", "error", "--db", h.db}, args...)
	err := app.Run(full)
	return run{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	h := newHarness(t)
	r := h.run("", "--log-level", "loud", "collections")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "invalid log level")
}

func TestAsk_RequiresUserAndQuestion(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "ask", "what is revenue?")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "user")

	r = h.run("", "ask", "--user", "alice")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "question is required")
}

func TestIngestAskAndInspect(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "ingest", "--data", h.data)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "marketing -> marketing_docs (1 chunks)")
	assert.Contains(t, r.stdout, "summary.csv")

	r = h.run("", "ingest", "--data", h.data)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "unchanged")

	r = h.run("", "ask", "--user", "bob", "--verbose", "How did the Q3 campaign do?")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Role: marketing")
	assert.Contains(t, r.stdout, "Outcome: answered")
	assert.Contains(t, r.stdout, "mock answer based on")
	assert.Contains(t, r.stdout, "Diagnostics:")
	assert.NotContains(t, r.stdout, "finance_docs")

	r = h.run("", "ask", "--user", "mallory", "How did the Q3 campaign do?")
	require.Error(t, r.err)
	assert.Equal(t, "access denied", r.err.Error())

	r = h.run("", "retrieve", "--user", "ceo", "revenue growth")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Authorized collections: engineering_docs, finance_docs")
	assert.Contains(t, r.stdout, "Document 1 (Source:")

	r = h.run("", "collections", "--samples", "1")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "finance_docs: 1 documents")
	assert.Contains(t, r.stdout, "[summary.csv] Revenue growth | 12%")

	r = h.run("", "health")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Storage: ok")
	assert.Contains(t, r.stdout, "Missing collections: engineering_docs, hr_docs")

	r = h.run("", "reembed", "--collection", "general_docs", "--retry-delay", "1ms")
	require.NoError(t, r.err)
	assert.Contains(t, r.stderr, "Processed 1 chunks in 1 collections")
}

func TestChat(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("", "ingest", "--data", h.data).err)

	t.Run("without credentials", func(t *testing.T) {
		r := h.run("When are office hours?\nexit\n", "chat", "--user", "eve")
		require.NoError(t, r.err)
		assert.Contains(t, r.stderr, "identity is not verified")
		assert.Contains(t, r.stdout, "Signed in as eve (employee)")
		assert.Contains(t, r.stdout, "Outcome: answered")
	})

	hash, err := access.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	accessFile := filepath.Join(t.TempDir(), "access.yaml")
	require.NoError(t, os.WriteFile(accessFile, []byte("users:\n  eve:\n    role: employee\n    password_hash: "+hash+"\n"), 0o600))

	t.Run("wrong password", func(t *testing.T) {
		r := h.run("wrong\n", "--access", accessFile, "chat", "--user", "eve")
		require.Error(t, r.err)
		assert.Equal(t, "access denied", r.err.Error())
	})

	t.Run("right password", func(t *testing.T) {
		r := h.run("s3cret\nWhen are office hours?\n", "--access", accessFile, "chat", "--user", "eve")
		require.NoError(t, r.err)
		assert.Contains(t, r.stdout, "Signed in as eve (employee)")
		assert.NotContains(t, r.stderr, "identity is not verified")
	})
}

func TestHashPassword(t *testing.T) {
	h := newHarness(t)

	r := h.run("hunter2\n", "hash-password", "--cost", "4")
	require.NoError(t, r.err)
	hash := strings.TrimSpace(r.stdout)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))

	r = h.run("\n", "hash-password")
	require.Error(t, r.err)
}

func writeAccessFile(t *testing.T, users map[string][2]string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("users:\n")
	for name, entry := range users {
		hash, err := access.HashPassword(entry[1], bcrypt.MinCost)
		require.NoError(t, err)
		b.WriteString("  " + name + ":\n    role: " + entry[0] + "\n    password_hash: " + hash + "\n")
	}
	path := filepath.Join(t.TempDir(), "access.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func TestAskAndRetrieve_CheckPasswords(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("", "ingest", "--data", h.data).err)
	accessFile := writeAccessFile(t, map[string][2]string{
		"ceo": {"c_level", "board"},
		"bob": {"marketing", "brand"},
	})

	t.Run("ask with wrong password", func(t *testing.T) {
		r := h.run("nope\n", "--access", accessFile, "ask", "--user", "ceo", "revenue growth")
		require.Error(t, r.err)
		assert.Equal(t, "access denied", r.err.Error())
		assert.NotContains(t, r.stdout, "Outcome:")
	})

	t.Run("ask without password", func(t *testing.T) {
		r := h.run("", "--access", accessFile, "ask", "--user", "ceo", "revenue growth")
		require.Error(t, r.err)
		assert.Equal(t, "access denied", r.err.Error())
	})

	t.Run("ask with unknown user", func(t *testing.T) {
		r := h.run("board\n", "--access", accessFile, "ask", "--user", "mallory", "revenue growth")
		require.Error(t, r.err)
		assert.Equal(t, "access denied", r.err.Error())
	})

	t.Run("ask with right password", func(t *testing.T) {
		r := h.run("brand\n", "--access", accessFile, "ask", "--user", "bob", "How did the Q3 campaign do?")
		require.NoError(t, r.err)
		assert.Contains(t, r.stdout, "Role: marketing")
		assert.Contains(t, r.stdout, "Outcome: answered")
		assert.NotContains(t, r.stderr, "identity is not verified")
	})

	t.Run("retrieve with wrong password", func(t *testing.T) {
		r := h.run("brand\n", "--access", accessFile, "retrieve", "--user", "ceo", "revenue growth")
		require.Error(t, r.err)
		assert.Equal(t, "access denied", r.err.Error())
		assert.NotContains(t, r.stdout, "Authorized collections")
	})

	t.Run("retrieve with right password", func(t *testing.T) {
		r := h.run("board\n", "--access", accessFile, "retrieve", "--user", "ceo", "revenue growth")
		require.NoError(t, r.err)
		assert.Contains(t, r.stdout, "Role: c_level")
	})
}

func TestAsk_WithoutAccessFileWarns(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("", "ingest", "--data", h.data).err)

	r := h.run("", "ask", "--user", "eve", "When are office hours?")
	require.NoError(t, r.err)
	assert.Contains(t, r.stderr, "identity is not verified")
}
