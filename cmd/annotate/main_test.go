package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/draft"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := []string{}
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "attach")
	assert.Contains(t, names, "draft")

	draftNames := []string{}
	for _, cmd := range draftCmd.Commands() {
		draftNames = append(draftNames, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "discard"}, draftNames)
}

func TestAttachCmd_RequiresFile(t *testing.T) {
	_, err := execute(t, "attach")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestAttachCmd_AnnotatesFile(t *testing.T) {
	var (
		mu    sync.Mutex
		types []string
		auth  string
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		types = append(types, body["generation_type"].(string))
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"generated_content": "About " + body["material"].(string)})
	}))
	defer upstream.Close()

	t.Setenv("ANNOTATOR_CONFIG_FILE", "")
	t.Setenv("GENERATION_API_URL", upstream.URL)
	t.Setenv("GENERATION_API_TOKEN", "cli-token")
	t.Setenv("GENERATION_RPS", "0")

	dir := t.TempDir()
	drafts := filepath.Join(dir, "drafts")
	file := filepath.Join(dir, "lesson.html")
	original := "<p>We study machine learning today.</p>"
	require.NoError(t, os.WriteFile(file, []byte(original), 0o644))
	from := strings.Index(original, "machine learning")

	out, err := execute(t, "attach", file,
		"--from", itoa(from), "--to", itoa(from+len("machine learning")),
		"--type", "summary", "--type", "examples",
		"--drafts", drafts)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Annotation attached")

	assert.Equal(t, []string{"summary", "examples"}, types)
	assert.Equal(t, "Bearer cli-token", auth)

	written, err := os.ReadFile(file)
	require.NoError(t, err)
	content := string(written)
	assert.True(t, strings.HasPrefix(content, original))
	assert.Equal(t, 1, strings.Count(content, "annotation-block"))
	assert.Less(t, strings.Index(content, "Examples"), strings.Index(content, "Summary"), "newest response first")

	store, err := draft.OpenSQLite(drafts)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries, "draft should be removed after the file is written")
}

func TestDraftCmds(t *testing.T) {
	dir := t.TempDir()
	store, err := draft.OpenSQLite(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), draft.Entry{ItemID: "lesson-4", Content: "<p>unsaved</p>"}))
	require.NoError(t, store.Close())

	out, err := execute(t, "draft", "list", "--drafts", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "lesson-4")

	out, err = execute(t, "draft", "show", "lesson-4", "--drafts", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "<p>unsaved</p>")

	_, err = execute(t, "draft", "discard", "lesson-4", "--drafts", dir)
	require.NoError(t, err)

	_, err = execute(t, "draft", "show", "lesson-4", "--drafts", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no draft for lesson-4")
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
