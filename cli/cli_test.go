package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/docqa/agent"
	"github.com/richinex/docqa/config"
	"github.com/richinex/docqa/llm"
	"github.com/richinex/docqa/tools"
)

// echoProvider answers every question directly.
type echoProvider struct{}

func (echoProvider) Name() string  { return "echo" }
func (echoProvider) Model() string { return "echo-1" }

func (echoProvider) Chat(_ context.Context, msgs []llm.ChatMessage) (llm.LLMResponse, error) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if q, ok := strings.CutPrefix(msgs[i].Content, "Question: "); ok {
			return llm.LLMResponse{Content: "Final Answer: echo " + q}, nil
		}
	}
	return llm.LLMResponse{Content: "Final Answer: nothing"}, nil
}

func (p echoProvider) ChatWithFormat(ctx context.Context, msgs []llm.ChatMessage, _ *llm.ResponseFormat) (llm.LLMResponse, error) {
	return p.Chat(ctx, msgs)
}

func (p echoProvider) StreamChat(ctx context.Context, msgs []llm.ChatMessage, chunks chan<- string) (*llm.TokenUsage, error) {
	resp, err := p.Chat(ctx, msgs)
	if err == nil {
		chunks <- resp.Content
	}
	return nil, err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TAVILY_API_KEY", "BRAVE_SEARCH_API_KEY", "WEB_SEARCH_PROVIDER", "RETRIEVAL_CACHE_PATH", "RETRIEVAL_EMBEDDER", "LLM_PROVIDER", "GROQ_API_KEY"} {
		t.Setenv(key, "")
	}
}

func testApp(t *testing.T) *App {
	t.Helper()
	settings, err := loadSettings(Options{})
	require.NoError(t, err)
	app, err := newApp(settings, &bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBaseToolsWithoutWebKey(t *testing.T) {
	clearEnv(t)
	app := testApp(t)

	assert.Equal(t, []string{"ArxivSearch"}, app.base.Names())
	require.Len(t, app.Warnings, 1)
	assert.Contains(t, app.Warnings[0], "TAVILY_API_KEY")
}

func TestBaseToolsWithWebKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAVILY_API_KEY", "tvly-test")
	app := testApp(t)

	assert.Equal(t, []string{"ArxivSearch", "web_search"}, app.base.Names())
	assert.Empty(t, app.Warnings)
}

func TestCreateProviderMissingKey(t *testing.T) {
	clearEnv(t)
	settings, err := loadSettings(Options{})
	require.NoError(t, err)

	_, err = createProvider(settings)
	assert.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestLoadSettingsOverrides(t *testing.T) {
	clearEnv(t)
	settings, err := loadSettings(Options{MaxIter: 2, Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, 2, settings.Agent.MaxIterations)
	assert.Equal(t, "debug", settings.Log.Level)
}

func TestChatLoop(t *testing.T) {
	clearEnv(t)
	app := testApp(t)
	sess, err := app.NewSession(echoProvider{})
	require.NoError(t, err)

	dir := t.TempDir()
	doc := writeFile(t, dir, "phoenix.txt", "Project Phoenix deadline: March 5")
	missing := filepath.Join(dir, "missing.pdf")

	in := strings.NewReader(strings.Join([]string{
		"/tools",
		"/upload " + doc + " " + missing,
		"/tools",
		"hello there",
		"/history",
		"/reset",
		"/history",
		"/bogus",
		"exit",
		"never asked",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), sess, nil, in, &out, false))

	text := out.String()
	assert.Contains(t, text, "Processed 1 of 2 file(s)")
	assert.Contains(t, text, "failed: "+missing)
	assert.Contains(t, text, "document_retriever")
	assert.Contains(t, text, "echo hello there")
	assert.Contains(t, text, "user: hello there")
	assert.Contains(t, text, "Conversation cleared.")
	assert.Contains(t, text, "(no messages yet)")
	assert.Contains(t, text, "Unknown command /bogus")
	assert.NotContains(t, text, "never asked")
	assert.Empty(t, sess.History())
}

func TestUploadsReplaceByNameAndDropFailures(t *testing.T) {
	clearEnv(t)
	app := testApp(t)
	sess, err := app.NewSession(echoProvider{})
	require.NoError(t, err)

	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "first version")
	bad := writeFile(t, dir, "bad.pdf", "%PDF-1.4 broken")

	u := newUploads(sess)
	var out bytes.Buffer
	report, err := u.load(context.Background(), []string{a, bad}, &out)
	require.NoError(t, err)
	assert.True(t, report.RetrieverActive)
	assert.Len(t, report.Failures, 1)
	require.Len(t, u.files, 1)

	writeFile(t, dir, "a.txt", "second version")
	_, err = u.load(context.Background(), []string{a}, &out)
	require.NoError(t, err)
	require.Len(t, u.files, 1)
	assert.Equal(t, "second version", string(u.files[0].Data))
	assert.True(t, sess.Tools().Has(tools.KindDocuments))
}

func TestUploadsKeepPreviousVersionWhenReplacementFails(t *testing.T) {
	clearEnv(t)
	app := testApp(t)
	sess, err := app.NewSession(echoProvider{})
	require.NoError(t, err)

	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "Project Phoenix deadline: March 5")

	u := newUploads(sess)
	var out bytes.Buffer
	_, err = u.load(context.Background(), []string{a}, &out)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(a, []byte{0xff, 0xfe, 0xfd}, 0o644))
	report, err := u.load(context.Background(), []string{a}, &out)
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, a, report.Failures[0].Name)
	assert.True(t, report.RetrieverActive)
	require.Len(t, u.files, 1)
	assert.Equal(t, "Project Phoenix deadline: March 5", string(u.files[0].Data))

	retriever, ok := sess.Tools().Lookup(tools.DocumentToolName)
	require.True(t, ok)
	assert.Contains(t, retriever.Invoke(context.Background(), "Phoenix deadline"), "March 5")
}

func TestClearCommandRemovesDocuments(t *testing.T) {
	clearEnv(t)
	app := testApp(t)
	sess, err := app.NewSession(echoProvider{})
	require.NoError(t, err)
	doc := writeFile(t, t.TempDir(), "notes.txt", "alpha beta")

	in := strings.NewReader("/upload " + doc + "\n/clear\n/tools\nexit\n")
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), sess, nil, in, &out, false))

	assert.Contains(t, out.String(), "Documents cleared.")
	assert.False(t, sess.Tools().Has(tools.KindDocuments))
	assert.Nil(t, sess.Index())
}

func TestIngestCommandWarmsSqliteCache(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("RETRIEVAL_CACHE_PATH", filepath.Join(dir, "cache", "embeddings.db"))
	doc := writeFile(t, dir, "notes.md", "# Notes\n\nThe launch is on March 5.")

	var out bytes.Buffer
	require.NoError(t, Ingest(context.Background(), []string{doc}, Options{}, &out))

	assert.Contains(t, out.String(), "Processed 1 of 1 file(s) into 1 chunk(s).")
	assert.Contains(t, out.String(), "Embedding cache holds 1 vector(s)")
	assert.FileExists(t, filepath.Join(dir, "cache", "embeddings.db"))
}

func TestListTools(t *testing.T) {
	clearEnv(t)
	var out bytes.Buffer
	require.NoError(t, ListTools(Options{}, &out))

	assert.Contains(t, out.String(), "ArxivSearch")
	assert.Contains(t, out.String(), "document_retriever")
	assert.Contains(t, out.String(), "web search disabled")
}

func TestPrintResponsePrintsAnswerOnce(t *testing.T) {
	tool, input := "ArxivSearch", "attention"
	obs, answer := "1. Attention Is All You Need", "The Transformer paper."
	resp := agent.Response{
		Output: answer,
		Steps: []agent.Step{
			{Iteration: 1, Thought: "search", Action: &tool, ActionInput: input, Observation: &obs},
			{Iteration: 2, Thought: "done", FinalAnswer: &answer},
		},
	}

	var out bytes.Buffer
	printResponse(&out, resp, true)

	assert.Equal(t, 1, strings.Count(out.String(), answer))
	assert.Contains(t, out.String(), `Action: ArxivSearch("attention")`)
	assert.Contains(t, out.String(), "Final answer")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdef", 2))
	assert.Equal(t, "日本...", truncateString("日本語です", 2))
}

