package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/inventorygraph/checkpoint"
	"github.com/tracewire/inventorygraph/extract"
	"github.com/tracewire/inventorygraph/graph"
	"github.com/tracewire/inventorygraph/log"
	"github.com/tracewire/inventorygraph/source"
)

// promptLLM answers by prompt shape so one mock serves entity, relation and
// fact extraction. Documents containing failMarker make it error.
type promptLLM struct {
	failing bool
	calls   int
}

const failMarker = "FAILME"

func (m *promptLLM) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	if m.failing && strings.Contains(prompt, failMarker) {
		return "", errors.New("model overloaded")
	}
	switch {
	case strings.HasPrefix(prompt, "Extract the entities"):
		return `{"entities": [
			{"name": "Alpha", "type": "class", "description": "retry coordinator", "confidence": 0.9, "line_start": 1, "line_end": 4},
			{"name": "Beta", "type": "service", "confidence": 0.8}
		]}`, nil
	case strings.HasPrefix(prompt, "Extract relationships"):
		return `{"relations": [
			{"source": "Alpha", "target": "Beta", "type": "depends_on", "confidence": 0.9}
		]}`, nil
	case strings.HasPrefix(prompt, "Extract standalone factual"):
		return `{"facts": [
			{"statement": "Alpha caps retries at three attempts", "subject": "Alpha", "confidence": 0.9}
		]}`, nil
	default:
		return `{"kind": "documentation", "confidence": 0.9}`, nil
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fastGuardrails() extract.Guardrails {
	g := extract.DefaultGuardrails()
	g.MaxRetries = 0
	g.RetryDelay = time.Millisecond
	return g
}

func newPipeline(t *testing.T, dir string, llm extract.LLM, opts ...Option) (*Pipeline, *graph.KnowledgeGraph, *checkpoint.FileStore) {
	t.Helper()
	src, err := source.NewFilesystemSource(dir, source.WithName("files"), source.WithoutNormalization())
	require.NoError(t, err)
	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	g := graph.New(graph.WithLogger(log.NopLogger{}))
	all := append([]Option{
		WithCheckpointStore(store),
		WithGuardrails(fastGuardrails()),
		WithLogger(log.NopLogger{}),
	}, opts...)
	return New(g, src, llm, all...), g, store
}

func TestRunParsesCodeWithoutLLM(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "store.go", `package store

import "fmt"

type Store struct{}

func (s *Store) Get(key string) string {
	fmt.Println(key)
	return key
}
`)

	p, g, _ := newPipeline(t, dir, nil)
	result, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, PhaseCompleted, result.Phase)
	assert.Equal(t, 1, result.DocumentsProcessed)

	file := g.FindEntityByName("store.go")
	require.NotNil(t, file)
	assert.Equal(t, "file", file.Type)

	storeEnt := g.FindEntityByName("Store")
	require.NotNil(t, storeEnt)
	assert.Equal(t, "struct", storeEnt.Type)
	require.Len(t, storeEnt.Citations, 1)
	assert.Equal(t, "store.go", storeEnt.Citations[0].FilePath)
	assert.Equal(t, "files", storeEnt.Citations[0].SourceToolkit)

	// The import produced a module entity wired to the file.
	fmtEnt := g.FindEntityByName("fmt")
	require.NotNil(t, fmtEnt)
	assert.Equal(t, "module", fmtEnt.Type)

	// Struct contains method, resolved during linking.
	get := g.FindEntityByName("Get")
	require.NotNil(t, get)
	found := false
	for _, rel := range g.Relations(storeEnt.ID, graph.DirectionOut) {
		if rel.TargetID == get.ID && rel.Type == "contains" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunExtractsProseWithLLM(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "design.md", "Alpha coordinates retries and depends on Beta.")

	p, g, _ := newPipeline(t, dir, &promptLLM{})
	result, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)

	alpha := g.FindEntityByName("Alpha")
	require.NotNil(t, alpha)
	assert.Equal(t, "class", alpha.Type)
	assert.Equal(t, "retry coordinator", alpha.Properties["description"])
	require.Len(t, alpha.Citations, 1)
	assert.Equal(t, 1, alpha.Citations[0].LineStart)

	beta := g.FindEntityByName("Beta")
	require.NotNil(t, beta)

	// Relation resolved in the linking phase.
	rels := g.Relations(alpha.ID, graph.DirectionOut)
	foundDep := false
	for _, rel := range rels {
		if rel.TargetID == beta.ID && rel.Type == "depends_on" {
			foundDep = true
		}
	}
	assert.True(t, foundDep)

	// Fact entity with a references edge back to its subject.
	facts := g.EntitiesByType("fact", 0)
	require.Len(t, facts, 1)
	foundRef := false
	for _, rel := range g.Relations(facts[0].ID, graph.DirectionOut) {
		if rel.TargetID == alpha.ID && rel.Type == "references" {
			foundRef = true
		}
	}
	assert.True(t, foundRef)
}

func TestRunRecordsFailuresAndResumes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "d.md", "e.md"} {
		writeFile(t, dir, name, "Alpha depends on Beta.")
	}
	writeFile(t, dir, "c.md", "Alpha "+failMarker+" Beta.")

	llm := &promptLLM{failing: true}
	p, _, store := newPipeline(t, dir, llm, WithMaxAttempts(3))

	ctx := context.Background()

	// First run: four documents succeed, c.md fails once.
	result, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, result.DocumentsProcessed)
	assert.Equal(t, 1, result.DocumentsFailed)

	cp, err := store.Load(ctx, "files")
	require.NoError(t, err)
	assert.True(t, cp.Completed)
	assert.Equal(t, 1, cp.Attempts("c.md"))

	// Second and third runs retry only the failed file.
	for want := 2; want <= 3; want++ {
		result, err = p.Run(ctx, RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, result.DocumentsProcessed)
		assert.Equal(t, 1, result.DocumentsFailed)

		cp, err = store.Load(ctx, "files")
		require.NoError(t, err)
		assert.Equal(t, want, cp.Attempts("c.md"))
	}

	// Ceiling reached: the file is skipped, not retried.
	result, err = p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.DocumentsFailed)
	assert.Equal(t, 5, result.DocumentsSkipped)

	// Retry without force refuses.
	_, err = p.Retry(ctx, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "force")

	// Fix the model and force the retry.
	llm.failing = false
	result, err = p.Retry(ctx, RunOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)

	cp, err = store.Load(ctx, "files")
	require.NoError(t, err)
	assert.Zero(t, cp.Attempts("c.md"))
	assert.True(t, cp.IsProcessed("c.md"))
}

func TestRunResumesMidRunCheckpoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Alpha depends on Beta.")
	writeFile(t, dir, "b.md", "Alpha depends on Beta.")

	p, _, store := newPipeline(t, dir, &promptLLM{})
	ctx := context.Background()

	// Simulate an interrupted run that already processed a.md and recorded a
	// top-level error.
	cp := checkpoint.New("run-old", "files")
	cp.Phase = PhaseExtracting
	cp.MarkProcessed("a.md")
	cp.Errors = append(cp.Errors, "llm timeout")
	require.NoError(t, store.Save(ctx, cp))

	result, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "run-old", result.RunID)
	assert.Equal(t, 1, result.DocumentsSkipped)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, []string{"llm timeout"}, result.Errors)
}

func TestDeltaUpdateDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "store.go", `package store

type Store struct{}
`)
	writeFile(t, dir, "util.go", `package store

func Helper() {}
`)

	p, g, _ := newPipeline(t, dir, nil)
	ctx := context.Background()

	_, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	before := g.Stats()

	result, err := p.DeltaUpdate(ctx, []string{"store.go"}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)

	after := g.Stats()
	assert.Equal(t, before.NodeCount, after.NodeCount)
	assert.Equal(t, before.EdgeCount, after.EdgeCount)
	assert.NotNil(t, g.FindEntityByName("Store"))
	assert.NotNil(t, g.FindEntityByName("Helper"))
}

func TestRunPersistsGraph(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Alpha depends on Beta.")
	graphPath := filepath.Join(t.TempDir(), "graph.json")

	p, _, _ := newPipeline(t, dir, &promptLLM{}, WithGraphPath(graphPath))
	_, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	loaded := graph.New(graph.WithLogger(log.NopLogger{}))
	require.NoError(t, loaded.LoadFromJSON(graphPath))
	assert.NotNil(t, loaded.FindEntityByName("Alpha"))
}

func TestRunConcurrentExtraction(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md", "e.md", "f.md"} {
		writeFile(t, dir, name, "Alpha depends on Beta.")
	}

	p, g, _ := newPipeline(t, dir, &promptLLM{}, WithMaxConcurrentExtractions(4))
	result, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6, result.DocumentsProcessed)

	// Same entities from every file merged into single nodes with one
	// citation per file.
	alpha := g.FindEntityByName("Alpha")
	require.NotNil(t, alpha)
	assert.Len(t, alpha.Citations, 6)
}

func TestRunMaxDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Alpha.")
	writeFile(t, dir, "b.md", "Beta.")
	writeFile(t, dir, "c.md", "Gamma.")

	p, _, _ := newPipeline(t, dir, &promptLLM{})
	result, err := p.Run(context.Background(), RunOptions{MaxDocuments: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsProcessed)
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Alpha.")

	p, _, _ := newPipeline(t, dir, &promptLLM{})
	ctx := context.Background()

	_, err := p.Status(ctx)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	_, err = p.Run(ctx, RunOptions{})
	require.NoError(t, err)

	cp, err := p.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, cp.Phase)
	assert.True(t, cp.Completed)
}

func TestResetDiscardsCheckpoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Alpha.")

	p, _, _ := newPipeline(t, dir, &promptLLM{})
	ctx := context.Background()

	res, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocumentsProcessed)

	require.NoError(t, p.Reset(ctx))
	_, err = p.Status(ctx)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	// Without the carried checkpoint the document is processed again.
	res, err = p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocumentsProcessed)
	assert.Zero(t, res.DocumentsSkipped)
}
