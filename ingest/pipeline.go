// Package ingest runs the document-to-graph pipeline: list documents from a
// source, classify them, extract entities and relations (tree-sitter for
// code, LLM for prose), link relations once all entities exist, and persist
// the graph. Progress is checkpointed per document so interrupted runs
// resume instead of restarting.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tracewire/inventorygraph/checkpoint"
	"github.com/tracewire/inventorygraph/extract"
	"github.com/tracewire/inventorygraph/graph"
	"github.com/tracewire/inventorygraph/log"
	"github.com/tracewire/inventorygraph/parser"
	"github.com/tracewire/inventorygraph/source"
	"github.com/tracewire/inventorygraph/taxonomy"
)

// Pipeline phases, in order. A run can move to PhaseFailed from any phase.
const (
	PhasePending     = "pending"
	PhaseClassifying = "classifying"
	PhaseExtracting  = "extracting"
	PhaseLinking     = "linking"
	PhasePersisting  = "persisting"
	PhaseCompleted   = "completed"
	PhaseFailed      = "failed"
)

// DefaultMaxAttempts is the retry ceiling: a file that failed this many times
// is skipped until retried with Force.
const DefaultMaxAttempts = 3

// fact statements longer than this are truncated for use as entity names; the
// full statement stays in properties.
const maxFactNameLength = 200

// Pipeline ingests documents from one source into a knowledge graph.
type Pipeline struct {
	graph      *graph.KnowledgeGraph
	source     source.Source
	store      checkpoint.Store
	policy     taxonomy.Policy
	guardrails extract.Guardrails
	logger     log.Logger

	classifier *extract.DocumentClassifier
	entities   *extract.EntityExtractor
	relations  *extract.RelationExtractor
	facts      *extract.FactExtractor
	parser     *parser.CodeParser
	chunker    *source.Chunker

	graphPath        string
	autoSave         bool
	extractRelations bool
	extractFacts     bool
	maxConcurrent    int
	maxAttempts      int

	// mu serializes graph mutation and checkpoint writes; extraction itself
	// runs concurrently.
	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCheckpointStore sets the checkpoint store. Without one the pipeline
// runs without resumability.
func WithCheckpointStore(store checkpoint.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithPolicy sets the taxonomy policy.
func WithPolicy(policy taxonomy.Policy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithGuardrails sets the extraction guardrails.
func WithGuardrails(g extract.Guardrails) Option {
	return func(p *Pipeline) { p.guardrails = g }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithGraphPath enables saving the graph to path at the end of each run.
func WithGraphPath(path string) Option {
	return func(p *Pipeline) {
		p.graphPath = path
		p.autoSave = path != ""
	}
}

// WithRelationExtraction toggles LLM relation extraction for prose documents.
func WithRelationExtraction(enabled bool) Option {
	return func(p *Pipeline) { p.extractRelations = enabled }
}

// WithFactExtraction toggles fact extraction for documentation and tickets.
func WithFactExtraction(enabled bool) Option {
	return func(p *Pipeline) { p.extractFacts = enabled }
}

// WithMaxConcurrentExtractions bounds how many documents are extracted at
// once. Values below 1 mean sequential.
func WithMaxConcurrentExtractions(n int) Option {
	return func(p *Pipeline) { p.maxConcurrent = n }
}

// WithMaxAttempts overrides the per-file retry ceiling.
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) { p.maxAttempts = n }
}

// WithChunker sets the chunker used to split oversized prose documents
// before LLM extraction.
func WithChunker(c *source.Chunker) Option {
	return func(p *Pipeline) { p.chunker = c }
}

// New creates a Pipeline. A nil llm disables the LLM extractors; code is
// still parsed with tree-sitter.
func New(g *graph.KnowledgeGraph, src source.Source, llm extract.LLM, opts ...Option) *Pipeline {
	p := &Pipeline{
		graph:            g,
		source:           src,
		policy:           taxonomy.Default(),
		guardrails:       extract.DefaultGuardrails(),
		logger:           log.Default(),
		extractRelations: true,
		extractFacts:     true,
		maxConcurrent:    1,
		maxAttempts:      DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.classifier = extract.NewDocumentClassifier(llm, p.guardrails, p.logger)
	p.parser = parser.New(parser.WithLogger(p.logger))
	if llm != nil {
		p.entities = extract.NewEntityExtractor(llm, p.policy, p.guardrails, p.logger)
		p.relations = extract.NewRelationExtractor(llm, p.policy, p.guardrails, p.logger)
		p.facts = extract.NewFactExtractor(llm, p.guardrails, p.logger)
	}
	return p
}

// RunOptions control a single ingestion run.
type RunOptions struct {
	Branch       string
	Whitelist    []string
	Blacklist    []string
	MaxDocuments int
	// Force bypasses the per-file retry ceiling.
	Force bool
}

// Result summarizes one run.
type Result struct {
	RunID              string
	Phase              string
	DocumentsProcessed int
	DocumentsSkipped   int
	DocumentsFailed    int
	EntitiesAdded      int
	RelationsAdded     int
	Duration           time.Duration
	FailedFiles        []checkpoint.FileFailure
	Errors             []string
}

// pendingRelation is a relation candidate by entity name, resolved against
// the whole graph during the linking phase so cross-file targets connect.
type pendingRelation struct {
	source     string
	target     string
	relType    string
	confidence float64
}

// Run ingests every listed document. Documents already recorded as processed
// in an unfinished checkpoint are skipped; failed documents are retried until
// the attempt ceiling.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := time.Now()

	cp, err := p.openCheckpoint(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: cp.RunID}
	statsBefore := p.graph.Stats()

	if err := p.setPhase(ctx, cp, PhaseClassifying); err != nil {
		return nil, err
	}

	docs, err := p.source.ListDocuments(ctx, opts.Branch, opts.Whitelist, opts.Blacklist)
	if err != nil {
		p.fail(ctx, cp, err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if opts.MaxDocuments > 0 && len(docs) > opts.MaxDocuments {
		docs = docs[:opts.MaxDocuments]
	}
	p.logger.Info("ingestion run %s: %d documents from %s", cp.RunID, len(docs), p.source.Name())

	kinds := make(map[string]string, len(docs))
	for _, doc := range docs {
		kind, err := p.classifier.Classify(ctx, doc)
		if err != nil {
			p.logger.Warn("classification failed for %s: %v", doc.FilePath, err)
			kind = extract.KindUnknown
		}
		kinds[doc.FilePath] = kind
	}

	if err := p.setPhase(ctx, cp, PhaseExtracting); err != nil {
		return nil, err
	}

	var pending []pendingRelation
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(p.concurrency())

	for _, doc := range docs {
		if cp.IsProcessed(doc.FilePath) {
			result.DocumentsSkipped++
			continue
		}
		if !opts.Force && cp.Attempts(doc.FilePath) >= p.maxAttempts {
			p.logger.Warn("skipping %s: failed %d times, retry with force", doc.FilePath, cp.Attempts(doc.FilePath))
			result.DocumentsSkipped++
			continue
		}

		doc := doc
		grp.Go(func() error {
			rels, err := p.processDocument(grpCtx, doc, kinds[doc.FilePath])

			p.mu.Lock()
			defer p.mu.Unlock()

			if err != nil {
				cp.RecordFailure(doc.FilePath, err)
				result.DocumentsFailed++
				p.saveCheckpoint(ctx, cp)
				if p.guardrails.SkipOnError {
					p.logger.Warn("skipping %s after error: %v", doc.FilePath, err)
					return nil
				}
				return fmt.Errorf("failed to process %s: %w", doc.FilePath, err)
			}

			pending = append(pending, rels...)
			cp.MarkProcessed(doc.FilePath)
			result.DocumentsProcessed++
			p.saveCheckpoint(ctx, cp)
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		p.fail(ctx, cp, err)
		return nil, err
	}

	if err := p.setPhase(ctx, cp, PhaseLinking); err != nil {
		return nil, err
	}
	p.linkPending(pending)

	if err := p.setPhase(ctx, cp, PhasePersisting); err != nil {
		return nil, err
	}
	if p.autoSave {
		if err := p.graph.DumpToJSON(p.graphPath); err != nil {
			p.fail(ctx, cp, err)
			return nil, fmt.Errorf("failed to persist graph: %w", err)
		}
	}

	statsAfter := p.graph.Stats()
	cp.EntitiesAdded = statsAfter.NodeCount - statsBefore.NodeCount
	cp.RelationsAdded = statsAfter.EdgeCount - statsBefore.EdgeCount
	cp.Completed = true
	if err := p.setPhase(ctx, cp, PhaseCompleted); err != nil {
		return nil, err
	}

	result.Phase = cp.Phase
	result.EntitiesAdded = cp.EntitiesAdded
	result.RelationsAdded = cp.RelationsAdded
	result.FailedFiles = cp.FailedFiles
	result.Errors = cp.Errors
	result.Duration = time.Since(start)
	p.logger.Info("ingestion run %s completed: %d processed, %d failed, +%d entities, +%d relations",
		cp.RunID, result.DocumentsProcessed, result.DocumentsFailed, result.EntitiesAdded, result.RelationsAdded)
	return result, nil
}

// openCheckpoint resumes an unfinished checkpoint or starts a fresh one.
func (p *Pipeline) openCheckpoint(ctx context.Context) (*checkpoint.Checkpoint, error) {
	if p.store == nil {
		return checkpoint.New(uuid.NewString(), p.source.Name()), nil
	}
	cp, err := p.store.Load(ctx, p.source.Name())
	switch {
	case err == nil && !cp.Completed:
		p.logger.Info("resuming run %s: %d documents already processed", cp.RunID, cp.DocumentsProcessed)
		return cp, nil
	case err == nil || errors.Is(err, checkpoint.ErrNotFound):
		fresh := checkpoint.New(uuid.NewString(), p.source.Name())
		if err == nil {
			// Ingestion is incremental: processed files and attempt counts
			// carry forward, so a new run only touches new and failed
			// documents. Changed files go through DeltaUpdate.
			fresh.ProcessedFiles = cp.ProcessedFiles
			fresh.DocumentsProcessed = cp.DocumentsProcessed
			fresh.FailedFiles = cp.FailedFiles
		}
		return fresh, nil
	default:
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
}

func (p *Pipeline) concurrency() int {
	if p.maxConcurrent < 1 {
		return 1
	}
	return p.maxConcurrent
}

func (p *Pipeline) setPhase(ctx context.Context, cp *checkpoint.Checkpoint, phase string) error {
	cp.Phase = phase
	if p.store == nil {
		return nil
	}
	cp.Touch()
	if err := p.store.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// saveCheckpoint persists progress, logging rather than failing: losing one
// checkpoint write only costs re-extracting a document on resume.
func (p *Pipeline) saveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) {
	if p.store == nil {
		return
	}
	cp.Touch()
	if err := p.store.Save(ctx, cp); err != nil {
		p.logger.Error("failed to save checkpoint: %v", err)
	}
}

func (p *Pipeline) fail(ctx context.Context, cp *checkpoint.Checkpoint, cause error) {
	cp.Phase = PhaseFailed
	cp.Errors = append(cp.Errors, cause.Error())
	p.saveCheckpoint(ctx, cp)
}

// processDocument extracts one document and adds its entities to the graph.
// Relations are returned as name pairs for the linking phase.
func (p *Pipeline) processDocument(ctx context.Context, doc source.Document, kind string) ([]pendingRelation, error) {
	if kind == extract.KindCode && p.parser.Supports(doc.FilePath) {
		return p.processCode(ctx, doc)
	}
	return p.processProse(ctx, doc, kind)
}

// processCode uses the tree-sitter parser. The file itself becomes a file
// entity; imported modules become module entities so import edges resolve.
func (p *Pipeline) processCode(ctx context.Context, doc source.Document) ([]pendingRelation, error) {
	parsed, err := p.parser.Parse(ctx, doc.FilePath, []byte(doc.Content))
	if err != nil {
		return nil, err
	}

	hash := graph.ContentHash(doc.Content)

	p.mu.Lock()
	fileID := p.graph.AddEntity(
		graph.EntityID(doc.FilePath, "file", ""),
		doc.FilePath,
		"file",
		&graph.Citation{FilePath: doc.FilePath, SourceToolkit: p.source.Name(), DocID: doc.ID, ContentHash: hash},
		map[string]any{"language": parsed.Language},
	)

	symbolIDs := make(map[string]string, len(parsed.Symbols))
	for _, sym := range parsed.Symbols {
		id := p.graph.AddEntity(
			p.entityID(sym.Name, sym.Type, doc.FilePath),
			sym.Name,
			sym.Type,
			&graph.Citation{
				FilePath:      doc.FilePath,
				LineStart:     sym.LineStart,
				LineEnd:       sym.LineEnd,
				SourceToolkit: p.source.Name(),
				DocID:         doc.ID,
				ContentHash:   hash,
			},
			map[string]any{"exported": sym.Exported},
		)
		symbolIDs[sym.Name] = id
		p.graph.AddTaggedRelation(fileID, id, "contains", p.source.Name(), nil)
	}
	p.mu.Unlock()

	var pending []pendingRelation
	for _, rel := range parsed.Relations {
		if rel.Type == "imports" {
			p.mu.Lock()
			moduleID := p.graph.AddEntity(
				graph.EntityID(rel.Target, "module", ""),
				rel.Target,
				"module",
				&graph.Citation{FilePath: doc.FilePath, SourceToolkit: p.source.Name(), DocID: doc.ID},
				nil,
			)
			p.graph.AddTaggedRelation(fileID, moduleID, "imports", p.source.Name(), nil)
			p.mu.Unlock()
			continue
		}
		pending = append(pending, pendingRelation{source: rel.Source, target: rel.Target, relType: rel.Type})
	}
	return pending, nil
}

// processProse runs the LLM extractors. Oversized documents are chunked so
// content beyond the guardrails cap still gets extracted.
func (p *Pipeline) processProse(ctx context.Context, doc source.Document, kind string) ([]pendingRelation, error) {
	if p.entities == nil {
		return nil, nil
	}

	var pending []pendingRelation
	hash := graph.ContentHash(doc.Content)

	for _, chunk := range p.chunks(doc) {
		entities, err := p.entities.Extract(ctx, chunk)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		for _, e := range entities {
			props := graph.FilterProperties(e.Properties)
			if e.Description != "" {
				if props == nil {
					props = map[string]any{}
				}
				props["description"] = e.Description
			}
			p.graph.AddEntity(
				p.entityID(e.Name, e.Type, doc.FilePath),
				e.Name,
				e.Type,
				&graph.Citation{
					FilePath:      doc.FilePath,
					LineStart:     e.LineStart,
					LineEnd:       e.LineEnd,
					SourceToolkit: p.source.Name(),
					DocID:         doc.ID,
					ContentHash:   hash,
				},
				props,
			)
		}
		p.mu.Unlock()

		if p.extractRelations && p.relations != nil {
			relations, err := p.relations.Extract(ctx, chunk, entities)
			if err != nil {
				return nil, err
			}
			for _, r := range relations {
				pending = append(pending, pendingRelation{
					source:     r.Source,
					target:     r.Target,
					relType:    r.Type,
					confidence: r.Confidence,
				})
			}
		}
	}

	if p.extractFacts && p.facts != nil && (kind == extract.KindDocumentation || kind == extract.KindTicket) {
		facts, err := p.facts.Extract(ctx, doc)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		for _, f := range facts {
			name := f.Statement
			if len(name) > maxFactNameLength {
				name = name[:maxFactNameLength]
			}
			p.graph.AddEntity(
				graph.EntityID(name, "fact", doc.FilePath),
				name,
				"fact",
				&graph.Citation{FilePath: doc.FilePath, SourceToolkit: p.source.Name(), DocID: doc.ID, ContentHash: hash},
				map[string]any{"statement": f.Statement, "subject": f.Subject, "confidence": f.Confidence},
			)
		}
		p.mu.Unlock()
		for _, f := range facts {
			if f.Subject == "" {
				continue
			}
			name := f.Statement
			if len(name) > maxFactNameLength {
				name = name[:maxFactNameLength]
			}
			pending = append(pending, pendingRelation{source: name, target: f.Subject, relType: "references", confidence: f.Confidence})
		}
	}

	return pending, nil
}

// chunks splits a document when it exceeds the guardrails document cap, so
// long documents get extracted in full rather than truncated.
func (p *Pipeline) chunks(doc source.Document) []source.Document {
	if p.chunker == nil || p.guardrails.MaxDocumentChars <= 0 || len(doc.Content) <= p.guardrails.MaxDocumentChars {
		return []source.Document{doc}
	}
	parts := p.chunker.Split(doc.Content)
	out := make([]source.Document, len(parts))
	for i, part := range parts {
		out[i] = source.Document{ID: doc.ID, FilePath: doc.FilePath, Content: part, Metadata: doc.Metadata}
	}
	return out
}

// linkPending resolves relation candidates by name against the whole graph.
// Candidates whose endpoints never materialized as entities are dropped.
func (p *Pipeline) linkPending(pending []pendingRelation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	added := 0
	for _, rel := range pending {
		src := p.graph.FindEntityByName(rel.source)
		dst := p.graph.FindEntityByName(rel.target)
		if src == nil || dst == nil {
			continue
		}
		var props map[string]any
		if rel.confidence > 0 {
			props = map[string]any{"confidence": rel.confidence}
		}
		if p.graph.AddTaggedRelation(src.ID, dst.ID, rel.relType, p.source.Name(), props) {
			added++
		}
	}
	p.logger.Debug("linking resolved %d of %d relation candidates", added, len(pending))
}

// entityID derives a stable id. Types the policy never deduplicates get the
// file path as discriminator so same-named entities in different files stay
// distinct.
func (p *Pipeline) entityID(name, entityType, filePath string) string {
	entityType = taxonomy.Normalize(entityType)
	if !p.policy.CanDeduplicate(entityType) {
		return graph.EntityID(name, entityType, filePath)
	}
	return graph.EntityID(name, entityType, "")
}

// describeFailures renders failed files for error messages.
func describeFailures(failures []checkpoint.FileFailure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = fmt.Sprintf("%s (%d attempts)", f.FilePath, f.Attempts)
	}
	return strings.Join(parts, ", ")
}
