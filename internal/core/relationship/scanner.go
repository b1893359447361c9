// Package relationship evaluates every unordered pair of a collection's
// members and stores the relationships the model affirms.
package relationship

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/genai/internal/apperr"
	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core/batch"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/llm"
	"github.com/agenthands/genai/internal/metrics"
	"github.com/agenthands/genai/internal/sequence"
	"github.com/agenthands/genai/internal/store"
)

// Stores groups the persistence collaborators of a scan.
type Stores struct {
	Entities      store.EntityStore
	Configs       store.ConfigStore
	Relationships store.RelationshipStore
	Results       store.ResultStore
}

type Scanner struct {
	stores      Stores
	invoker     llm.ModelInvoker
	ids         sequence.Generator
	cfg         config.ScanConfig
	taskTimeout time.Duration
	prompt      string
	logger      *zap.Logger
}

// NewScanner builds a scanner. prompt must hold one %s for the comma
// separated candidate types.
func NewScanner(stores Stores, invoker llm.ModelInvoker, ids sequence.Generator, cfg config.ScanConfig, taskTimeout time.Duration, prompt string, logger *zap.Logger) *Scanner {
	return &Scanner{
		stores:      stores,
		invoker:     invoker,
		ids:         ids,
		cfg:         cfg,
		taskTimeout: taskTimeout,
		prompt:      prompt,
		logger:      logger,
	}
}

type pairState int

const (
	pairRejected pairState = iota
	pairAffirmed
	pairErrored
)

func (s pairState) String() string {
	switch s {
	case pairAffirmed:
		return "affirmed"
	case pairErrored:
		return "errored"
	default:
		return "rejected"
	}
}

type pair struct {
	a, b model.Entity
}

type pairOutcome struct {
	state          pairState
	relationshipID int64
	rationaleID    *int64
}

// Scan judges every pair of the collection's members. The collection and the
// configuration are resolved before any model call; pair failures are logged
// and counted in PairsFailed.
func (s *Scanner) Scan(ctx context.Context, collectionID, configID int64, candidateTypes []string) (model.ScanResult, error) {
	if _, err := batch.FindCollection(ctx, s.stores.Entities, collectionID); err != nil {
		metrics.BatchRunsTotal.WithLabelValues(metrics.KindRelationship, "rejected").Inc()
		return model.ScanResult{}, err
	}
	mc, err := batch.FindConfiguration(ctx, s.stores.Configs, configID)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues(metrics.KindRelationship, "rejected").Inc()
		return model.ScanResult{}, err
	}
	candidates := s.candidates(candidateTypes)

	members, err := s.stores.Entities.FindCollectionMembers(ctx, collectionID)
	if err != nil {
		return model.ScanResult{}, apperr.Internal(err, "failed to load members of collection %d", collectionID)
	}

	pairs := enumeratePairs(members)
	if len(pairs) == 0 {
		metrics.BatchRunsTotal.WithLabelValues(metrics.KindRelationship, "empty").Inc()
		return model.ScanResult{RelationshipIDs: []int64{}, RationaleIDs: []int64{}}, nil
	}

	batchID, err := s.ids.Next(ctx)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues(metrics.KindRelationship, "rejected").Inc()
		return model.ScanResult{}, apperr.Wrap(err, apperr.CodeUnavailable, "failed to allocate batch id")
	}

	s.logger.Info("Starting relationship scan",
		zap.Int64("batch_id", batchID),
		zap.Int64("collection_id", collectionID),
		zap.Int("members", len(members)),
		zap.Int("pairs", len(pairs)),
		zap.Strings("types", candidates))

	start := time.Now()
	outcomes := s.dispatch(ctx, pairs, candidates, *mc, batchID)
	elapsed := time.Since(start)

	result := aggregate(batchID, outcomes)

	metrics.BatchRunsTotal.WithLabelValues(metrics.KindRelationship, "ok").Inc()
	metrics.BatchDuration.WithLabelValues(metrics.KindRelationship).Observe(elapsed.Seconds())
	s.logger.Info("Relationship scan finished",
		zap.Int64("batch_id", batchID),
		zap.Int("relationships", result.RelationshipCount),
		zap.Int("pairs_failed", result.PairsFailed),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

// candidates trims and deduplicates the requested types, falling back to the
// configured vocabulary.
func (s *Scanner) candidates(requested []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range requested {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	if len(out) > 0 {
		return out
	}
	if len(s.cfg.DefaultTypes) > 0 {
		return s.cfg.DefaultTypes
	}
	return config.DefaultRelationshipTypes
}

// enumeratePairs lists (i, j) with i < j in row-major order.
func enumeratePairs(members []model.Entity) []pair {
	n := len(members)
	if n < 2 {
		return nil
	}
	pairs := make([]pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{a: members[i], b: members[j]})
		}
	}
	return pairs
}

func (s *Scanner) dispatch(ctx context.Context, pairs []pair, candidates []string, mc model.ModelConfiguration, batchID int64) []pairOutcome {
	systemPrompt := fmt.Sprintf(s.prompt, strings.Join(candidates, ", "))
	var schema *llm.ResponseSchema
	if s.mode() == ParseStrict {
		schema = &llm.ResponseSchema{Name: "relationship_judgment", Schema: JudgmentSchema(candidates)}
	}

	outcomes := make([]pairOutcome, len(pairs))

	var g errgroup.Group
	g.SetLimit(max(s.cfg.Concurrency, 1))

	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				s.logPairFailure(batchID, p, err)
				outcomes[i] = pairOutcome{state: pairErrored}
				metrics.ScanPairsTotal.WithLabelValues(pairErrored.String()).Inc()
				return nil
			}

			metrics.BatchInflight.WithLabelValues(metrics.KindRelationship).Inc()
			defer metrics.BatchInflight.WithLabelValues(metrics.KindRelationship).Dec()

			outcomes[i] = s.evaluate(ctx, p, systemPrompt, schema, candidates, mc, batchID)
			metrics.ScanPairsTotal.WithLabelValues(outcomes[i].state.String()).Inc()
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func (s *Scanner) mode() ParseMode {
	if ParseMode(s.cfg.ParseMode) == ParseLenient {
		return ParseLenient
	}
	return ParseStrict
}

func (s *Scanner) evaluate(ctx context.Context, p pair, systemPrompt string, schema *llm.ResponseSchema, candidates []string, mc model.ModelConfiguration, batchID int64) pairOutcome {
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}
	ctx = llm.WithCallContext(ctx, batchID, fmt.Sprintf("relationship_scan:%d:%d", p.a.ID, p.b.ID))

	req := llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt: fmt.Sprintf("Entity 1:\n%s\n\nEntity 2:\n%s\n\nAnalyze the relationship between these entities.",
			p.a.PromptPayload(), p.b.PromptPayload()),
		Config: mc,
		Schema: schema,
	}

	verdict, raw, err := s.judge(ctx, req, candidates)
	if err != nil {
		s.logPairFailure(batchID, p, err)
		return pairOutcome{state: pairErrored}
	}
	if !verdict.Affirmed {
		return pairOutcome{state: pairRejected}
	}

	attrs := model.Attributes{
		model.RelAttrBatchID:     batchID,
		model.RelAttrModelConfig: mc.ID,
	}
	if verdict.HasConfidence {
		attrs[model.RelAttrConfidence] = verdict.Confidence
	}
	if verdict.Explanation != "" {
		attrs[model.RelAttrExplanation] = verdict.Explanation
	}
	if verdict.TypeInferred {
		attrs[model.RelAttrTypeInferred] = true
	}

	rel, err := s.stores.Relationships.SaveRelationship(ctx, model.RelationshipRecord{
		RelationshipType: verdict.Type,
		SourceType:       model.EndpointItem,
		SourceID:         p.a.ID,
		TargetType:       model.EndpointItem,
		TargetID:         p.b.ID,
		Name:             fmt.Sprintf("AI-Generated relationship between item %d and item %d", p.a.ID, p.b.ID),
		Attributes:       attrs,
	})
	if err != nil {
		s.logPairFailure(batchID, p, fmt.Errorf("save relationship: %w", err))
		return pairOutcome{state: pairErrored}
	}

	out := pairOutcome{state: pairAffirmed, relationshipID: rel.ID}

	content := verdict.Explanation
	if content == "" {
		content = strings.TrimSpace(raw)
	}
	rationale, err := s.stores.Results.SaveSummary(ctx, model.SummaryRecord{
		EntityID:             rel.ID,
		EntityType:           model.SummaryOfRelationship,
		Name:                 fmt.Sprintf("Analysis of relationship %d", rel.ID),
		Content:              content,
		BatchID:              batchID,
		ModelConfigurationID: mc.ID,
	})
	if err != nil {
		// The edge is already stored; keep it and report the missing rationale.
		s.logger.Warn("Failed to save relationship rationale",
			zap.Int64("batch_id", batchID),
			zap.Int64("relationship_id", rel.ID),
			zap.Error(err))
		return out
	}
	out.rationaleID = &rationale.ID
	return out
}

// judge asks the model for a verdict. Invocation errors end the pair at once;
// strict-mode schema violations are re-asked up to MaxAttempts times.
func (s *Scanner) judge(ctx context.Context, req llm.Request, candidates []string) (Verdict, string, error) {
	attempts := max(s.cfg.MaxAttempts, 1)
	mode := s.mode()
	basePrompt := req.UserPrompt

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := s.invoker.Generate(ctx, req)
		if err != nil {
			return Verdict{}, "", fmt.Errorf("generate judgment: %w", err)
		}
		verdict, err := ParseJudgment(resp.Text, candidates, mode)
		if err == nil {
			return verdict, resp.Text, nil
		}
		lastErr = err
		s.logger.Debug("Judgment rejected, asking again",
			zap.Int("attempt", attempt),
			zap.Error(err))
		req.UserPrompt = fmt.Sprintf("%s\n\nYour previous answer was invalid (%v). Respond with the JSON object only.", basePrompt, err)
	}
	return Verdict{}, "", fmt.Errorf("no valid judgment after %d attempts: %w", attempts, lastErr)
}

func (s *Scanner) logPairFailure(batchID int64, p pair, err error) {
	s.logger.Warn("Relationship pair failed",
		zap.Int64("batch_id", batchID),
		zap.Int64s("pair", []int64{p.a.ID, p.b.ID}),
		zap.Error(err))
}

func aggregate(batchID int64, outcomes []pairOutcome) model.ScanResult {
	result := model.ScanResult{
		BatchID:         batchID,
		RelationshipIDs: []int64{},
		RationaleIDs:    []int64{},
		PairsEvaluated:  len(outcomes),
	}
	for _, o := range outcomes {
		switch o.state {
		case pairAffirmed:
			result.RelationshipIDs = append(result.RelationshipIDs, o.relationshipID)
			if o.rationaleID != nil {
				result.RationaleIDs = append(result.RationaleIDs, *o.rationaleID)
			}
		case pairErrored:
			result.PairsFailed++
		}
	}
	result.RelationshipCount = len(result.RelationshipIDs)
	return result
}
