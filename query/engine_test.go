package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/poiesic/clearance/access"
	"github.com/poiesic/clearance/ai"
	"github.com/poiesic/clearance/ai/mock"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryVector is what the mock embedder returns for every question.
var queryVector = []float32{1, 0}

// vectorWithSimilarity returns a unit vector whose cosine with queryVector is sim.
func vectorWithSimilarity(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

type doc struct {
	collection core.CollectionID
	content    string
	source     string
	similarity float64
}

type fixture struct {
	repo     *badger.ChunkRepository
	provider *mock.MockProvider
	states   []State
}

func (f *fixture) embedder() *mock.MockEmbedder   { return f.provider.GetMockEmbedder() }
func (f *fixture) generator() *mock.MockGenerator { return f.provider.GetMockGenerator() }

func setupFixture(t *testing.T, docs ...doc) *fixture {
	t.Helper()
	repo, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	for _, d := range docs {
		_, err := repo.AddChunks(context.Background(), &core.Chunk{
			Collection: d.collection,
			Content:    d.content,
			Vector:     vectorWithSimilarity(d.similarity),
			Metadata:   map[string]string{core.MetadataSource: d.source},
		})
		require.NoError(t, err)
	}

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return queryVector, nil
	}
	return &fixture{
		repo:     repo,
		provider: mock.NewMockProviderWithServices(embedder, mock.NewMockGenerator()),
	}
}

func (f *fixture) engine(t *testing.T, registry access.Registry, config *Config) *Engine {
	t.Helper()
	e, err := NewEngine(registry, f.repo, f.provider, config,
		WithStateObserver(func(s State) { f.states = append(f.states, s) }),
	)
	require.NoError(t, err)
	return e
}

func TestNewEngine_RequiresDependencies(t *testing.T) {
	f := setupFixture(t)
	registry := access.DefaultRegistry()

	_, err := NewEngine(nil, f.repo, f.provider, nil)
	assert.ErrorIs(t, err, ErrRegistryRequired)
	_, err = NewEngine(registry, nil, f.provider, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewEngine(registry, f.repo, nil, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
	_, err = NewEngine(registry, f.repo, f.provider, NewConfig(WithDefaultMaxResults(0)))
	assert.Error(t, err)
}

func TestAnswerQuery_ConfidentSemanticMatch(t *testing.T) {
	f := setupFixture(t,
		doc{"marketing_docs", "Q3 campaign reached 1.2M impressions", "campaign_q3.md", 0.55},
		doc{"marketing_docs", "Channel spend breakdown for paid social", "spend.csv", 0.42},
		doc{"marketing_docs", "Brand color palette", "brand.md", 0.20},
	)
	e := f.engine(t, access.DefaultRegistry(), nil)

	result, err := e.AnswerQuery(context.Background(), "bob", "campaign performance", 0)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeAnswered, result.Outcome)
	assert.Equal(t, core.Role("marketing"), result.Role)
	assert.InDelta(t, 0.39, result.Confidence, 1e-4)
	assert.Equal(t, []core.CollectionID{"marketing_docs"}, result.SourceCollections)
	assert.ElementsMatch(t, []string{"campaign_q3.md", "spend.csv", "brand.md"}, result.Sources)
	assert.Equal(t, 3, result.DocumentsUsed)
	assert.Equal(t, []core.CollectionID{"marketing_docs", "general_docs"}, result.CollectionsSearched)
	assert.False(t, result.Diagnostics.Escalated)
	assert.Equal(t, []core.CollectionID{"general_docs"}, result.Diagnostics.CollectionsNotFound)
	assert.NotEmpty(t, result.Answer)

	call, ok := f.generator().LastCall()
	require.True(t, ok)
	assert.Contains(t, call.SystemPrompt, "'marketing' role")
	assert.Contains(t, call.UserPrompt, "Question: campaign performance")
	assert.Equal(t, 1, f.embedder().CallCount())

	assert.Equal(t, []State{
		StateUnauthenticated, StateAuthenticated, StateCollectionsResolved,
		StateRetrieving, StateSufficient, StateAssembling, StateAnswered,
	}, f.states)
}

func TestAnswerQuery_InsufficientAfterEscalation(t *testing.T) {
	f := setupFixture(t,
		doc{"general_docs", "Company picnic is in June", "events.md", 0.15},
		doc{"general_docs", "Badge office opening hours", "office.md", 0.10},
		doc{"finance_docs", "EBITDA variance analysis for Q3", "variance.md", 0.95},
	)
	e := f.engine(t, access.DefaultRegistry(), nil)

	result, err := e.AnswerQuery(context.Background(), "eve", "EBITDA variance", 0)
	require.NoError(t, err)

	assert.True(t, result.Insufficient())
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.SourceCollections)
	assert.Contains(t, result.Answer, "(employee role)")
	assert.True(t, result.Diagnostics.Escalated)
	assert.Equal(t, []string{"semantic", "lexical"}, result.Diagnostics.StrategiesRun)
	assert.Equal(t, []core.CollectionID{"general_docs"}, result.CollectionsSearched)
	assert.Zero(t, f.generator().CallCount())

	escalations := 0
	for _, s := range f.states {
		if s == StateEscalating {
			escalations++
		}
	}
	assert.Equal(t, 1, escalations)
	assert.Equal(t, StateInsufficientInformation, f.states[len(f.states)-1])
	assert.NotContains(t, f.states, StateSufficient)
}

func TestAnswerQuery_UnknownIdentity(t *testing.T) {
	f := setupFixture(t, doc{"general_docs", "anything", "a.md", 0.9})
	e := f.engine(t, access.DefaultRegistry(), nil)

	result, err := e.AnswerQuery(context.Background(), "mallory", "salary bands", 0)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, core.ErrAccessDenied)
	assert.ErrorIs(t, err, core.ErrUnknownIdentity)
	assert.Zero(t, f.embedder().CallCount())
	assert.Zero(t, f.generator().CallCount())
	assert.Equal(t, []State{StateUnauthenticated}, f.states)
}

func TestAnswerQuery_RoleWithoutCollections(t *testing.T) {
	f := setupFixture(t, doc{"general_docs", "anything", "a.md", 0.9})
	registry, err := access.NewStaticRegistry(
		map[string]core.Role{"temp": "contractor"},
		access.DefaultRoles(),
	)
	require.NoError(t, err)
	e := f.engine(t, registry, nil)

	_, err = e.AnswerQuery(context.Background(), "temp", "anything", 0)
	assert.ErrorIs(t, err, core.ErrAccessDenied)
	assert.ErrorIs(t, err, core.ErrNoCollections)
	assert.Zero(t, f.embedder().CallCount())
}

func TestAnswerQuery_MissingCollectionIsSkipped(t *testing.T) {
	f := setupFixture(t, doc{"general_docs", "Expense reports are due monthly", "expenses.md", 0.9})
	registry, err := access.NewStaticRegistry(
		map[string]core.Role{"lena": "legal"},
		map[core.Role][]core.CollectionID{"legal": {"legal_docs", "general_docs"}},
	)
	require.NoError(t, err)
	e := f.engine(t, registry, nil)

	result, err := e.AnswerQuery(context.Background(), "lena", "expense deadlines", 0)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeAnswered, result.Outcome)
	assert.Equal(t, []core.CollectionID{"legal_docs"}, result.Diagnostics.CollectionsNotFound)
	assert.Equal(t, []core.CollectionID{"general_docs"}, result.SourceCollections)
}

func TestAnswerQuery_GenerationFailure(t *testing.T) {
	f := setupFixture(t, doc{"hr_docs", "Parental leave is 16 weeks", "leave.md", 0.8})
	f.generator().GenerateFunc = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "", errors.New("model overloaded")
	}
	e := f.engine(t, access.DefaultRegistry(), nil)

	result, err := e.AnswerQuery(context.Background(), "charlie", "parental leave", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrGenerationUnavailable)
	assert.NotErrorIs(t, err, core.ErrAccessDenied)

	require.NotNil(t, result)
	assert.Equal(t, core.OutcomeGenerationFailed, result.Outcome)
	assert.False(t, result.Insufficient())
	assert.InDelta(t, 0.8, result.Confidence, 1e-4)
	assert.Equal(t, []string{"leave.md"}, result.Sources)
	assert.Contains(t, result.Context, "Parental leave is 16 weeks")
	assert.Empty(t, result.Answer)
}

func TestAnswerQuery_GenerationTimeout(t *testing.T) {
	f := setupFixture(t, doc{"hr_docs", "Parental leave is 16 weeks", "leave.md", 0.8})
	f.generator().GenerateFunc = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	e := f.engine(t, access.DefaultRegistry(), NewConfig(WithGenerateTimeout(20*time.Millisecond)))

	_, err := e.AnswerQuery(context.Background(), "charlie", "parental leave", 0)
	assert.ErrorIs(t, err, ai.ErrGenerationUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnswerQuery_EmptyQuestion(t *testing.T) {
	f := setupFixture(t)
	e := f.engine(t, access.DefaultRegistry(), nil)

	_, err := e.AnswerQuery(context.Background(), "alice", "   ", 0)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Zero(t, f.embedder().CallCount())
}

func TestRetrieve_SkipsGeneration(t *testing.T) {
	f := setupFixture(t,
		doc{"finance_docs", "Q3 revenue grew 12%", "q3.md", 0.7},
		doc{"general_docs", "Holiday calendar", "holidays.md", 0.3},
	)
	e := f.engine(t, access.DefaultRegistry(), nil)

	report, err := e.Retrieve(context.Background(), "alice", "revenue", 1)
	require.NoError(t, err)

	require.Len(t, report.Candidates, 1)
	assert.Equal(t, "q3.md", report.Candidates[0].Source())
	assert.Equal(t, 1, report.Diagnostics.DocumentsUsed)
	assert.Equal(t, 2, report.Diagnostics.DocumentsScanned)
	assert.Zero(t, f.generator().CallCount())
}

func TestAnswerQuery_SourcesStayWithinRole(t *testing.T) {
	registry := access.DefaultRegistry()
	var docs []doc
	for _, c := range registry.Universe() {
		for i := range 3 {
			docs = append(docs, doc{
				collection: c,
				content:    fmt.Sprintf("%s policy and agile process notes %d", c, i),
				source:     fmt.Sprintf("%s-%d.md", c, i),
				similarity: 0.3 + 0.2*float64(i),
			})
		}
	}

	paths := map[string]func(*fixture){
		"semantic": func(*fixture) {},
		"lexical and domain fallback": func(f *fixture) {
			f.embedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
				return nil, ai.ErrEmbeddingUnavailable
			}
		},
	}

	for name, prepare := range paths {
		t.Run(name, func(t *testing.T) {
			for _, user := range registry.Users() {
				f := setupFixture(t, docs...)
				prepare(f)
				e := f.engine(t, registry, nil)

				result, err := e.AnswerQuery(context.Background(), user, "policy", 0)
				require.NoError(t, err, user)

				role, err := registry.Authorize(user)
				require.NoError(t, err)
				allowed := registry.CollectionsFor(role)
				require.NotEmpty(t, result.SourceCollections, user)
				for _, c := range result.SourceCollections {
					assert.Contains(t, allowed, c, "user %s saw %s", user, c)
				}
			}
		})
	}
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestNewEngine_LoggerReachesRetrievalAndAssembly(t *testing.T) {
	f := setupFixture(t,
		doc{"general_docs", "Company picnic is in June", "events.md", 0.15},
	)
	logger, buf := bufferLogger()
	e, err := NewEngine(access.DefaultRegistry(), f.repo, f.provider, nil, WithLogger(logger))
	require.NoError(t, err)

	_, err = e.AnswerQuery(context.Background(), "eve", "picnic in June", 0)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "low confidence, escalating to fallback strategies")
	assert.Contains(t, out, "semantic search finished")
	assert.Contains(t, out, "context assembled")
	assert.Contains(t, out, "query finished")
}

func TestAnswerQuery_GenerationFailureIsSummarized(t *testing.T) {
	f := setupFixture(t, doc{"hr_docs", "Parental leave is 16 weeks", "leave.md", 0.8})
	f.generator().GenerateFunc = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "", errors.New("model overloaded")
	}
	logger, buf := bufferLogger()
	e, err := NewEngine(access.DefaultRegistry(), f.repo, f.provider, nil, WithLogger(logger))
	require.NoError(t, err)

	_, err = e.AnswerQuery(context.Background(), "charlie", "parental leave", 0)
	require.ErrorIs(t, err, ai.ErrGenerationUnavailable)

	out := buf.String()
	assert.Contains(t, out, "answer generation failed")
	assert.Contains(t, out, "query finished")
	assert.Contains(t, out, "outcome=generation_failed")
}
