package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/queryplan"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/executor"
	"github.com/flotatrack/fleet-assistant/modules/assistant/nlp"
	"github.com/flotatrack/fleet-assistant/modules/assistant/planner"
	"github.com/flotatrack/fleet-assistant/pkg/composables"
	"github.com/flotatrack/fleet-assistant/pkg/eventbus"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
	"github.com/flotatrack/fleet-assistant/pkg/metrics"
	"github.com/flotatrack/fleet-assistant/pkg/serrors"
)

var (
	validate = validator.New()
	tracer   = otel.Tracer("fleet-assistant/assistant")
)

type QueryRequest struct {
	Message   string `validate:"max=2000"`
	UserID    int64  `validate:"gt=0"`
	CompanyID int64  `validate:"gt=0"`
}

func (r QueryRequest) Key() conversation.Key {
	return conversation.Key{UserID: r.UserID, CompanyID: r.CompanyID}
}

type PlanSummary struct {
	SQL           string
	Params        []any
	Table         string
	Explanation   string
	Complexity    float64
	EstimatedRows int
	IsMultiQuery  bool
}

type Metadata struct {
	Classifier   nlp.Source
	Complexity   int
	Sentiment    nlp.Sentiment
	Keywords     []string
	Entities     map[string][]string
	Context      nlp.Context
	RelatedTurns []string
	Plan         PlanSummary
	Rows         []executor.Row
	ErrorCode    string
}

type QueryResponse struct {
	ResponseText     string
	Intent           intent.Intent
	Confidence       float64
	ProcessingTimeMs int64
	Suggestions      []conversation.Suggestion
	Metadata         Metadata
}

type AssistantServiceConfig struct {
	Analyzer  *nlp.Analyzer
	Planner   *planner.Planner
	Executor  executor.Executor
	Memory    *MemoryService
	Responder *Responder
	EventBus  eventbus.EventBus
	// Limiter is optional; nil disables per user rate limiting.
	Limiter *limiter.Limiter
	Clock   clockwork.Clock
	Logger  *logrus.Entry
}

type AssistantService struct {
	analyzer  *nlp.Analyzer
	planner   *planner.Planner
	executor  executor.Executor
	memory    *MemoryService
	responder *Responder
	publisher eventbus.EventBus
	limiter   *limiter.Limiter
	clock     clockwork.Clock
	logger    *logrus.Entry
}

func NewAssistantService(config AssistantServiceConfig) *AssistantService {
	s := &AssistantService{
		analyzer:  config.Analyzer,
		planner:   config.Planner,
		executor:  config.Executor,
		memory:    config.Memory,
		responder: config.Responder,
		publisher: config.EventBus,
		limiter:   config.Limiter,
		clock:     config.Clock,
		logger:    config.Logger,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	return s
}

func (s *AssistantService) Memory() *MemoryService {
	return s.memory
}

// Plan analyses and plans message without executing or remembering anything.
func (s *AssistantService) Plan(ctx context.Context, message string, companyID int64) (nlp.Analysis, queryplan.Plan, error) {
	_, span := tracer.Start(ctx, "assistant.Plan")
	defer span.End()
	analysis := s.analyzer.Analyze(message)
	plan, err := s.planner.Build(analysis, companyID)
	return analysis, plan, err
}

// ProcessQuery runs one turn: analyse, plan, execute, respond and remember.
// Only invalid or rate limited requests return an error; every failure after
// that is answered with an apology.
func (s *AssistantService) ProcessQuery(ctx context.Context, req QueryRequest) (resp QueryResponse, err error) {
	start := s.clock.Now()
	ctx, span := tracer.Start(ctx, "assistant.ProcessQuery")
	defer span.End()

	logger := composables.UseLoggerOr(ctx, s.logger)

	if verr := validate.Struct(req); verr != nil {
		span.SetStatus(codes.Error, "invalid request")
		return QueryResponse{}, fmt.Errorf("%w: %s", ErrInvalidRequest, verr.Error())
	}
	key := req.Key()
	span.SetAttributes(
		attribute.Int64("assistant.user_id", req.UserID),
		attribute.Int64("assistant.company_id", req.CompanyID),
	)

	if err := s.checkRate(ctx, key); err != nil {
		span.SetStatus(codes.Error, "rate limited")
		return QueryResponse{ResponseText: s.responder.ForError(err), Intent: intent.Unknown, Confidence: nlp.MinConfidence}, err
	}

	if _, ierr := composables.UseIdentity(ctx); ierr != nil {
		ctx = composables.WithIdentity(ctx, composables.Identity{UserID: req.UserID, CompanyID: req.CompanyID})
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("assistant turn panicked")
			span.SetStatus(codes.Error, "panic")
			resp = QueryResponse{
				ResponseText:     s.responder.ForError(ErrInternal),
				Intent:           intent.Unknown,
				Confidence:       nlp.MinConfidence,
				ProcessingTimeMs: s.clock.Since(start).Milliseconds(),
				Suggestions:      []conversation.Suggestion{},
				Metadata:         Metadata{ErrorCode: ErrInternal.Code},
			}
			err = nil
		}
	}()

	_, analyzeSpan := tracer.Start(ctx, "assistant.analyze")
	analysis := s.analyzer.Analyze(req.Message)
	analyzeSpan.SetAttributes(
		attribute.String("assistant.intent", analysis.Intent.String()),
		attribute.Float64("assistant.confidence", analysis.Confidence),
	)
	analyzeSpan.End()

	related, cerr := s.memory.GetRelevantContext(ctx, key, req.Message)
	if cerr != nil {
		logger.WithError(cerr).Warn("failed to load conversation context")
	}

	meta := Metadata{
		Classifier:   analysis.Source,
		Complexity:   analysis.Complexity,
		Sentiment:    analysis.Sentiment,
		Keywords:     analysis.Keywords,
		Entities:     analysis.Entities.Texts(),
		Context:      analysis.Context,
		RelatedTurns: relatedTexts(related),
		Rows:         []executor.Row{},
	}

	var text string
	success := analysis.Intent != intent.Unknown
	plan, perr := s.planner.Build(analysis, req.CompanyID)
	switch {
	case perr != nil:
		logger.WithError(perr).Error("failed to build query plan")
		text = s.responder.Apology()
		meta.ErrorCode = serrors.Code(perr)
		success = false
	default:
		meta.Plan = summarize(plan)
		rows, xerr := s.execute(ctx, plan)
		if xerr != nil {
			logger.WithError(xerr).WithField("table", plan.FromTable).Error("query execution failed")
			span.RecordError(xerr)
			text = s.responder.ForError(executor.ErrExecution)
			meta.ErrorCode = executor.ErrExecution.Code
			success = false
			break
		}
		meta.Rows = rows
		text = s.responder.Respond(analysis, plan, rows)
	}

	s.remember(ctx, logger, key, req.Message, text, analysis, success)

	suggestions, serr := s.memory.GetSuggestions(ctx, key)
	if serr != nil {
		logger.WithError(serr).Warn("failed to compute suggestions")
	}

	elapsed := s.clock.Since(start)
	metrics.ObserveTurn(analysis.Intent.String(), success, analysis.Confidence, elapsed)
	if plan.HasSQL() {
		metrics.ObservePlan(plan.FromTable, plan.Complexity)
	}
	if s.publisher != nil {
		s.publisher.Publish(&TurnProcessedEvent{
			Key:            key,
			Intent:         analysis.Intent,
			Confidence:     analysis.Confidence,
			Success:        success,
			Table:          plan.FromTable,
			ResultCount:    len(meta.Rows),
			ProcessingTime: elapsed,
			Timestamp:      s.clock.Now(),
		})
	}

	return QueryResponse{
		ResponseText:     text,
		Intent:           analysis.Intent,
		Confidence:       analysis.Confidence,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Suggestions:      suggestions,
		Metadata:         meta,
	}, nil
}

func (s *AssistantService) checkRate(ctx context.Context, key conversation.Key) error {
	if s.limiter == nil {
		return nil
	}
	lctx, err := s.limiter.Get(ctx, key.String())
	if err != nil {
		s.logger.WithError(err).Warn("rate limiter unavailable, allowing request")
		return nil
	}
	if lctx.Reached {
		metrics.RateLimited()
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, time.Unix(lctx.Reset, 0).Format(time.RFC3339))
	}
	return nil
}

func (s *AssistantService) execute(ctx context.Context, plan queryplan.Plan) ([]executor.Row, error) {
	if !plan.HasSQL() {
		return []executor.Row{}, nil
	}
	ctx, span := tracer.Start(ctx, "assistant.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.table", plan.FromTable),
		attribute.Float64("assistant.plan_complexity", plan.Complexity),
	)
	rows, err := s.executor.Query(ctx, plan.SQL, plan.Params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("db.rows", len(rows)))
	return rows, nil
}

// remember records the user turn and the reply. Failures are logged only.
func (s *AssistantService) remember(ctx context.Context, logger *logrus.Entry, key conversation.Key, message, reply string, analysis nlp.Analysis, success bool) {
	if blank(message) {
		return
	}
	if _, err := s.memory.AddMessage(ctx, key, MessageInput{
		Sender:     conversation.SenderUser,
		Text:       strings.TrimSpace(message),
		Intent:     analysis.Intent,
		Entities:   analysis.Entities.Texts(),
		Success:    success,
		Confidence: analysis.Confidence,
	}); err != nil {
		logger.WithError(err).Warn("failed to record user turn")
		return
	}
	if _, err := s.memory.AddMessage(ctx, key, MessageInput{
		Sender:     conversation.SenderBot,
		Text:       clip(reply, conversation.MaxMessageLength),
		Intent:     analysis.Intent,
		Success:    success,
		Confidence: analysis.Confidence,
	}); err != nil {
		logger.WithError(err).Warn("failed to record bot turn")
	}
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// Forget drops the conversation of key and announces it.
func (s *AssistantService) Forget(ctx context.Context, key conversation.Key) error {
	if err := s.memory.Forget(ctx, key); err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.Publish(&MemoryForgottenEvent{Key: key, Timestamp: s.clock.Now()})
	}
	return nil
}

func summarize(plan queryplan.Plan) PlanSummary {
	return PlanSummary{
		SQL:           plan.SQL,
		Params:        plan.Params,
		Table:         plan.FromTable,
		Explanation:   plan.Explanation,
		Complexity:    plan.Complexity,
		EstimatedRows: plan.EstimatedRows,
		IsMultiQuery:  plan.IsMultiQuery,
	}
}

func relatedTexts(ctx RelevantContext) []string {
	out := make([]string, len(ctx.Related))
	for i, r := range ctx.Related {
		out[i] = r.Message.Text
	}
	return out
}
