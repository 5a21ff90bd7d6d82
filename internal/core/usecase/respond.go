package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mkoval/chatpoint/internal/core/domain"
	"github.com/mkoval/chatpoint/internal/core/ports"
)

type ChatPipelineConfig struct {
	PointsPerResponse int64
	RetrievalTopK     int
	Channels          ChannelSettings
}

// ChatPipeline is the query-time response pipeline: channel policy,
// admission control, evidence retrieval, provider fallback, billing on
// confirmed success, and channel post-processing, in that order.
type ChatPipeline struct {
	retriever     *EvidenceRetriever
	ledger        *PointsLedger
	orchestrator  *GenerationOrchestrator
	conversations ports.ConversationStore
	cfg           ChatPipelineConfig
}

func NewChatPipeline(
	retriever *EvidenceRetriever,
	ledger *PointsLedger,
	orchestrator *GenerationOrchestrator,
	conversations ports.ConversationStore,
	cfg ChatPipelineConfig,
) *ChatPipeline {
	if cfg.PointsPerResponse <= 0 {
		cfg.PointsPerResponse = 1
	}
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = 5
	}
	return &ChatPipeline{
		retriever:     retriever,
		ledger:        ledger,
		orchestrator:  orchestrator,
		conversations: conversations,
		cfg:           cfg,
	}
}

func (p *ChatPipeline) Respond(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "respond", fmt.Errorf("tenant_id is required"))
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "respond", fmt.Errorf("message is required"))
	}

	channel := req.Channel
	if channel == "" {
		channel = domain.ChannelWeb
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conversation, err := p.conversations.EnsureConversation(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}
	policy := p.cfg.Channels.PolicyFor(channel, conversation.MessageCount == 0)

	// Admission first: no retrieval or generation happens for a tenant
	// that cannot pay for the response. Storage errors fail closed.
	decision, err := p.ledger.Validate(ctx, tenantID, p.cfg.PointsPerResponse)
	if err != nil {
		return nil, fmt.Errorf("admission validate: %w", err)
	}
	if !decision.CanProceed {
		return insufficientPointsReply(decision.Balance), nil
	}

	outcome := p.produceWithBudget(ctx, tenantID, sessionID, message, req.DatasetIDs, policy)
	if outcome.err != nil {
		return p.replyForFailure(outcome.err)
	}

	// Billing happens only after confirmed generation success. A concurrent
	// request may have exhausted the balance in the meantime; the storage
	// CAS catches that and the response is withheld.
	tx, err := p.ledger.Debit(ctx, tenantID, p.cfg.PointsPerResponse, domain.TransactionMetadata{
		Channel:        string(channel),
		ConversationID: sessionID,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrInsufficientPoints) {
			balance, balanceErr := p.ledger.Balance(ctx, tenantID)
			if balanceErr != nil {
				slog.Warn("balance read after failed debit", "tenant_id", tenantID, "error", balanceErr)
			}
			return insufficientPointsReply(balance), nil
		}
		return nil, fmt.Errorf("debit points: %w", err)
	}

	p.appendExchange(ctx, tenantID, sessionID, channel, message, outcome.result.Text)

	text := outcome.result.Text
	if policy.WelcomeMessage != "" {
		text = policy.WelcomeMessage + "\n\n" + text
	}
	sources := outcome.sources
	if policy.MaxOutputChars > 0 {
		body, kept := truncateForChannel(text, sources, policy.MaxOutputChars)
		text = composeOutgoing(body, kept)
		sources = kept
	}

	balance := tx.ResultingBalance
	return &domain.ChatReply{
		Success:       true,
		Text:          text,
		Sources:       sources,
		PointsBalance: &balance,
		Warning:       decision.Warning,
	}, nil
}

type produceOutcome struct {
	result  *domain.GenerationResult
	sources []domain.FusedResult
	err     error
}

// produceWithBudget races retrieval+generation against the channel's wall
// clock. The in-flight provider call is not cancelled when the budget
// expires; the late result is dropped before billing or persistence, so an
// abandoned request can never double-debit or double-send.
func (p *ChatPipeline) produceWithBudget(
	ctx context.Context,
	tenantID, sessionID, message string,
	datasetIDs []string,
	policy domain.ChannelPolicy,
) produceOutcome {
	if policy.MaxWallClock <= 0 {
		return p.produce(ctx, tenantID, sessionID, message, datasetIDs, policy)
	}

	resultCh := make(chan produceOutcome, 1)
	var abandoned atomic.Bool
	detached := context.WithoutCancel(ctx)

	go func() {
		outcome := p.produce(detached, tenantID, sessionID, message, datasetIDs, policy)
		if abandoned.Load() {
			if outcome.err == nil {
				slog.Warn("late generation result dropped",
					"tenant_id", tenantID,
					"session_id", sessionID,
				)
			}
			return
		}
		resultCh <- outcome
	}()

	timer := time.NewTimer(policy.MaxWallClock)
	defer timer.Stop()

	select {
	case outcome := <-resultCh:
		return outcome
	case <-timer.C:
		abandoned.Store(true)
		return produceOutcome{err: domain.WrapError(domain.ErrChannelTimeout, "produce response", context.DeadlineExceeded)}
	case <-ctx.Done():
		abandoned.Store(true)
		return produceOutcome{err: ctx.Err()}
	}
}

func (p *ChatPipeline) produce(
	ctx context.Context,
	tenantID, sessionID, message string,
	datasetIDs []string,
	policy domain.ChannelPolicy,
) produceOutcome {
	sources, err := p.retriever.Retrieve(ctx, tenantID, message, datasetIDs, p.cfg.RetrievalTopK)
	if err != nil {
		return produceOutcome{err: err}
	}

	result, err := p.orchestrator.Generate(ctx, buildSystemPrompt(policy.PromptVariant, sources), message, domain.GenerationOptions{
		TenantID:       tenantID,
		ConversationID: sessionID,
		Channel:        policy.Channel,
	})
	if err != nil {
		return produceOutcome{err: err}
	}
	return produceOutcome{result: result, sources: sources}
}

// replyForFailure maps categorized pipeline failures to short user-facing
// replies. Unrecognized errors stay errors: the caller decides how to
// surface them.
func (p *ChatPipeline) replyForFailure(err error) (*domain.ChatReply, error) {
	switch {
	case domain.IsKind(err, domain.ErrChannelTimeout):
		return failureReply(domain.ErrorCodeTimeout), nil
	case domain.IsKind(err, domain.ErrRetrievalUnavailable):
		return failureReply(domain.ErrorCodeNotFound), nil
	case domain.IsKind(err, domain.ErrProvidersExhausted):
		slog.Error("provider chain exhausted", "error", err)
		return failureReply(domain.ErrorCodeInternal), nil
	default:
		return nil, err
	}
}

func (p *ChatPipeline) appendExchange(ctx context.Context, tenantID, sessionID string, channel domain.Channel, question, answer string) {
	now := time.Now().UTC()
	messages := []domain.ConversationMessage{
		{ID: uuid.NewString(), TenantID: tenantID, SessionID: sessionID, Role: "user", Content: question, Channel: channel, CreatedAt: now},
		{ID: uuid.NewString(), TenantID: tenantID, SessionID: sessionID, Role: "assistant", Content: answer, Channel: channel, CreatedAt: now},
	}
	for _, msg := range messages {
		if err := p.conversations.AppendMessage(ctx, msg); err != nil {
			// The response is already billed; losing history must not fail it.
			slog.Warn("append conversation message failed",
				"tenant_id", tenantID,
				"session_id", sessionID,
				"role", msg.Role,
				"error", err,
			)
			return
		}
	}
}

func insufficientPointsReply(balance int64) *domain.ChatReply {
	reply := failureReply(domain.ErrorCodeInsufficientPoints)
	reply.PointsBalance = &balance
	return reply
}

func failureReply(code domain.ErrorCode) *domain.ChatReply {
	return &domain.ChatReply{
		Success:   false,
		Text:      domain.UserMessageFor(code),
		ErrorCode: code,
	}
}
