package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

// AnswerUseCase answers a single question: retrieve within scope, then synthesize.
type AnswerUseCase struct {
	retriever   ports.Retriever
	synthesizer ports.AnswerSynthesizer
	topK        int
}

func NewAnswerUseCase(retriever ports.Retriever, synthesizer ports.AnswerSynthesizer, topK int) *AnswerUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &AnswerUseCase{
		retriever:   retriever,
		synthesizer: synthesizer,
		topK:        topK,
	}
}

func (uc *AnswerUseCase) AnswerQuestion(ctx context.Context, scope domain.ProjectScope, question domain.Question) domain.Answer {
	results := uc.retrieve(ctx, scope, question)
	return uc.synthesizer.Synthesize(ctx, question, results)
}

func (uc *AnswerUseCase) retrieve(ctx context.Context, scope domain.ProjectScope, question domain.Question) []domain.SearchResult {
	outcome, err := uc.retriever.Search(ctx, question.Text, uc.topK, domain.SearchFilter{DocumentIDs: scope.Filter()})
	if err != nil {
		slog.Warn("retrieval_failed", "question_id", question.ID, "error", err.Error())
		return nil
	}
	return outcome.Results
}
