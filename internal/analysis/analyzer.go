// Package analysis builds the call and trend prompts and sends them to the language model.
package analysis

import (
	"context"
	"fmt"
	"strings"

	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/logger"
)

const (
	callSystemPrompt  = "You are a customer call analyst. Provide structured insights."
	trendSystemPrompt = "You are a customer experience analyst. Find patterns and give actionable insights."

	callPromptFormat = `Analyze this call:

%s

Format:
**Summary:** [Brief overview]
**Sentiment:** [Positive/Neutral/Negative]
**Escalation Risk:** [0-100%%]
**Why:** [Explain the risk score with quotes]
**Emotional Journey:** [Beginning → Peak frustration → End state]
**Category:** [Issue type]
**Action:** [What to do next]`

	trendPromptFormat = `Analyze these call records:
%s

Provide: Trend Analysis, Critical Insights, and Recommendations.`
)

// MockCallAnalysis is the deterministic analysis returned when USE_MOCK_LLM=true.
const MockCallAnalysis = `**Summary:** Customer reports a duplicate charge and asks for a refund.
**Sentiment:** Negative
**Escalation Risk:** 65%
**Why:** "I was charged twice and nobody called me back."
**Emotional Journey:** Annoyed → Frustrated when told to wait → Calmer after escalation promise
**Category:** Billing
**Action:** Refund the duplicate charge and confirm by email within 24h.`

// Completer is a chat model that answers one system+user exchange.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Analyzer turns transcripts and digests into model-written analysis text.
type Analyzer struct {
	llm  Completer
	mock bool
	log  *logger.Logger
}

// New returns an Analyzer. With mock set, llm is never called and may be nil.
func New(llm Completer, mock bool) *Analyzer {
	return &Analyzer{
		llm:  llm,
		mock: mock,
		log:  logger.New().WithComponent("analysis"),
	}
}

// AnalyzeCall returns labeled-section analysis for one transcript.
func (a *Analyzer) AnalyzeCall(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", apperrors.NewInvalidRequest("transcript is empty")
	}
	if a.mock {
		a.log.Info("mock LLM mode ON - returning deterministic call analysis")
		return MockCallAnalysis, nil
	}
	out, err := a.llm.Complete(ctx, callSystemPrompt, fmt.Sprintf(callPromptFormat, transcript))
	if err != nil {
		return "", apperrors.NewAnalysis(err)
	}
	return out, nil
}

// AnalyzeTrends returns a narrative for a digest produced by trends.Summarize.
func (a *Analyzer) AnalyzeTrends(ctx context.Context, digest string) (string, error) {
	if a.mock {
		a.log.Info("mock LLM mode ON - returning deterministic trend analysis")
		return mockTrendAnalysis(digest), nil
	}
	out, err := a.llm.Complete(ctx, trendSystemPrompt, fmt.Sprintf(trendPromptFormat, digest))
	if err != nil {
		return "", apperrors.NewAnalysis(err)
	}
	return out, nil
}

func mockTrendAnalysis(digest string) string {
	first := digest
	if i := strings.IndexByte(digest, '\n'); i >= 0 {
		first = digest[:i]
	}
	return "**Trend Analysis:** Based on " + first + ".\n" +
		"**Critical Insights:** Billing issues drive most escalations.\n" +
		"**Recommendations:** Review duplicate-charge handling and call back high-risk customers first."
}
