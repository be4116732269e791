package analysis

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/trends"
)

type fakeLLM struct {
	system, user string
	reply        string
	err          error
	calls        int
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	return f.reply, f.err
}

func TestAnalyzeCall_Prompt(t *testing.T) {
	llm := &fakeLLM{reply: "**Sentiment:** Neutral"}

	out, err := New(llm, false).AnalyzeCall(context.Background(), "Agent: hello\nCustomer: hi")

	require.NoError(t, err)
	assert.Equal(t, "**Sentiment:** Neutral", out)
	assert.Equal(t, callSystemPrompt, llm.system)
	assert.Contains(t, llm.user, "Analyze this call:\n\nAgent: hello\nCustomer: hi\n\nFormat:")
	for _, label := range []string{"**Summary:**", "**Sentiment:**", "**Escalation Risk:** [0-100%]", "**Why:**",
		"**Emotional Journey:**", "**Category:**", "**Action:**"} {
		assert.Contains(t, llm.user, label)
	}
}

func TestAnalyzeCall_FailureIsAnalysisError(t *testing.T) {
	llm := &fakeLLM{err: stderrors.New("rate limited")}

	_, err := New(llm, false).AnalyzeCall(context.Background(), "text")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAnalysis))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAnalyzeCall_EmptyTranscript(t *testing.T) {
	llm := &fakeLLM{}
	_, err := New(llm, false).AnalyzeCall(context.Background(), "  ")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
	assert.Zero(t, llm.calls)
}

func TestAnalyzeTrends_Prompt(t *testing.T) {
	llm := &fakeLLM{reply: "trends"}

	out, err := New(llm, false).AnalyzeTrends(context.Background(), "Total Calls: 3")

	require.NoError(t, err)
	assert.Equal(t, "trends", out)
	assert.Equal(t, trendSystemPrompt, llm.system)
	assert.Equal(t, "Analyze these call records:\nTotal Calls: 3\n\nProvide: Trend Analysis, Critical Insights, and Recommendations.", llm.user)
}

func TestMockMode_IsExtractable(t *testing.T) {
	a := New(nil, true)

	out, err := a.AnalyzeCall(context.Background(), "anything")
	require.NoError(t, err)

	f := trends.Extract(out)
	assert.Equal(t, "Negative", f.Sentiment)
	assert.Equal(t, "Billing", f.Category)
	assert.Equal(t, 65, f.Risk)

	narrative, err := a.AnalyzeTrends(context.Background(), "Total Calls: 1\nDate Range: x")
	require.NoError(t, err)
	assert.Contains(t, narrative, "Total Calls: 1")
}
