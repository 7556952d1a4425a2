package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/config"
	"github.com/nordscout/prospector/internal/model"
	"github.com/nordscout/prospector/internal/usage"
	"github.com/nordscout/prospector/pkg/anthropic"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// scriptedAI returns queued responses in order, then errors.
type scriptedAI struct {
	responses []string
	errAt     int // 1-based call index to fail at, 0 = never
	calls     int
}

func (a *scriptedAI) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	a.calls++
	if a.errAt != 0 && a.calls == a.errAt {
		return nil, errors.New("overloaded")
	}
	if a.calls > len(a.responses) {
		return nil, errors.New("no scripted response")
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: a.responses[a.calls-1]}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func testCfg() config.AnthropicConfig {
	return config.AnthropicConfig{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   2048,
		TimeoutSecs: 5,
	}
}

func stageResponses() []string {
	return []string{
		`{"summary":"Tillverkare av hydraulkomponenter.","products":"Hydraulcylindrar","customers":"OEM inom skogsmaskiner","business_model":"B2B direct"}`,
		`{"sector":"manufacturing","subsector":"hydraulics","regions":["Småland"]}`,
		`{"fit_score":8,"defensibility_score":6,"risk_flags":["customer concentration"]}`,
		`{"next_steps":["Verify order backlog","Meet the founders"]}`,
	}
}

func TestSynthesize_FullPipeline(t *testing.T) {
	ai := &scriptedAI{responses: stageResponses()}
	counter := usage.NewCounter("claude-haiku-4-5-20251001")
	s := New(ai, testCfg(), counter)

	pages := map[string]string{"home": "Vi tillverkar hydraulcylindrar."}
	profile, err := s.Synthesize(context.Background(), "5560001234", pages, "Revenue: 45000 KSEK")
	require.NoError(t, err)

	assert.Equal(t, "5560001234", profile.OrgID)
	assert.Contains(t, profile.Summary, "hydraulkomponenter")
	assert.Contains(t, profile.Summary, "Products: Hydraulcylindrar")
	assert.Equal(t, "manufacturing", profile.Classification.Sector)
	assert.Equal(t, 8, profile.FitScore)
	assert.Equal(t, 6, profile.DefensibilityScore)
	assert.Equal(t, []string{"customer concentration"}, profile.RiskFlags)
	assert.Len(t, profile.NextSteps, 2)
	assert.Equal(t, "claude-haiku-4-5-20251001", profile.GenerationAgent)
	assert.Equal(t, 4, ai.calls)
	assert.Equal(t, int64(4), counter.Snapshot().LLMCalls)
}

func TestSynthesize_StageFailureCarriesStage(t *testing.T) {
	for stage := 1; stage <= 4; stage++ {
		ai := &scriptedAI{responses: stageResponses(), errAt: stage}
		s := New(ai, testCfg(), usage.NewCounter("claude-haiku-4-5-20251001"))

		_, err := s.Synthesize(context.Background(), "5560001234", nil, "")
		require.Error(t, err)

		var serr *model.SynthesisError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, stage, serr.Stage)
		assert.Equal(t, "5560001234", serr.OrgID)
	}
}

func TestSynthesize_MalformedStageOutput(t *testing.T) {
	responses := stageResponses()
	responses[1] = "I would classify this as a manufacturer."
	ai := &scriptedAI{responses: responses}
	s := New(ai, testCfg(), usage.NewCounter("claude-haiku-4-5-20251001"))

	_, err := s.Synthesize(context.Background(), "5560001234", nil, "")
	var serr *model.SynthesisError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageClassify, serr.Stage)
}

func TestSynthesize_UnknownSectorMapsToOther(t *testing.T) {
	responses := stageResponses()
	responses[1] = `{"sector":"Advanced Widgets","subsector":"widgets","regions":[]}`
	ai := &scriptedAI{responses: responses}
	s := New(ai, testCfg(), usage.NewCounter("claude-haiku-4-5-20251001"))

	profile, err := s.Synthesize(context.Background(), "5560001234", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "other", profile.Classification.Sector)
}

func TestSynthesize_ScoresAsStringsAndOutOfRange(t *testing.T) {
	responses := stageResponses()
	responses[2] = `{"fit_score":"8/10","defensibility_score":14,"risk_flags":[]}`
	ai := &scriptedAI{responses: responses}
	s := New(ai, testCfg(), usage.NewCounter("claude-haiku-4-5-20251001"))

	profile, err := s.Synthesize(context.Background(), "5560001234", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 8, profile.FitScore)
	assert.Equal(t, 10, profile.DefensibilityScore)
}

func TestSynthesize_CodeFencedOutputTolerated(t *testing.T) {
	responses := stageResponses()
	responses[0] = "```json\n" + responses[0] + "\n```"
	ai := &scriptedAI{responses: responses}
	s := New(ai, testCfg(), usage.NewCounter("claude-haiku-4-5-20251001"))

	_, err := s.Synthesize(context.Background(), "5560001234", nil, "")
	assert.NoError(t, err)
}

func TestClampScore(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{float64(7), 7},
		{float64(7.6), 8},
		{float64(0), 1},
		{float64(-3), 1},
		{float64(11), 10},
		{"9", 9},
		{"score: 12", 10},
		{"8/10", 8},
		{"excellent", 1},
		{nil, 1},
		{[]any{"7"}, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClampScore(tc.in), "input %v", tc.in)
	}
}

func TestRenderPages_SortedAndEmpty(t *testing.T) {
	assert.Equal(t, "(no website content available)", renderPages(nil))

	out := renderPages(map[string]string{"home": "H", "about": "A"})
	require.Positive(t, strings.Index(out, "### home"))
	assert.Less(t, strings.Index(out, "### about"), strings.Index(out, "### home"))
}
