package simulation

import (
	"context"
	"math"
	"strings"

	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/prompt"
)

const (
	analysisTemperature = 0.3
	analysisMaxTokens   = 600
	maxTakeaways        = 5

	// NeutralScore is used when analysis fails.
	NeutralScore = 50

	// TooShortTakeaway is the takeaway of a transcript with fewer than two entries.
	TooShortTakeaway = "conversation too short to analyze"
)

type analysisResponse struct {
	Score     *float64 `json:"score"`
	Takeaways []string `json:"takeaways"`
}

// analyze scores the finished transcript. It never fails: short transcripts
// score 0 without a model call, and any error degrades to a neutral score.
// Like persistFinal it runs detached from the run context, so a run stopped
// by its deadline is still scored.
func (e *Engine) analyze(ctx context.Context, state *core.SimulationState) core.AnalysisResult {
	if len(state.Transcript) < 2 {
		return core.AnalysisResult{Score: 0, Takeaways: []string{TooShortTakeaway}}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.analysisTimeout)
	defer cancel()

	p := prompt.Analysis(state.AgentA, state.AgentB, state.Transcript)
	req := p.Request(analysisTemperature, analysisMaxTokens)
	req.Model = e.model
	req.Schema = prompt.AnalysisSchema

	var resp analysisResponse
	if err := e.client.CompleteJSON(ctx, req, &resp); err != nil {
		e.logger.Warn("Analysis failed", "simulation_id", state.SimulationID, "error", err)
		return analysisFailed(err.Error())
	}
	if resp.Score == nil {
		return analysisFailed("response has no score")
	}

	return core.AnalysisResult{
		Score:     clampScore(*resp.Score),
		Takeaways: cleanTakeaways(resp.Takeaways),
	}
}

func analysisFailed(reason string) core.AnalysisResult {
	return core.AnalysisResult{
		Score:     NeutralScore,
		Takeaways: []string{"analysis failed: " + reason},
	}
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return NeutralScore
	}
	score := int(math.Round(v))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func cleanTakeaways(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == maxTakeaways {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, "no specific takeaways")
	}
	return out
}
