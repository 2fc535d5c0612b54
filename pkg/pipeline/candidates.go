package pipeline

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// generatePatchCandidates invokes the three fixed strategies in
// parallel (spec.md §4.7 step 3), post-processing each candidate's
// code before returning.
func generatePatchCandidates(ctx context.Context, llm LLMGateway, loc FaultLocalization, feedback []string) ([]PatchCandidate, error) {
	strategies := []Strategy{StrategyDirect, StrategyConservative, StrategyAlternative}
	candidates := make([]PatchCandidate, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, strategy := range strategies {
		i, strategy := i, strategy
		g.Go(func() error {
			candidate, err := llm.GeneratePatchCandidate(gctx, loc, strategy, strategyTemperature[strategy], feedback)
			if err != nil {
				return err
			}
			candidate.Strategy = strategy
			candidate.Code = postProcessPatch(candidate.Code)
			candidates[i] = candidate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// shellFlagTypoPattern matches an en/em-dash immediately followed by a
// word character where a double-hyphen long flag was almost certainly
// intended (a recurring LLM transcription artifact, e.g. "npm install
// —save" instead of "npm install --save").
var shellFlagTypoPattern = regexp.MustCompile(`[\x{2013}\x{2014}](\w)`)

// dockerfileRunCommentPattern matches a comment line nested inside a
// backslash-continued Dockerfile RUN block. Docker resumes the shell
// command on the next line regardless of the comment, so a line like
// "    # upgrade pip \" silently truncates the script once the "\" is
// treated as the comment's own continuation rather than the RUN's.
var dockerfileRunCommentPattern = regexp.MustCompile(`(?m)^(\s*)#[^\n]*\\\s*\n`)

// postProcessPatch applies the two fixed cleanups spec.md §4.7 step 3
// names: shell-flag typo repair and Dockerfile inline-comment
// stripping inside continued RUN lines.
func postProcessPatch(code string) string {
	code = shellFlagTypoPattern.ReplaceAllString(code, "--$1")
	if strings.Contains(code, "RUN") {
		code = dockerfileRunCommentPattern.ReplaceAllString(code, "")
	}
	return code
}
