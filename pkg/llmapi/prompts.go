package llmapi

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/pipeline"
)

// Prompt templates, one per Gateway operation, in the teacher's
// pkg/agent/prompt style: a fixed system-message template plus a
// strings.Builder-composed user message built from the call's
// arguments. Kept as unexported constants/functions in this package
// rather than a separate PromptBuilder type — unlike the teacher's
// PromptBuilder (stateful over an MCP server registry the graph nodes
// don't have), nothing here needs injected state.

const classifySystemPrompt = `You are a CI failure triage assistant. Read the failure log and classify it into exactly one error category. Respond with a single JSON object: {"category": string, "affectedFiles": [string], "confidence": number between 0 and 1, "suggestedAction": string}.`

func buildClassifyMessages(log, mainPath string, history []models.HistoryEntry) []ConversationMessage {
	var sb strings.Builder
	sb.WriteString("Main module path: " + mainPath + "\n\n")
	sb.WriteString("Failure log:\n```\n" + log + "\n```\n\n")
	if len(history) > 0 {
		sb.WriteString("Prior classification attempts this session:\n")
		for _, h := range history {
			fmt.Fprintf(&sb, "- node=%s action=%s result=%s\n", h.Node, h.Action, h.Result)
		}
	}
	return []ConversationMessage{
		{Role: RoleSystem, Content: classifySystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

const diagnoseSystemPrompt = `You are a root-cause diagnosis assistant for CI failures. Given the failure log, repository context, and its error category, propose the single most likely cause and remedy. Respond with one JSON object: {"summary": string, "filePath": string, "fixAction": one of "edit"|"command", "suggestedCommand": string, "reproductionCommand": string, "confidence": number between 0 and 1}.`

func buildDiagnoseMessages(log, repoContext string, classification models.Classification, feedback []string) []ConversationMessage {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error category: %s (confidence %.2f)\n\n", classification.Category, classification.Confidence))
	sb.WriteString("Repository context:\n" + repoContext + "\n\n")
	sb.WriteString("Failure log:\n```\n" + log + "\n```\n")
	writeFeedback(&sb, feedback)
	return []ConversationMessage{
		{Role: RoleSystem, Content: diagnoseSystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

const refineSystemPrompt = `You are refining a CI failure problem statement using feedback from failed verification attempts. Respond with plain text: the refined problem statement only, no preamble.`

func buildRefineMessages(diagnosis models.Diagnosis, feedback []string, previousRefined string) []ConversationMessage {
	var sb strings.Builder
	sb.WriteString("Original diagnosis summary: " + diagnosis.Summary + "\n\n")
	if previousRefined != "" {
		sb.WriteString("Previously refined statement:\n" + previousRefined + "\n\n")
	}
	writeFeedback(&sb, feedback)
	return []ConversationMessage{
		{Role: RoleSystem, Content: refineSystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

const planSystemPrompt = `You turn a diagnosis into an ordered, dependency-aware task list for an automated repair agent. Respond with one JSON object: {"goal": string, "tasks": [{"id": string, "description": string, "dependencies": [string], "targetFile": string}]}.`

func buildPlanMessages(diagnosis models.Diagnosis, state *models.GraphState) []ConversationMessage {
	var sb strings.Builder
	sb.WriteString("Diagnosis: " + diagnosis.Summary + "\n")
	sb.WriteString("Fix action: " + string(diagnosis.FixAction) + "\n")
	if diagnosis.FilePath != "" {
		sb.WriteString("Target file: " + diagnosis.FilePath + "\n")
	}
	fmt.Fprintf(&sb, "Iteration: %d\n", state.Iteration)
	return []ConversationMessage{
		{Role: RoleSystem, Content: planSystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

const generateFixSystemPrompt = `You produce new file content that fixes a diagnosed CI failure. Respond with plain text: the complete new file content only, no markdown fences, no commentary.`

func buildGenerateFixMessages(path, original string, diagnosis models.Diagnosis, feedback []string, webSearchCtx string) []ConversationMessage {
	var sb strings.Builder
	sb.WriteString("File: " + path + "\n\n")
	sb.WriteString("Current content:\n```\n" + original + "\n```\n\n")
	sb.WriteString("Diagnosis: " + diagnosis.Summary + "\n\n")
	if webSearchCtx != "" {
		sb.WriteString("Additional research context:\n" + webSearchCtx + "\n\n")
	}
	writeFeedback(&sb, feedback)
	return []ConversationMessage{
		{Role: RoleSystem, Content: generateFixSystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

const judgeFixSystemPrompt = `You are a soft quality gate reviewing a generated fix. Respond with one JSON object: {"approved": bool, "reasoning": string}. This never blocks persistence of the fix — it only informs the next iteration's feedback.`

func buildJudgeFixMessages(path, original, modified string, diagnosis models.Diagnosis) []ConversationMessage {
	var sb strings.Builder
	sb.WriteString("File: " + path + "\n\n")
	sb.WriteString("Diagnosis: " + diagnosis.Summary + "\n\n")
	sb.WriteString("Original:\n```\n" + original + "\n```\n\n")
	sb.WriteString("Modified:\n```\n" + modified + "\n```\n")
	return []ConversationMessage{
		{Role: RoleSystem, Content: judgeFixSystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

const summarizeRepoSystemPrompt = `You summarize a repository's file tree into a short paragraph of context useful for diagnosing a CI failure. Respond with plain text only.`

func buildSummarizeRepoMessages(repoTree []string) []ConversationMessage {
	return []ConversationMessage{
		{Role: RoleSystem, Content: summarizeRepoSystemPrompt},
		{Role: RoleUser, Content: "Repository file tree:\n" + strings.Join(repoTree, "\n")},
	}
}

const localizeFaultSystemPrompt = `You localize the fault behind a CI failure. Respond with one JSON object: {"primaryLocation": {"file": string, "line": number, "confidence": number, "reasoning": string, "suggestedFix": string}, "alternativeLocations": [same shape], "method": string}.`

func buildLocalizeFaultMessages(log string, frames []pipeline.StackFrame, repoContext string) []ConversationMessage {
	var sb strings.Builder
	sb.WriteString("Failure log:\n```\n" + log + "\n```\n\n")
	if len(frames) > 0 {
		sb.WriteString("Parsed stack frames:\n")
		for _, f := range frames {
			fmt.Fprintf(&sb, "- %s:%d:%d in %s\n", f.File, f.Line, f.Column, f.Function)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Repository context:\n" + repoContext)
	return []ConversationMessage{
		{Role: RoleSystem, Content: localizeFaultSystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

const patchCandidateSystemPrompt = `You generate one candidate patch for a located fault. Respond with one JSON object: {"code": string, "description": string, "confidence": number between 0 and 1, "reasoning": string}.`

func buildPatchCandidateMessages(loc pipeline.FaultLocalization, strategy pipeline.Strategy, feedback []string) []ConversationMessage {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Fault location: %s:%d (confidence %.2f)\n", loc.PrimaryLocation.File, loc.PrimaryLocation.Line, loc.PrimaryLocation.Confidence)
	sb.WriteString("Reasoning: " + loc.PrimaryLocation.Reasoning + "\n")
	sb.WriteString("Suggested fix direction: " + loc.PrimaryLocation.SuggestedFix + "\n\n")
	sb.WriteString(strategyInstruction(strategy) + "\n")
	writeFeedback(&sb, feedback)
	return []ConversationMessage{
		{Role: RoleSystem, Content: patchCandidateSystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

func strategyInstruction(strategy pipeline.Strategy) string {
	switch strategy {
	case pipeline.StrategyDirect:
		return "Strategy: direct — fix exactly the located fault with the smallest possible change."
	case pipeline.StrategyConservative:
		return "Strategy: conservative — prefer the most defensive fix even if it is slightly broader than strictly necessary."
	case pipeline.StrategyAlternative:
		return "Strategy: alternative — consider a different root cause than the primary location if the evidence supports it."
	default:
		return "Strategy: " + string(strategy)
	}
}

func writeFeedback(sb *strings.Builder, feedback []string) {
	if len(feedback) == 0 {
		return
	}
	sb.WriteString("\nFeedback from prior failed attempts:\n")
	for _, f := range feedback {
		sb.WriteString("- " + f + "\n")
	}
}
