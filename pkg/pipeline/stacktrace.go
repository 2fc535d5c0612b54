package pipeline

import (
	"regexp"
	"strconv"
)

// nodeFramePattern matches V8 stack frames, e.g.
// "    at Object.<anonymous> (/app/src/index.js:42:17)" or the
// anonymous-file variant "    at /app/src/index.js:42:17".
var nodeFramePattern = regexp.MustCompile(`(?m)^\s*at\s+(?:(?P<fn>[^\s(]+)\s+\()?(?P<file>[^():\n]+):(?P<line>\d+):(?P<col>\d+)\)?`)

// pythonFramePattern matches CPython traceback frames, e.g.
// `  File "/app/main.py", line 42, in handle_request`.
var pythonFramePattern = regexp.MustCompile(`(?m)^\s*File "(?P<file>[^"]+)", line (?P<line>\d+)(?:, in (?P<fn>\S+))?`)

// javaFramePattern matches JVM stack frames, e.g.
// "\tat com.example.Service.process(Service.java:88)".
var javaFramePattern = regexp.MustCompile(`(?m)^\s*at\s+(?P<fn>[\w.$<>]+)\((?P<file>[\w.$]+\.java):(?P<line>\d+)\)`)

// parseStackTrace extracts frames from a build/test log using a
// fixed set of per-ecosystem regexes, tried in order and accumulated —
// a log can legitimately interleave a Node harness around a Python
// subprocess traceback, so all three run rather than short-circuiting
// on the first match.
func parseStackTrace(log string) []StackFrame {
	var frames []StackFrame
	frames = append(frames, extractFrames(nodeFramePattern, log)...)
	frames = append(frames, extractFrames(pythonFramePattern, log)...)
	frames = append(frames, extractFrames(javaFramePattern, log)...)
	return frames
}

func extractFrames(pattern *regexp.Regexp, log string) []StackFrame {
	names := pattern.SubexpNames()
	matches := pattern.FindAllStringSubmatch(log, -1)

	frames := make([]StackFrame, 0, len(matches))
	for _, m := range matches {
		frame := StackFrame{}
		for i, name := range names {
			if i == 0 || i >= len(m) {
				continue
			}
			switch name {
			case "file":
				frame.File = m[i]
			case "fn":
				frame.Function = m[i]
			case "line":
				if n, err := strconv.Atoi(m[i]); err == nil {
					frame.Line = n
				}
			case "col":
				if n, err := strconv.Atoi(m[i]); err == nil {
					frame.Column = n
				}
			}
		}
		if frame.File != "" {
			frames = append(frames, frame)
		}
	}
	return frames
}
