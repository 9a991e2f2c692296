package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Scanner buffer sizes for NDJSON streams. Single events can carry entire
// file contents inside tool results, so the maximum is generous.
const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 10 * 1024 * 1024
)

// ConfigureScanner sets up a bufio.Scanner with buffer sizes suitable for
// long single-line JSON events.
func ConfigureScanner(scanner *bufio.Scanner) {
	buf := make([]byte, 0, scannerInitialBuffer)
	scanner.Buffer(buf, scannerMaxBuffer)
}

// streamEvent is one line of claude --output-format stream-json output.
// Only the fields the orchestrator consumes are declared.
type streamEvent struct {
	Type    string `json:"type"`
	Result  string `json:"result"`
	Message struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Name string `json:"name"`
}

// parseStream consumes an NDJSON event stream and returns the final result
// text. Assistant text chunks and tool-use notifications are forwarded to
// onProgress as they arrive. Unknown event types and malformed lines are
// ignored; the stream format grows new event types over time and the
// orchestrator only needs the ones it knows.
//
// The "result" event's text is authoritative when present; otherwise the
// accumulated assistant text is returned.
func parseStream(r io.Reader, onProgress func(ProgressEvent)) (string, error) {
	scanner := bufio.NewScanner(r)
	ConfigureScanner(scanner)

	var assistant strings.Builder
	var result string
	var sawResult bool

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "assistant":
			for _, block := range ev.Message.Content {
				switch block.Type {
				case "text":
					assistant.WriteString(block.Text)
					if onProgress != nil {
						onProgress(ProgressEvent{Kind: ProgressText, Text: block.Text})
					}
				case "tool_use":
					if onProgress != nil {
						onProgress(ProgressEvent{Kind: ProgressTool, Tool: block.Name})
					}
				}
			}
		case "result":
			result = ev.Result
			sawResult = true
		}
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}

	if sawResult {
		return result, nil
	}
	return assistant.String(), nil
}
