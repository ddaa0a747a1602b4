package jira

import (
	"encoding/json"
	"strings"
)

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// CommentText flattens a worklog comment into plain text. Plain-string
// comments are returned as-is; ADF documents have their text nodes joined,
// one line per paragraph. Unparseable input yields "".
func CommentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var lines []string
	for _, block := range doc.Content {
		var b strings.Builder
		collectText(block, &b)
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func collectText(n adfNode, b *strings.Builder) {
	if n.Type == "text" {
		b.WriteString(n.Text)
	}
	for _, c := range n.Content {
		collectText(c, b)
	}
}
