package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// index arrays extracted from a window's model response
type indexResponse struct {
	Problem  []int `json:"problem"`
	Solution []int `json:"solution"`
}

var (
	codeFenceRegex    = regexp.MustCompile("```(?:json)?\\s*")
	problemLineRegex  = regexp.MustCompile(`(?i)problem[^\n\[]*[:\[]([^\n\]]*)`)
	solutionLineRegex = regexp.MustCompile(`(?i)solution[^\n\[]*[:\[]([^\n\]]*)`)
	intRegex          = regexp.MustCompile(`-?\d+`)
)

// parseIndexResponse pulls the problem/solution index arrays out of a
// free-form model response. It tries strict JSON first, then the first
// decodable JSON value embedded in the text, then a labeled-line scan,
// since the generator is allowed to wrap its answer in prose.
func parseIndexResponse(response string) (indexResponse, error) {
	text := stripFences(response)
	if text == "" {
		return indexResponse{}, fmt.Errorf("empty response")
	}

	var parsed indexResponse
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}

	if parsed, ok := scanEmbeddedJSON(text); ok {
		return parsed, nil
	}

	if parsed, ok := scanLabeledLines(text); ok {
		return parsed, nil
	}

	return indexResponse{}, fmt.Errorf("no index arrays found in response: %s", truncateResponse(text, 200))
}

// scanEmbeddedJSON finds the first decodable JSON object in the text.
func scanEmbeddedJSON(text string) (indexResponse, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			continue
		}
		var parsed indexResponse
		if err := json.Unmarshal(raw, &parsed); err == nil {
			if parsed.Problem != nil || parsed.Solution != nil {
				return parsed, true
			}
		}
	}
	return indexResponse{}, false
}

// scanLabeledLines falls back to grabbing integers that follow a
// "problem"/"solution" label anywhere in the text.
func scanLabeledLines(text string) (indexResponse, bool) {
	problem := intsAfterLabel(problemLineRegex, text)
	solution := intsAfterLabel(solutionLineRegex, text)
	if problem == nil && solution == nil {
		return indexResponse{}, false
	}
	return indexResponse{Problem: problem, Solution: solution}, true
}

func intsAfterLabel(label *regexp.Regexp, text string) []int {
	m := label.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var out []int
	for _, raw := range intRegex.FindAllString(m[1], -1) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = codeFenceRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func truncateResponse(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
