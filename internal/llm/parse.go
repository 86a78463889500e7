package llm

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
)

var (
	controlCharsRe   = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	fencedJSONRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	looseJSONFindRe  = regexp.MustCompile(`(?s)\[.*\]|\{.*\}`)
	missingCommaObjs = regexp.MustCompile(`}\s*{`)
	missingCommaArrs = regexp.MustCompile(`]\s*\[`)
	missingCommaNL   = regexp.MustCompile(`}\s*\n\s*{`)
	trailingCommaObj = regexp.MustCompile(`,\s*}`)
	trailingCommaArr = regexp.MustCompile(`,\s*]`)
	singleQuoteKey   = regexp.MustCompile(`'([^']*?)'\s*:`)
	singleQuoteVal   = regexp.MustCompile(`:\s*'([^']*?)'`)
	unquotedKey      = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	blankLines       = regexp.MustCompile(`\n\s*\n`)
	doubleEscQuote   = regexp.MustCompile(`\\\\\\"`)
)

// sanitizeString strips a leading BOM, surrounding whitespace, and
// control characters that break JSON parsing.
func sanitizeString(s string) string {
	s = strings.TrimPrefix(s, "\xEF\xBB\xBF")
	s = strings.TrimSpace(s)
	return controlCharsRe.ReplaceAllString(s, "")
}

// preprocessResponse drops any leading prose before the first line that
// looks like the start of a JSON value, and drops everything from the
// first remaining "```" marker onward.
func preprocessResponse(s string) string {
	lines := strings.Split(s, "\n")
	jsonStart := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") {
			jsonStart = i
			break
		}
	}
	if jsonStart >= 0 {
		s = strings.Join(lines[jsonStart:], "\n")
	}
	if strings.Contains(s, "```") {
		parts := strings.SplitN(s, "```", 2)
		s = parts[0]
	}
	return strings.TrimSpace(s)
}

// fixCommonErrors applies a sequence of regex repairs for the JSON
// mistakes LLMs commonly make: missing commas between objects/arrays,
// trailing commas, single-quoted keys/values, unquoted keys, doubled
// escapes, and unbalanced braces/brackets.
func fixCommonErrors(s string) string {
	s = missingCommaObjs.ReplaceAllString(s, "},{")
	s = missingCommaArrs.ReplaceAllString(s, "],[")
	s = missingCommaNL.ReplaceAllString(s, "},\n{")
	s = trailingCommaObj.ReplaceAllString(s, "}")
	s = trailingCommaArr.ReplaceAllString(s, "]")
	s = singleQuoteKey.ReplaceAllString(s, `"$1":`)
	s = singleQuoteVal.ReplaceAllString(s, `: "$1"`)
	s = unquotedKey.ReplaceAllString(s, `"$1":`)
	s = blankLines.ReplaceAllString(s, "\n")
	s = doubleEscQuote.ReplaceAllString(s, `\"`)
	return rebalance(s)
}

func rebalance(s string) string {
	openBraces := strings.Count(s, "{")
	closeBraces := strings.Count(s, "}")
	openBrackets := strings.Count(s, "[")
	closeBrackets := strings.Count(s, "]")
	if openBraces > closeBraces {
		s += strings.Repeat("}", openBraces-closeBraces)
	}
	if openBrackets > closeBrackets {
		s += strings.Repeat("]", openBrackets-closeBrackets)
	}
	return s
}

// fixTruncated repairs JSON text cut off mid-stream: drops a trailing
// "...", balances quotes, rebalances braces/brackets, and truncates back
// to the last complete closer if the string still doesn't end cleanly.
func fixTruncated(s string) string {
	if s == "" {
		return s
	}
	s = strings.TrimSuffix(s, "...")

	if strings.Count(s, `"`)%2 == 1 {
		lastQuote := strings.LastIndex(s, `"`)
		if lastQuote >= 0 {
			after := s[lastQuote+1:]
			if strings.TrimSpace(after) != "" {
				s = s[:lastQuote+1] + `"` + s[lastQuote+1:]
			}
		}
	}

	s = rebalance(s)

	if len(s) > 0 && s[len(s)-1] != '}' && s[len(s)-1] != ']' {
		lastBrace := strings.LastIndex(s, "}")
		lastBracket := strings.LastIndex(s, "]")
		lastClose := lastBrace
		if lastBracket > lastClose {
			lastClose = lastBracket
		}
		if lastClose >= 0 {
			s = s[:lastClose+1]
		}
	}
	return s
}

// ParseJSON implements spec §4.3's six-step layered-tolerance parser,
// ported from the original `JSONUtils.parse_json_response`:
//  1. preprocess (strip leading prose / trailing fence content)
//  2. truncation repair if the response looks cut off
//  3. markdown-fence extraction, parsed directly then with repairs
//  4. direct parse of the whole (sanitized) response
//  5. regex extraction of the outermost [...]/{...}, parsed directly
//     then with repairs
//  6. total failure -> UnparsableResponse, raw response dumped to a temp
//     file for offline debugging
func ParseJSON(response string) (any, error) {
	response = strings.TrimSpace(response)
	response = preprocessResponse(response)

	if strings.HasSuffix(response, "...") && (strings.HasPrefix(response, "[") || strings.HasPrefix(response, "{")) {
		response = fixTruncated(response)
	}

	if m := fencedJSONRe.FindStringSubmatch(response); m != nil {
		candidate := sanitizeString(m[1])
		if v, err := tryParse(candidate); err == nil {
			return v, nil
		}
		if v, err := tryParse(fixCommonErrors(candidate)); err == nil {
			return v, nil
		}
	}

	if v, err := tryParse(sanitizeString(response)); err == nil {
		return v, nil
	}

	if m := looseJSONFindRe.FindString(response); m != "" {
		candidate := sanitizeString(m)
		if v, err := tryParse(candidate); err == nil {
			return v, nil
		}
		if v, err := tryParse(fixCommonErrors(candidate)); err == nil {
			return v, nil
		}
	}

	debugPath := dumpForDebug(response)
	preview := response
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return nil, &UnparsableResponse{RawPreview: preview, DebugPath: debugPath}
}

func tryParse(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func dumpForDebug(response string) string {
	f, err := os.CreateTemp("", "clipforge-unparsable-*.txt")
	if err != nil {
		return ""
	}
	defer f.Close()
	_, _ = f.WriteString(response)
	return f.Name()
}
