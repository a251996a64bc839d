package main

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// defaultImageQuestion is sent when an /image command carries no question.
const defaultImageQuestion = "Please analyze this image"

var quotedRE = regexp.MustCompile(`"([^"]*)"`)

// parseQuoted returns the first double-quoted argument in args, or the empty
// string when none is present.
func parseQuoted(args string) string {
	match := quotedRE.FindStringSubmatch(args)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// parseImageArgs parses the /image argument forms:
//
//	"path" "question"
//	["path1", "path2"] "question"
//
// The question is optional in both forms and defaults to a generic prompt.
func parseImageArgs(args string) ([]string, string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil, "", errors.New(`usage: /image "path" "question" or ["path1", "path2"] "question"`)
	}

	if strings.HasPrefix(args, "[") {
		end := strings.LastIndex(args, "]")
		if end < 0 {
			return nil, "", errors.New("unterminated image path list, expected a closing ]")
		}
		var paths []string
		if err := json.Unmarshal([]byte(args[:end+1]), &paths); err != nil {
			return nil, "", errors.New(`invalid image path list, expected ["path1", "path2"]`)
		}
		if len(paths) == 0 {
			return nil, "", errors.New("image path list is empty")
		}
		question := parseQuoted(args[end+1:])
		if question == "" {
			question = defaultImageQuestion
		}
		return paths, question, nil
	}

	quoted := quotedRE.FindAllStringSubmatch(args, -1)
	if len(quoted) == 0 {
		return nil, "", errors.New(`usage: /image "path" "question"`)
	}
	path := strings.TrimSpace(quoted[0][1])
	if path == "" {
		return nil, "", errors.New("image path is empty")
	}
	question := defaultImageQuestion
	if len(quoted) > 1 {
		if q := strings.TrimSpace(quoted[len(quoted)-1][1]); q != "" {
			question = q
		}
	}
	return []string{path}, question, nil
}
