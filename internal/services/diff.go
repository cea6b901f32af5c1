package services

import (
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// PayloadDiff renders a line diff between two payloads in their indented JSON
// form. Unchanged lines are prefixed with two spaces, removed with "- " and
// added with "+ ". Identical payloads yield "".
func PayloadDiff[V any](prev, next V) (string, error) {
	a, err := json.MarshalIndent(prev, "", "  ")
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return "", err
	}
	if string(a) == string(b) {
		return "", nil
	}
	return lineDiff(string(a)+"\n", string(b)+"\n"), nil
}

func lineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}
	return sb.String()
}
