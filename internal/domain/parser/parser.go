// Package parser turns the ranking source's tabular text into raw entries.
//
// The source prints a header line and a separator line followed by one
// row per team. Columns are separated by runs of two or more whitespace
// characters, so a single space inside a team name survives the split.
// Rows that do not look like standings are dropped, never reported as
// errors.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/standings/internal/domain/model"
)

// headerLines are skipped unconditionally: column titles and the dashed rule.
const headerLines = 2

// minFields is rank, team, date and score.
const minFields = 4

var fieldSep = regexp.MustCompile(`\s{2,}`)

// Result is the outcome of parsing one source document.
type Result struct {
	// Entries holds one item per well-formed row, in source order.
	Entries []model.RawEntry
	// Skipped counts malformed rows after the header.
	Skipped int
}

// Parse converts raw source text into entries. It never fails: zero
// entries is a valid result.
func Parse(text string) Result {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= headerLines {
		return Result{Entries: []model.RawEntry{}}
	}

	rows := lines[headerLines:]
	res := Result{Entries: make([]model.RawEntry, 0, len(rows))}
	for _, line := range rows {
		e, ok := parseLine(line)
		if !ok {
			res.Skipped++
			continue
		}
		res.Entries = append(res.Entries, e)
	}
	return res
}

// parseLine returns false for any row that is not rank, team..., date, score.
func parseLine(line string) (model.RawEntry, bool) {
	fields := fieldSep.Split(strings.TrimSpace(line), -1)
	if len(fields) < minFields {
		return model.RawEntry{}, false
	}
	if _, err := strconv.Atoi(fields[0]); err != nil {
		return model.RawEntry{}, false
	}
	last := len(fields) - 1
	score, err := strconv.ParseFloat(fields[last], 64)
	if err != nil || math.IsNaN(score) {
		return model.RawEntry{}, false
	}
	return model.RawEntry{
		Team:           strings.Join(fields[1:last-1], " "),
		SubmissionDate: fields[last-1],
		Score:          score,
	}, true
}
