package token

import (
	"fmt"
	"strconv"
	"strings"
)

// Position is a location in the analyzed source. Positions are the stable
// keys for every per-expression and per-call result.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid returns true if the position carries line information.
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0
}

// Less orders positions by file, line and column.
func (p Position) Less(other Position) bool {
	if p.File != other.File {
		return p.File < other.File
	}
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// Key is the deduplication key used by the diagnostic reporter.
func (p Position) Key() string {
	return p.String()
}

// ParsePosition parses "line:col" (as written in program files).
func ParsePosition(file, s string) (Position, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("invalid position %q: want line:col", s)
	}
	line, err := strconv.Atoi(parts[0])
	if err != nil {
		return Position{}, fmt.Errorf("invalid line in position %q: %w", s, err)
	}
	col, err := strconv.Atoi(parts[1])
	if err != nil {
		return Position{}, fmt.Errorf("invalid column in position %q: %w", s, err)
	}
	if line <= 0 || col <= 0 {
		return Position{}, fmt.Errorf("invalid position %q: line and column start at 1", s)
	}
	return Position{File: file, Line: line, Column: col}, nil
}
