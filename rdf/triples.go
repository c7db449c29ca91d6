// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rdf reads the line-oriented triple files (N-Triples and the simple
// N3 dumps used by the AIFB/MUTAG/AM/BGS datasets) and turns them into an
// enumerated, relation-typed edge list.
package rdf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ErrParse is matched (with errors.Is) by every *ParseError.
var ErrParse = errors.New("malformed triple")

// LiteralNode is the sentinel node that stands for every literal object when
// building attribute summaries.
const LiteralNode = "http://example.org/literal"

// ParseError reports a line that doesn't have the `subject predicate object .` shape.
type ParseError struct {
	Source string
	Line   int
	Text   string
	Reason string
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s (%q)", e.Source, e.Line, ErrParse.Error(), e.Reason, e.Text)
}

// Is makes errors.Is(err, ErrParse) work.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Triple is one `subject predicate object` statement, with the terms as they
// appear in the file.
type Triple struct {
	Subject, Predicate, Object string
}

// String returns the triple in N-Triples form.
func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t.Subject, t.Predicate, t.Object)
}

// Normalize returns the node identifier for a term: node identifiers are the
// lower-cased terms.
func Normalize(term string) string {
	return strings.ToLower(term)
}

// IsLiteral returns whether the term is a literal (starts with a double quote).
func IsLiteral(term string) bool {
	return strings.HasPrefix(term, `"`)
}

// ParseLine splits a line into its three fields.
//
// Empty lines and comments return ok=false and no error. The object is
// everything after the second space, so literals with spaces are kept whole.
func ParseLine(line string) (triple Triple, ok bool, reason string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	if !strings.HasSuffix(line, ".") {
		reason = "missing trailing '.'"
		return
	}
	body := strings.TrimSpace(strings.TrimSuffix(line, "."))
	parts := strings.SplitN(body, " ", 3)
	if len(parts) != 3 {
		reason = fmt.Sprintf("expected 3 fields, got %d", len(parts))
		return
	}
	for ii := range parts {
		parts[ii] = strings.TrimSpace(parts[ii])
		if parts[ii] == "" {
			reason = fmt.Sprintf("field #%d is empty", ii)
			return
		}
	}
	return Triple{Subject: parts[0], Predicate: parts[1], Object: parts[2]}, true, ""
}

// Scan parses every line of r and calls fn for each triple.
// It stops at the first malformed line (a *ParseError) or at the first error returned by fn.
// If fn returns a *ParseError with no line number, Scan fills in the position.
func Scan(r io.Reader, source string, fn func(Triple) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := scanner.Text()
		triple, ok, reason := ParseLine(text)
		if reason != "" {
			return &ParseError{Source: source, Line: lineNum, Text: text, Reason: reason}
		}
		if !ok {
			continue
		}
		if err := fn(triple); err != nil {
			var pErr *ParseError
			if errors.As(err, &pErr) && pErr.Line == 0 {
				pErr.Source, pErr.Line, pErr.Text = source, lineNum, text
			}
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "while reading %q", source)
	}
	return nil
}

// NewReader wraps r with a gzip reader if path ends in ".gz".
func NewReader(r io.Reader, path string) (io.Reader, error) {
	if !strings.HasSuffix(path, ".gz") {
		return r, nil
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open gzip stream of %q", path)
	}
	return gz, nil
}

// ScanFile opens path (optionally gzip compressed) and calls fn for each triple.
func ScanFile(path string, fn func(Triple) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open triples file")
	}
	defer func() { _ = f.Close() }()
	r, err := NewReader(f, path)
	if err != nil {
		return err
	}
	return Scan(r, path, fn)
}

// ReadFile returns all triples of the file in path.
func ReadFile(path string) ([]Triple, error) {
	var triples []Triple
	err := ScanFile(path, func(t Triple) error {
		triples = append(triples, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return triples, nil
}
