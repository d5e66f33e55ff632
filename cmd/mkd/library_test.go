package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"mkd/library"
)

func TestWriteDocuments(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	docs := []library.Document{
		{ID: "01-a", Title: "First", Owner: "0xaa", Shared: true, Created: created},
		{ID: "02-b", Title: "Second", Owner: "0xbb", Created: created},
	}

	buf := new(bytes.Buffer)
	if err := writeDocuments(buf, docs); err != nil {
		t.Fatalf("writeDocuments() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "ID CREATED OWNER SHARED TITLE" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if fields := strings.Fields(lines[1]); fields[0] != "01-a" || fields[1] != "2026-01-02" || fields[2] != "03:04:05" || fields[4] != "yes" || fields[5] != "First" {
		t.Errorf("unexpected row %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); fields[4] != "-" || fields[5] != "Second" {
		t.Errorf("unexpected row %q", lines[2])
	}
}
