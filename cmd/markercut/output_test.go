package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderTableCutsWideCells(t *testing.T) {
	long := strings.Repeat("x", 40)
	out := renderTable([]column{{title: "Video"}, {title: "Detail", width: 12}}, [][]string{{"vid-1", long}, {"vid-2"}})
	if strings.Contains(out, long) {
		t.Fatalf("expected detail cut to width:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("x", 11)+"…") {
		t.Fatalf("expected ellipsis:\n%s", out)
	}
	if !strings.Contains(out, "vid-2") {
		t.Fatalf("expected short row rendered:\n%s", out)
	}
}

func TestRenderTableWithoutColumns(t *testing.T) {
	if out := renderTable(nil, [][]string{{"a"}}); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestWriteJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, map[string]int{"videos": 2}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if buf.String() != "{\n  \"videos\": 2\n}\n" {
		t.Fatalf("unexpected json %q", buf.String())
	}
}
