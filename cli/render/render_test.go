package render

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_InvalidErrorMessage(t *testing.T) {
	_, err := ParseFormat("xml")
	if err == nil || !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error should mention valid formats, got: %v", err)
	}
}

type imageRow struct {
	ID      string            `json:"id"`
	Tags    []string          `json:"tags"`
	Size    int64             `json:"size" render:"size"`
	Created time.Time         `json:"created"`
	Labels  map[string]string `json:"labels" render:"-"`
}

func TestRenderer_JSONAndYAML(t *testing.T) {
	row := imageRow{ID: "abc", Tags: []string{"app:1"}, Size: 2048}
	tests := []struct {
		format Format
		want   []string
	}{
		{FormatJSON, []string{`"id": "abc"`, `"size": 2048`}},
		{FormatYAML, []string{"id: abc", "size: 2048", "- app:1"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewRendererWithWriter(tt.format, &buf).Render(row); err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []imageRow{
		{ID: "abc", Tags: []string{"app:1", "app:latest"}, Size: 5 * 1024 * 1024, Created: created},
		{ID: "def", Size: 512},
	}
	if err := NewRendererWithWriter(FormatTable, &buf).Render(rows); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if got := strings.Fields(lines[0]); strings.Join(got, " ") != "ID TAGS SIZE CREATED" {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"app:1,app:latest", "5MiB", "2026-03-01T12:00:00Z"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row 1 missing %q: %q", want, lines[1])
		}
	}
	if !strings.Contains(lines[2], "512B") {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestRenderer_Table_Struct(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, &buf).Render(&imageRow{ID: "abc", Size: 1024}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "id:") || !strings.Contains(got, "1KiB") {
		t.Errorf("output = %s", got)
	}
	if strings.Contains(got, "labels") {
		t.Errorf("render:\"-\" field shown: %s", got)
	}
}

func TestRenderer_Table_MapSorted(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, &buf).Render(map[string]string{"b": "2", "a": "1"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := buf.String(); strings.Index(got, "a:") > strings.Index(got, "b:") {
		t.Errorf("keys not sorted: %s", got)
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, &buf).Render([]imageRow{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("got: %s", buf.String())
	}
}
