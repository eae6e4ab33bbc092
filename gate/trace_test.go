package gate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"failsight/failure"
)

func TestFormatTrace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "handler.go")
	var lines []string
	for i := 1; i <= 20; i++ {
		lines = append(lines, "line"+strings.Repeat("x", i%3))
	}
	if err := os.WriteFile(src, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	frames := []failure.Frame{
		{Function: "app.(*Handler).Serve", File: src, Line: 3},
		{Function: "app.route", File: src, Line: 18},
		{Function: "github.com/lib/pq.(*conn).query", File: "/home/u/go/pkg/mod/github.com/lib/pq@v1.10.9/conn.go", Line: 120},
		{Function: "app.main", File: "/srv/app/vendor/example.com/x/x.go", Line: 9},
	}
	got := FormatTrace(frames, true)
	if len(got) != 4 {
		t.Fatalf("len = %d", len(got))
	}

	first := got[0]
	if first.Style != StyleExpanded || first.IsVendor {
		t.Errorf("first frame = %+v", first)
	}
	if len(first.Excerpt) != 8 || first.Excerpt[0].Number != 1 || !first.Excerpt[2].Selected {
		t.Errorf("excerpt around line 3 = %+v", first.Excerpt)
	}

	second := got[1]
	if second.Style != "" {
		t.Errorf("inner application frame style = %q, want none", second.Style)
	}
	if n := len(second.Excerpt); n != 8 || second.Excerpt[n-1].Number != 20 {
		t.Errorf("excerpt around line 18 = %+v", second.Excerpt)
	}

	for _, f := range got[2:] {
		if !f.IsVendor || f.Style != StyleCompact || f.Excerpt != nil {
			t.Errorf("vendor frame = %+v", f)
		}
	}
}

func TestFormatTrace_MissingFile(t *testing.T) {
	got := FormatTrace([]failure.Frame{{Function: "app.f", File: "/does/not/exist.go", Line: 10}}, true)
	if got[0].Excerpt != nil {
		t.Errorf("excerpt = %+v, want nil", got[0].Excerpt)
	}
}

func TestFormatTrace_NoExcerpt(t *testing.T) {
	got := FormatTrace([]failure.Frame{{Function: "app.f", File: "trace_test.go", Line: 1}}, false)
	if got[0].Excerpt != nil {
		t.Error("excerpt read although disabled")
	}
}
