package gate

import (
	"bufio"
	"go/build"
	"os"
	"path/filepath"
	"strings"

	"failsight/failure"
)

// Display styles of a trace frame.
const (
	StyleExpanded = "expanded"
	StyleCompact  = "compact"
)

// excerptContext is the number of source lines shown around a frame's line.
const excerptContext = 5

// TraceFrame is a stack frame prepared for display.
type TraceFrame struct {
	Call     string
	File     string
	Line     int
	Excerpt  []ExcerptLine
	IsVendor bool
	Style    string
}

// ExcerptLine is one line of source code around a frame.
type ExcerptLine struct {
	Number   int
	Code     string
	Selected bool
}

// FormatTrace prepares frames for the HTML page. Third-party and standard
// library frames are flagged as vendor and shown compact; the innermost
// application frame is expanded. Application frames get a source excerpt
// when withExcerpt is set and the file is still readable.
func FormatTrace(frames []failure.Frame, withExcerpt bool) []TraceFrame {
	out := make([]TraceFrame, 0, len(frames))
	for i, fr := range frames {
		tf := TraceFrame{
			Call:     fr.Function,
			File:     fr.File,
			Line:     fr.Line,
			IsVendor: isVendorFile(fr.File),
		}
		switch {
		case tf.IsVendor:
			tf.Style = StyleCompact
		case i == 0 && tf.Call != "":
			tf.Style = StyleExpanded
		}
		if withExcerpt && !tf.IsVendor && fr.File != "" && fr.Line > 0 {
			tf.Excerpt = fileExcerpt(fr.File, fr.Line, excerptContext)
		}
		out = append(out, tf)
	}
	return out
}

var goroot = filepath.ToSlash(build.Default.GOROOT)

func isVendorFile(file string) bool {
	if file == "" {
		return false
	}
	file = filepath.ToSlash(file)
	if strings.Contains(file, "/vendor/") || strings.Contains(file, "/pkg/mod/") {
		return true
	}
	return goroot != "" && strings.HasPrefix(file, goroot+"/")
}

// fileExcerpt returns the lines [line-context, line+context] of file,
// clamped to the file, or nil when the file cannot be read.
func fileExcerpt(file string, line, context int) []ExcerptLine {
	f, err := os.Open(file)
	if err != nil {
		return nil
	}
	defer f.Close()

	start := max(line-context, 1)
	end := line + context

	var out []ExcerptLine
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan() && n <= end; n++ {
		if n < start {
			continue
		}
		out = append(out, ExcerptLine{Number: n, Code: sc.Text(), Selected: n == line})
	}
	return out
}
