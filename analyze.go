package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"failsight/analysis"
	"failsight/failure"
)

var errNoAnalysis = errors.New("no analysis could be produced")

type analyzeFlags struct {
	failureType string
	message     string
	file        string
	line        int
	traceFile   string
	asJSON      bool
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var fl analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Explain a single failure and print the result",
		Example: `  failsight analyze --type '*pq.Error' --message 'relation "orders" does not exist'
  failsight analyze --type runtime.Error --message 'index out of range' --trace-file trace.txt --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			f, err := fl.failure()
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cfg, f, fl.asJSON, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fl.failureType, "type", "", "failure type, e.g. *fs.PathError")
	flags.StringVar(&fl.message, "message", "", "failure message")
	flags.StringVar(&fl.file, "file", "", "source file where the failure was raised")
	flags.IntVar(&fl.line, "line", 0, "line where the failure was raised")
	flags.StringVar(&fl.traceFile, "trace-file", "", "file with one stack frame per line")
	flags.BoolVar(&fl.asJSON, "json", false, "print the analysis as JSON")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func (fl analyzeFlags) failure() (failure.Failure, error) {
	f := failure.Failure{
		Type:    fl.failureType,
		Message: fl.message,
		File:    fl.file,
		Line:    fl.line,
	}
	if fl.traceFile == "" {
		return f, nil
	}

	file, err := os.Open(fl.traceFile)
	if err != nil {
		return f, fmt.Errorf("open trace file: %w", err)
	}
	defer file.Close()
	frames, err := readFrames(file)
	if err != nil {
		return f, fmt.Errorf("read trace file: %w", err)
	}
	f.Frames = frames
	if f.File == "" && len(frames) > 0 {
		f.File, f.Line = frames[0].File, frames[0].Line
	}
	return f, nil
}

// readFrames parses one frame per line in the "#i function file:line" form
// that Failure.TraceLines produces. The "#i" prefix is optional and lines
// without a location keep only the function.
func readFrames(r io.Reader) ([]failure.Frame, error) {
	var frames []failure.Frame
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if _, rest, ok := strings.Cut(line, " "); ok {
				line = strings.TrimSpace(rest)
			}
		}
		frames = append(frames, parseFrame(line))
	}
	return frames, sc.Err()
}

func parseFrame(s string) failure.Frame {
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return failure.Frame{Function: s}
	}
	fn, loc := s[:i], s[i+1:]
	j := strings.LastIndexByte(loc, ':')
	if j < 0 {
		return failure.Frame{Function: s}
	}
	n, err := strconv.Atoi(loc[j+1:])
	if err != nil {
		return failure.Frame{Function: s}
	}
	return failure.Frame{Function: fn, File: loc[:j], Line: n}
}

func runAnalyze(ctx context.Context, cfg *Config, f failure.Failure, asJSON bool, out io.Writer) error {
	log, err := newLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer log.Close()

	p, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	a := p.analyzer.Analyze(ctx, f)
	if a == nil {
		return errNoAnalysis
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Fingerprint string             `json:"fingerprint"`
			Analysis    *analysis.Analysis `json:"analysis"`
		}{p.analyzer.Fingerprint(f), a})
	}
	return writeText(out, a)
}

func writeText(w io.Writer, a *analysis.Analysis) error {
	var sb strings.Builder
	sb.WriteString(a.EnglishExplanation())
	sb.WriteString("\n")
	writeList(&sb, "Probable causes", a.ProbableCauses())
	writeList(&sb, "Suggested fixes", a.SuggestedFixes())
	fmt.Fprintf(&sb, "\nConfidence: %.0f%%\n", a.Confidence()*100)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "  - %s\n", item)
	}
}
