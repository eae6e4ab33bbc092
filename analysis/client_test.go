package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"failsight/agent"
	"failsight/failure"
)

const validJSON = `{"english_exception":"The file could not be opened.","probable_causes":["missing file"],"suggested_fixes":["create it"],"confidence":0.6,"safe_log_summary":"file missing"}`

func testFailure() failure.Failure {
	return failure.Failure{
		Type:    "*fs.PathError",
		Message: "open /etc/app.yaml: no such file or directory",
		File:    "/src/config.go",
		Line:    42,
		Frames: []failure.Frame{
			{Function: "main.loadConfig", File: "/src/config.go", Line: 42},
			{Function: "main.main", File: "/src/main.go", Line: 10},
		},
	}
}

func staticAgent(text string, err error) agent.Agent {
	return agent.Func(func(context.Context, agent.Messages) (string, error) {
		return text, err
	})
}

func TestClient_Call(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		err     error
		wantErr error
	}{
		{"plain json", validJSON, nil, nil},
		{"fenced with language", "```json\n" + validJSON + "\n```", nil, nil},
		{"fenced without language", "```\n" + validJSON + "\n```  ", nil, nil},
		{"surrounding whitespace", "\n\n  " + validJSON + "  \n", nil, nil},
		{"empty", "", nil, ErrEmptyResponse},
		{"whitespace only", " \n\t ", nil, ErrEmptyResponse},
		{"prose", "The error means the file is missing.", nil, ErrMalformedResponse},
		{"json array", `["a","b"]`, nil, ErrMalformedResponse},
		{"json string", `"explanation"`, nil, ErrMalformedResponse},
		{"truncated", `{"english_exception":"x",`, nil, ErrMalformedResponse},
		{"missing explanation", `{"confidence":0.9}`, nil, ErrInvalidAnalysis},
		{"agent error", "", errors.New("connection refused"), ErrAgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(staticAgent(tt.text, tt.err), time.Second, false)
			a, err := c.Call(context.Background(), testFailure())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if a != nil {
					t.Errorf("analysis = %+v, want nil", a)
				}
				return
			}
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if a.EnglishExplanation() != "The file could not be opened." {
				t.Errorf("explanation = %q", a.EnglishExplanation())
			}
			if a.Confidence() != 0.6 {
				t.Errorf("confidence = %v", a.Confidence())
			}
		})
	}
}

func TestClient_SendsPromptAndFailure(t *testing.T) {
	var got agent.Messages
	a := agent.Func(func(_ context.Context, m agent.Messages) (string, error) {
		got = m
		return validJSON, nil
	})

	if _, err := NewClient(a, time.Second, false).Call(context.Background(), testFailure()); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.System != SystemPrompt {
		t.Error("system prompt not sent")
	}
	for _, want := range []string{
		"Exception: *fs.PathError",
		"Message: open /etc/app.yaml: no such file or directory",
		"File: /src/config.go",
		"Line: 42",
	} {
		if !strings.Contains(got.User, want) {
			t.Errorf("user message missing %q:\n%s", want, got.User)
		}
	}
	if strings.Contains(got.User, "Trace:") {
		t.Error("trace sent although trace inclusion is off")
	}

	if _, err := NewClient(a, time.Second, true).Call(context.Background(), testFailure()); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(got.User, "Trace:\n#0 main.loadConfig /src/config.go:42") {
		t.Errorf("trace missing from user message:\n%s", got.User)
	}
}

func TestClient_TimeoutBoundsSlowAgent(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// Ignores its context on purpose.
	slow := agent.Func(func(context.Context, agent.Messages) (string, error) {
		<-release
		return validJSON, nil
	})

	timeout := 100 * time.Millisecond
	start := time.Now()
	a, err := NewClient(slow, timeout, false).Call(context.Background(), testFailure())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if a != nil {
		t.Error("expected no analysis")
	}
	if elapsed > timeout+400*time.Millisecond {
		t.Errorf("Call returned after %s, timeout was %s", elapsed, timeout)
	}
}

func TestClient_TimeoutCancelsContext(t *testing.T) {
	cancelled := make(chan struct{})
	a := agent.Func(func(ctx context.Context, _ agent.Messages) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	})

	_, err := NewClient(a, 100*time.Millisecond, false).Call(context.Background(), testFailure())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("agent context was not cancelled")
	}
}

func TestClient_CallerCancelIsNotATimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	tests := []struct {
		name  string
		agent agent.Agent
	}{
		{"agent returns ctx error", agent.Func(func(ctx context.Context, _ agent.Messages) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})},
		{"agent ignores ctx", agent.Func(func(context.Context, agent.Messages) (string, error) {
			<-release
			return validJSON, nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := NewClient(tt.agent, time.Second, false).Call(ctx, testFailure())
			if !errors.Is(err, ErrAgent) {
				t.Fatalf("error = %v, want ErrAgent", err)
			}
			if errors.Is(err, ErrTimeout) {
				t.Errorf("error = %v, cancellation reported as a timeout", err)
			}
			if !errors.Is(err, context.Canceled) {
				t.Errorf("error = %v, want it to wrap context.Canceled", err)
			}
		})
	}
}

func TestClient_AgentPanic(t *testing.T) {
	a := agent.Func(func(context.Context, agent.Messages) (string, error) {
		panic("sdk bug")
	})
	_, err := NewClient(a, time.Second, false).Call(context.Background(), testFailure())
	if !errors.Is(err, ErrAgent) {
		t.Fatalf("error = %v, want ErrAgent", err)
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient(staticAgent(validJSON, nil), 0, false)
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", c.timeout, DefaultTimeout)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence on one line", "```json {\"a\":1} ```", `{"a":1}`},
		{"leading whitespace", "  \n```json\n{\"a\":1}\n```\n", `{"a":1}`},
		{"inner backticks kept", "{\"a\":\"```\"}", "{\"a\":\"```\"}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences() = %q, want %q", got, tt.want)
			}
		})
	}
}
