package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"failsight/logger"
)

// AmpConfig configures the Amp CLI agent.
type AmpConfig struct {
	Binary  string `yaml:"binary"`   // path to the amp binary, default "amp"
	Mode    string `yaml:"mode"`     // agent mode: smart / rush / deep
	WorkDir string `yaml:"work_dir"` // working directory of the process
}

// Amp runs each request through the Amp CLI with --stream-json and returns
// the text of the final result message.
type Amp struct {
	binary  string
	apiKey  string
	mode    string
	workDir string
	log     logger.Logger
}

// NewAmp creates an Amp CLI agent.
func NewAmp(cfg AmpConfig, apiKey string, log logger.Logger) *Amp {
	if cfg.Binary == "" {
		cfg.Binary = "amp"
	}
	if cfg.Mode == "" {
		cfg.Mode = "rush"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Amp{binary: cfg.Binary, apiKey: apiKey, mode: cfg.Mode, workDir: cfg.WorkDir, log: log}
}

// Call implements Agent. The process is killed when ctx is done.
func (a *Amp) Call(ctx context.Context, msgs Messages) (string, error) {
	settingsPath, err := writeSettingsFile(NoToolPermissions())
	if err != nil {
		return "", fmt.Errorf("write settings file: %w", err)
	}
	defer os.Remove(settingsPath)

	prompt := msgs.System + "\n\n---\n\n" + msgs.User
	args := []string{"--execute", prompt, "--stream-json", "--settings-file", settingsPath, "--mode", a.mode}

	a.log.Debug("agent.amp.execute",
		logger.String("binary", a.binary),
		logger.String("mode", a.mode),
		logger.Int("prompt_len", len(prompt)),
	)

	cmd := exec.CommandContext(ctx, a.binary, args...)
	if a.workDir != "" {
		cmd.Dir = a.workDir
	}
	if a.apiKey != "" {
		cmd.Env = append(cmd.Environ(), "AMP_API_KEY="+a.apiKey)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start amp: %w", err)
	}

	res, readErr := a.readStream(stdout)
	if readErr != nil {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return "", fmt.Errorf("amp execution cancelled: %w", ctx.Err())
	case readErr != nil:
		return "", readErr
	case waitErr != nil:
		return "", fmt.Errorf("amp exited with error: %w", waitErr)
	case res.IsError:
		return "", fmt.Errorf("amp reported error: %s", res.Error)
	}
	return res.Result, nil
}

// readStream consumes the NDJSON stream and returns the result message.
func (a *Amp) readStream(r io.Reader) (*streamMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var result *streamMessage
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg streamMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			a.log.Warn("agent.amp.parse_error", logger.Int("line_len", len(line)), logger.Err(err))
			continue
		}

		switch msg.Type {
		case "system":
			if msg.Subtype == "init" {
				a.log.Debug("agent.amp.init", logger.String("session_id", msg.SessionID))
			}
		case "result":
			m := msg
			result = &m
		}
	}
	if err := scanner.Err(); err != nil && result == nil {
		return nil, fmt.Errorf("amp scanner: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("amp stream ended without a result")
	}
	a.log.Debug("agent.amp.result",
		logger.Int64("duration_ms", result.DurationMs),
		logger.Int("num_turns", result.NumTurns),
		logger.Bool("is_error", result.IsError),
	)
	return result, nil
}

// writeSettingsFile creates a temporary JSON settings file with the given
// permission rules and returns its path.
func writeSettingsFile(permissions []string) (string, error) {
	rules := make([]map[string]any, 0, len(permissions))
	for _, perm := range permissions {
		rules = append(rules, map[string]any{"rule": perm})
	}
	settings := map[string]any{"amp.permissions": rules}

	f, err := os.CreateTemp("", "failsight-amp-settings-*.json")
	if err != nil {
		return "", err
	}
	if err := json.NewEncoder(f).Encode(settings); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	f.Close()
	return f.Name(), nil
}
