package exportbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

const defaultExecTimeoutSeconds = 600

// ExecProfile is the TOML file describing the export subprocess:
//
//	program = "edrawings-export"
//	args = ["--json"]
//	timeout_seconds = 600
type ExecProfile struct {
	Program        string            `toml:"program"`
	Args           []string          `toml:"args"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	Dir            string            `toml:"dir"`
	Env            map[string]string `toml:"env"`
}

func LoadExecProfile(path string) (ExecProfile, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ExecProfile{}, errors.New("bridge profile path is required")
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return ExecProfile{}, errs.Wrapf(err, "read bridge profile %s", trimmed)
	}

	var profile ExecProfile
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return ExecProfile{}, errs.Wrapf(err, "parse bridge profile %s", trimmed)
	}
	if strings.TrimSpace(profile.Program) == "" {
		return ExecProfile{}, errors.New("bridge profile program is required")
	}
	return profile, nil
}

// ExecBridge runs one subprocess per export. The request travels in
// PDM_EXPORT_* environment variables and the result is read as JSON from
// stdout.
type ExecBridge struct {
	mu      sync.RWMutex
	profile ExecProfile
}

var _ ports.ExportBridge = (*ExecBridge)(nil)

func NewExecBridge(profile ExecProfile) *ExecBridge {
	return &ExecBridge{profile: profile}
}

func (b *ExecBridge) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	profile := b.currentProfile()
	if _, err := exec.LookPath(profile.Program); err != nil {
		return errs.Wrapf(err, "locate bridge program %s", profile.Program)
	}
	return nil
}

func (b *ExecBridge) Export(ctx context.Context, input ports.ExportRequest) (ports.ExportResult, error) {
	if ctx == nil {
		return ports.ExportResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.ExportResult{}, errs.Wrap(err, "check context")
	}

	profile := b.currentProfile()
	runCtx, cancel := withExecTimeout(ctx, profile.TimeoutSeconds)
	defer cancel()

	cmd := exec.CommandContext(runCtx, profile.Program, profile.Args...)
	if dir := strings.TrimSpace(profile.Dir); dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(),
		"PDM_EXPORT_SOURCE="+input.SourceFilePath,
		"PDM_EXPORT_KIND="+string(input.Kind),
		"PDM_EXPORT_PART_NUMBER="+input.PartNumber,
		"PDM_EXPORT_REVISION="+revisionValue(input.Revision),
		"PDM_EXPORT_CONFIGURATION="+input.Configuration,
	)
	for key, value := range profile.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return ports.ExportResult{Success: false, Error: "export bridge timed out"}, nil
	}

	raw := strings.TrimSpace(stdout.String())
	if raw != "" {
		var out wireResult
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			result := out.toPort()
			if runErr != nil && result.Success {
				result.Success = false
				result.Error = runErr.Error()
			}
			return result, nil
		} else if runErr == nil {
			return ports.ExportResult{}, fmt.Errorf("parse bridge result: %w", err)
		}
	}

	if runErr != nil {
		summary := firstLine(stderr.String())
		if summary == "" {
			summary = runErr.Error()
		}
		return ports.ExportResult{Success: false, Error: summary}, nil
	}
	return ports.ExportResult{}, errors.New("bridge produced no result")
}

func (b *ExecBridge) currentProfile() ExecProfile {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.profile
}

func (b *ExecBridge) setProfile(profile ExecProfile) {
	b.mu.Lock()
	b.profile = profile
	b.mu.Unlock()
}

func withExecTimeout(ctx context.Context, timeoutSeconds int) (context.Context, context.CancelFunc) {
	effective := timeoutSeconds
	if effective <= 0 {
		effective = defaultExecTimeoutSeconds
	}
	return context.WithTimeout(ctx, time.Duration(effective)*time.Second)
}
