package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

type execResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Code   int    `json:"code"`
}

// handleExec runs a shell command in the project root with a wall-clock
// timeout. A non-zero exit status is a successful response carrying the code.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	if s.disableExec {
		writeError(w, &apiError{Type: ErrorTypeForbidden, Message: "command execution is disabled", Code: http.StatusForbidden})
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Command == "" {
		writeError(w, validationError("No command"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.execTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := shellCommand(ctx, req.Command)
	cmd.Dir = s.project.RootDir()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not hold Run open past the timeout.
	cmd.WaitDelay = time.Second

	s.logger.Info("exec", "command", req.Command, "requestId", requestID(r.Context()))
	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		writeError(w, &apiError{Type: ErrorTypeTimeout, Message: "command timed out after " + s.execTimeout.String(), Code: http.StatusGatewayTimeout})
		return
	}

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			writeError(w, internalError(err.Error()))
			return
		}
		code = exitErr.ExitCode()
	}

	writeJSON(w, http.StatusOK, execResponse{
		Stdout: textContent(stdout.Bytes()),
		Stderr: textContent(stderr.Bytes()),
		Code:   code,
	})
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}
