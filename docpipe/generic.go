package docpipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// GenericConverter is a format-agnostic converter tried before the
// dedicated engines. Any error it returns triggers the fallback.
type GenericConverter interface {
	Name() string
	Convert(ctx context.Context, path string) (string, error)
}

// CommandConverter runs an external converter (markitdown by default) and
// reads markdown from its stdout.
type CommandConverter struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// Name returns the base name of the command.
func (c *CommandConverter) Name() string { return filepath.Base(c.Command) }

// Convert implements GenericConverter.
func (c *CommandConverter) Convert(ctx context.Context, path string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), c.Args...), path)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%s: timed out after %s", c.Name(), c.Timeout)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", c.Name(), err, strings.TrimSpace(stderr.String()))
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return "", errors.New(c.Name() + ": empty output")
	}
	return string(out), nil
}

// genericEngine adapts a GenericConverter to the Engine contract.
type genericEngine struct {
	conv GenericConverter
}

func (e *genericEngine) Name() string { return e.conv.Name() }

func (e *genericEngine) Extract(ctx context.Context, path string) (*Extraction, error) {
	text, err := e.conv.Convert(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Extraction{
		Processor: e.conv.Name(),
		Units:     []Unit{{Text: strings.TrimSpace(text), Kind: "converted"}},
	}, nil
}
