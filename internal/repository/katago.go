package repository

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mirror_go/internal/bootstrap"
	"mirror_go/internal/domain"
	"mirror_go/internal/domain/sgf"
	"mirror_go/internal/errors"
)

const (
	maxLineSize = 4 * 1024 * 1024
	quitTimeout = 5 * time.Second
)

// KatagoClient drives a KataGo process over its stdin and stdout.
//
// Every exchange is a full request/response: a new command is never written
// before the blank line ending the previous answer has been read. The client
// is not safe for concurrent use; it belongs to the GTP loop alone. Only
// Alive, Done and Terminate may be called from other goroutines.
type KatagoClient struct {
	cmd      *exec.Cmd
	stdin    *bufio.Writer
	stdout   *bufio.Scanner
	closer   io.Closer
	waitDone chan struct{}
	alive    atomic.Bool
	desynced atomic.Bool

	engineName      string
	analyzeInterval int
	log             *zap.SugaredLogger
}

// NewKatagoClient starts "<engine> gtp" and returns a client bound to its pipes.
func NewKatagoClient(cfg *bootstrap.Config, log *zap.SugaredLogger) (*KatagoClient, error) {
	args := []string{"gtp"}
	if cfg.ModelPath != "" {
		args = append(args, "-model", cfg.ModelPath)
	}
	if cfg.EngineConfigPath != "" {
		args = append(args, "-config", cfg.EngineConfigPath)
	}
	cmd := exec.Command(cfg.EnginePath, args...)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("katago stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("katago stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.EnginePath, err)
	}
	log.Infow("katago started", "path", cfg.EnginePath, "args", args, "pid", cmd.Process.Pid)

	client := newKatagoClient(stdoutPipe, stdinPipe, cfg.EngineName, cfg.AnalyzeInterval, log)
	client.cmd = cmd
	client.closer = stdinPipe
	go func() {
		err := cmd.Wait()
		client.alive.Store(false)
		if err != nil {
			log.Warnw("katago exited", "error", err)
		} else {
			log.Infow("katago exited")
		}
		close(client.waitDone)
	}()
	return client, nil
}

func newKatagoClient(out io.Reader, in io.Writer, engineName string, analyzeInterval int, log *zap.SugaredLogger) *KatagoClient {
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	client := &KatagoClient{
		stdin:           bufio.NewWriter(in),
		stdout:          scanner,
		waitDone:        make(chan struct{}),
		engineName:      engineName,
		analyzeInterval: analyzeInterval,
		log:             log,
	}
	client.alive.Store(true)
	return client
}

func (c *KatagoClient) Alive() bool {
	return c.alive.Load()
}

// Done is closed once the engine process has exited.
func (c *KatagoClient) Done() <-chan struct{} {
	return c.waitDone
}

// Send runs one generic command and returns the response text without its
// status marker. A "?" answer comes back as *errors.CommandError.
func (c *KatagoClient) Send(args ...string) (string, error) {
	command := strings.Join(args, " ")
	if err := c.writeLine(command); err != nil {
		return "", err
	}

	var lines []string
	for {
		line, err := c.readLine()
		if err != nil {
			return "", c.check(fmt.Errorf("reading response to %q: %w", command, err))
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}

	response, err := parseResponse(command, strings.Join(lines, "\n"))
	if err != nil {
		c.log.Debugw("engine exchange failed", "command", command, "error", err)
		return "", c.check(err)
	}
	c.log.Debugw("engine exchange", "command", command, "response", response)
	return response, nil
}

func parseResponse(command, raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty response to %q", errors.ErrProtocolViolation, command)
	}
	switch raw[0] {
	case '=':
		return strings.TrimSpace(raw[1:]), nil
	case '?':
		return "", &errors.CommandError{Command: command, Message: strings.TrimSpace(raw[1:])}
	}
	return "", fmt.Errorf("%w: response to %q starts with %q", errors.ErrProtocolViolation, command, raw[:1])
}

// CheckReady makes sure the process on the other end is the engine we expect.
func (c *KatagoClient) CheckReady() error {
	name, err := c.Send("name")
	if err != nil {
		return err
	}
	if name != c.engineName {
		return fmt.Errorf("%w: got %q, want %q", errors.ErrEngineIdentityMismatch, name, c.engineName)
	}
	return nil
}

// Analyze runs kata-analyze for color and returns the first candidate of the
// first report. kata-analyze answers with a bare "=" and then streams info
// lines until any input arrives, after which it finishes with a blank line.
func (c *KatagoClient) Analyze(color domain.Color) (domain.AnalysisResult, error) {
	result, err := c.analyze(color)
	return result, c.check(err)
}

func (c *KatagoClient) analyze(color domain.Color) (domain.AnalysisResult, error) {
	command := "kata-analyze " + string(color) + " " + strconv.Itoa(c.analyzeInterval)
	if err := c.writeLine(command); err != nil {
		return domain.AnalysisResult{}, err
	}

	header, err := c.readLine()
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("reading %q header: %w", command, err)
	}
	if strings.TrimSpace(header) != "=" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: %q answered %q", errors.ErrProtocolViolation, command, header)
	}

	line, err := c.readLine()
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("reading %q report: %w", command, err)
	}
	if strings.TrimSpace(line) == "" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: %q ended without a report", errors.ErrProtocolViolation, command)
	}
	result, parseErr := parseAnalysisLine(line)

	if err := c.writeLine(""); err != nil {
		return domain.AnalysisResult{}, err
	}
	for {
		rest, err := c.readLine()
		if err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("draining %q: %w", command, err)
		}
		if strings.TrimSpace(rest) == "" {
			break
		}
	}

	if parseErr != nil {
		return domain.AnalysisResult{}, parseErr
	}
	c.log.Debugw("analysis", "color", color, "move", result.Move, "scoreLead", result.ScoreLead)
	return result, nil
}

// variableLengthKeys run to the end of their info block.
var variableLengthKeys = map[string]bool{
	"pv":                  true,
	"pvVisits":            true,
	"pvEdgeVisits":        true,
	"ownership":           true,
	"ownershipStdev":      true,
	"movesOwnership":      true,
	"movesOwnershipStdev": true,
}

// parseAnalysisLine reads the first "info move <vertex> key value ..." block.
func parseAnalysisLine(line string) (domain.AnalysisResult, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: %q", errors.ErrAnalysisParse, line)
	}

	var result domain.AnalysisResult
	haveScore := false
	for i := 1; i < len(fields); i += 2 {
		key := fields[i]
		if key == "info" || variableLengthKeys[key] {
			break
		}
		if i+1 >= len(fields) {
			return domain.AnalysisResult{}, fmt.Errorf("%w: %s without value", errors.ErrAnalysisParse, key)
		}
		value := fields[i+1]
		switch key {
		case "move":
			result.Move = value
		case "scoreLead":
			score, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return domain.AnalysisResult{}, fmt.Errorf("%w: scoreLead %q", errors.ErrAnalysisParse, value)
			}
			result.ScoreLead = score
			haveScore = true
		}
	}

	if result.Move == "" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: no move in %q", errors.ErrAnalysisParse, line)
	}
	if !haveScore {
		return domain.AnalysisResult{}, fmt.Errorf("%w: no scoreLead in %q", errors.ErrAnalysisParse, line)
	}
	return result, nil
}

// PrintRecord exports the game as SGF and extracts what the mirror needs.
func (c *KatagoClient) PrintRecord() (domain.RecordSummary, error) {
	text, err := c.Send("printsgf")
	if err != nil {
		return domain.RecordSummary{}, err
	}
	summary, err := sgf.Summarize(text)
	if err != nil {
		return domain.RecordSummary{}, fmt.Errorf("%w: %v", errors.ErrProtocolViolation, err)
	}
	return summary, nil
}

func (c *KatagoClient) Play(color domain.Color, vertex string) error {
	_, err := c.Send("play", string(color), vertex)
	return err
}

func (c *KatagoClient) Undo() error {
	_, err := c.Send("undo")
	return err
}

// Close asks the engine to quit and waits for the process to go away. The
// quit exchange is skipped once the stream is out of sync.
func (c *KatagoClient) Close() error {
	if c.alive.Load() && !c.desynced.Load() {
		if _, err := c.Send("quit"); err != nil {
			c.log.Debugw("quit exchange failed", "error", err)
		}
	}
	return c.Terminate()
}

// Terminate closes the engine's stdin and waits for it to exit, killing it
// after quitTimeout. It never touches the buffered pipes, so it may run while
// another goroutine is in the middle of an exchange.
func (c *KatagoClient) Terminate() error {
	c.alive.Store(false)
	if c.closer != nil {
		_ = c.closer.Close()
	}
	if c.cmd == nil {
		return nil
	}
	select {
	case <-c.waitDone:
		return nil
	case <-time.After(quitTimeout):
	}
	c.log.Warnw("katago did not exit, killing it", "pid", c.cmd.Process.Pid)
	if err := c.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill katago: %w", err)
	}
	<-c.waitDone
	return nil
}

// check remembers protocol violations: after one, nothing more is written.
func (c *KatagoClient) check(err error) error {
	if err != nil && errors.Is(err, errors.ErrProtocolViolation) {
		c.desynced.Store(true)
	}
	return err
}

func (c *KatagoClient) writeLine(line string) error {
	if !c.alive.Load() {
		return errors.ErrEngineStopped
	}
	if c.desynced.Load() {
		return fmt.Errorf("%w: session out of sync, not sending %q", errors.ErrProtocolViolation, line)
	}
	if _, err := c.stdin.WriteString(line + "\n"); err != nil {
		c.alive.Store(false)
		return fmt.Errorf("write %q: %w", line, err)
	}
	if err := c.stdin.Flush(); err != nil {
		c.alive.Store(false)
		return fmt.Errorf("flush %q: %w", line, err)
	}
	return nil
}

func (c *KatagoClient) readLine() (string, error) {
	if c.stdout.Scan() {
		return strings.TrimRight(c.stdout.Text(), "\r"), nil
	}
	c.alive.Store(false)
	if err := c.stdout.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrProtocolViolation, err)
	}
	return "", fmt.Errorf("%w: %w", errors.ErrProtocolViolation, errors.ErrEngineStopped)
}
