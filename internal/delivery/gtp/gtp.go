package gtp

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"mirror_go/internal/domain"
	"mirror_go/internal/errors"
)

const (
	botName         = "MirrorGoBot"
	botVersion      = "1.0"
	protocolVersion = "2"
)

type KatagoStore interface {
	Send(args ...string) (string, error)
}

type MoveGenerator interface {
	GenerateMove(ctx context.Context, color domain.Color) (domain.Decision, error)
}

type handlerFunc func(ctx context.Context, args []string) (string, error)

// argumentError is a bad request from the frontend. It is answered with a
// failure response and does not stop the loop.
type argumentError string

func (e argumentError) Error() string { return string(e) }

var errQuit = stderrors.New("quit")

type GtpHandler struct {
	log      *zap.SugaredLogger
	engine   KatagoStore
	mirror   MoveGenerator
	handlers map[string]handlerFunc
	order    []string
}

func NewGtpHandler(log *zap.SugaredLogger, engine KatagoStore, mirror MoveGenerator) *GtpHandler {
	h := &GtpHandler{
		log:      log,
		engine:   engine,
		mirror:   mirror,
		handlers: make(map[string]handlerFunc),
	}
	h.register("quit", func(context.Context, []string) (string, error) { return "", errQuit })
	h.register("list_commands", h.handleListCommands)
	h.register("known_command", h.handleKnownCommand)
	h.register("name", static(botName))
	h.register("version", static(botVersion))
	h.register("protocol_version", static(protocolVersion))
	h.register("clear_board", h.forward("clear_board"))
	h.register("boardsize", h.forward("boardsize"))
	h.register("komi", h.forward("komi"))
	h.register("play", h.forward("play"))
	h.register("genmove", h.handleGenmove)
	return h
}

func (h *GtpHandler) register(name string, fn handlerFunc) {
	h.handlers[name] = fn
	h.order = append(h.order, name)
}

// Commands lists the registered command names in registration order.
func (h *GtpHandler) Commands() []string {
	return append([]string(nil), h.order...)
}

// Serve answers commands from in until quit or end of input. It returns an
// error only for failures that leave the engine session unusable.
func (h *GtpHandler) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	w := bufio.NewWriter(out)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		name, args := fields[0], fields[1:]
		h.log.Debugw("gtp command", "name", name, "args", args)

		handler, ok := h.handlers[name]
		if !ok {
			if err := writeResponse(w, false, "unknown command"); err != nil {
				return err
			}
			continue
		}

		response, err := handler(ctx, args)
		switch {
		case err == nil:
			err = writeResponse(w, true, response)
		case stderrors.Is(err, errQuit):
			return writeResponse(w, true, "")
		default:
			var argErr argumentError
			if cmdErr, ok := errors.AsCommandError(err); ok {
				h.log.Infow("engine rejected command", "name", name, "args", args, "reason", cmdErr.Message)
				err = writeResponse(w, false, cmdErr.Message)
			} else if stderrors.As(err, &argErr) {
				err = writeResponse(w, false, argErr.Error())
			} else {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading frontend input: %w", err)
	}
	h.log.Infow("frontend closed input")
	return nil
}

func writeResponse(w *bufio.Writer, success bool, text string) error {
	marker := "="
	if !success {
		marker = "?"
	}
	if _, err := fmt.Fprintf(w, "%s %s\n\n", marker, text); err != nil {
		return err
	}
	return w.Flush()
}

func static(text string) handlerFunc {
	return func(context.Context, []string) (string, error) {
		return text, nil
	}
}

// forward passes the command through to the engine unchanged.
func (h *GtpHandler) forward(name string) handlerFunc {
	return func(_ context.Context, args []string) (string, error) {
		return h.engine.Send(append([]string{name}, args...)...)
	}
}

func (h *GtpHandler) handleListCommands(context.Context, []string) (string, error) {
	return strings.Join(h.order, "\n"), nil
}

func (h *GtpHandler) handleKnownCommand(_ context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", argumentError("known_command takes exactly one argument")
	}
	if _, ok := h.handlers[args[0]]; ok {
		return "true", nil
	}
	return "false", nil
}

func (h *GtpHandler) handleGenmove(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", argumentError("genmove takes exactly one argument")
	}
	color, err := domain.ParseColor(args[0])
	if err != nil {
		return "", argumentError(err.Error())
	}

	decision, err := h.mirror.GenerateMove(ctx, color)
	if err != nil {
		return "", err
	}
	if _, err := h.engine.Send("play", string(color), decision.Move); err != nil {
		return "", err
	}
	return decision.Move, nil
}
