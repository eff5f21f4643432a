// Package uci speaks the line-oriented protocol of external analysis engines.
package uci

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/verte-zerg/repertoire/internal/model"
)

// ErrClosed is returned when the worker's output ends.
var ErrClosed = errors.New("engine output closed")

// Worker is a running engine: commands in, text lines out.
type Worker interface {
	Send(cmd string) error
	// Lines delivers engine output. The channel is closed when the engine exits.
	Lines() <-chan string
	Close() error
}

// Info is a parsed progress line.
type Info struct {
	Depth    int
	MultiPV  int
	Score    model.Evaluation
	HasScore bool
	Bound    string
	PV       []string
}

// Move returns the first move of the principal variation.
func (i Info) Move() string {
	if len(i.PV) == 0 {
		return ""
	}
	return i.PV[0]
}

// ParseInfo parses an "info" line. Lines without a score or PV report ok == false.
func ParseInfo(line string) (Info, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return Info{}, false
	}
	info := Info{MultiPV: 1}
	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				info.Depth, _ = strconv.Atoi(parts[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if n, err := strconv.Atoi(parts[i+1]); err == nil && n > 0 {
					info.MultiPV = n
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				v, err := strconv.Atoi(parts[i+2])
				if err == nil {
					switch parts[i+1] {
					case "cp":
						info.Score = model.Evaluation{Kind: model.EvalCentipawn, Value: v}
						info.HasScore = true
					case "mate":
						info.Score = model.Evaluation{Kind: model.EvalMate, Value: v}
						info.HasScore = true
					}
				}
				i += 2
				if i+1 < len(parts) && (parts[i+1] == "lowerbound" || parts[i+1] == "upperbound") {
					info.Bound = parts[i+1]
					i++
				}
			}
		case "pv":
			info.PV = append([]string(nil), parts[i+1:]...)
			i = len(parts)
		case "string":
			i = len(parts)
		}
	}
	if !info.HasScore || len(info.PV) == 0 {
		return info, false
	}
	return info, true
}

// ParseBestMove parses a terminal "bestmove" line.
// A search with no legal move reports ok with an empty move.
func ParseBestMove(line string) (string, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "bestmove" {
		return "", false
	}
	if len(parts) < 2 || parts[1] == "(none)" || parts[1] == "0000" {
		return "", true
	}
	return parts[1], true
}

// Handshake runs the uci/isready exchange and returns the engine's name.
func Handshake(ctx context.Context, w Worker) (string, error) {
	if err := w.Send("uci"); err != nil {
		return "", fmt.Errorf("failed to send uci: %w", err)
	}
	var name string
	for {
		line, err := next(ctx, w)
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(line, "id name ") {
			name = strings.TrimPrefix(line, "id name ")
		}
		if strings.TrimSpace(line) == "uciok" {
			break
		}
	}
	if err := w.Send("isready"); err != nil {
		return "", fmt.Errorf("failed to send isready: %w", err)
	}
	for {
		line, err := next(ctx, w)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "readyok" {
			return name, nil
		}
	}
}

func next(ctx context.Context, w Worker) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-w.Lines():
		if !ok {
			return "", ErrClosed
		}
		return line, nil
	}
}

// Command builders.

// SetMultiPV sets the number of reported lines.
func SetMultiPV(n int) string {
	return fmt.Sprintf("setoption name MultiPV value %d", n)
}

// PositionFEN loads a position.
func PositionFEN(fen string) string {
	return "position fen " + fen
}

// GoDepth starts a depth-bounded search.
func GoDepth(depth int) string {
	return fmt.Sprintf("go depth %d", depth)
}

// GoMoveTime starts a time-boxed search.
func GoMoveTime(ms int) string {
	return fmt.Sprintf("go movetime %d", ms)
}

// Stop halts the current search.
const Stop = "stop"
