// Package parser decodes simulator messages into core types. It performs no
// storage and holds no episode state.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Simulator commands.
const (
	CommandSimStart = ":SIM:START:"
	CommandScene    = ":SCENE:"
	CommandPrompt   = ":PROMPT:"
	CommandSimEnd   = ":SIM:END:"
)

// ErrInvalidPayload wraps every payload validation failure.
var ErrInvalidPayload = errors.New("invalid payload")

// Message is one line of the simulator stream.
type Message struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.0") into uint64.
// The simulator serializes numpy integers either way.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// Parser converts raw JSON into core values.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseMessage splits a stream line into its command and raw payload.
func (p *Parser) ParseMessage(line []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return msg, fmt.Errorf("error unmarshalling message: %w", err)
	}
	msg.Command = strings.TrimSpace(msg.Command)
	if msg.Command == "" {
		return msg, fmt.Errorf("%w: missing command", ErrInvalidPayload)
	}
	return msg, nil
}
