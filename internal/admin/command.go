// Package admin implements the text protocol spoken on the admin channel.
//
// The protocol is fire-and-forget: one read chunk is one command attempt and
// nothing is ever written back. The only recognized command is
//
//	SETDELAY <milliseconds>
//
// where the argument is a non-negative float. Anything else is reported as an
// error to the caller, which logs and ignores it; malformed input never takes
// the relay down.
package admin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/matst80/delayline/internal/delay"
)

var (
	ErrEmpty          = errors.New("empty admin input")
	ErrUnknownCommand = errors.New("unknown admin command")
	ErrMissingArg     = errors.New("SETDELAY requires a millisecond argument")
)

// Command is the parsed form of one admin chunk.
type Command struct {
	Delay time.Duration
}

// Parse interprets one admin read chunk. Tokenization is on whitespace and the
// command word is case-sensitive, so "setdelay" is rejected.
func Parse(b []byte) (Command, error) {
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return Command{}, ErrEmpty
	}
	if fields[0] != "SETDELAY" {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	if len(fields) < 2 {
		return Command{}, ErrMissingArg
	}
	ms, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Command{}, fmt.Errorf("parse delay %q: %w", fields[1], err)
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return Command{}, fmt.Errorf("delay %q is not a finite number", fields[1])
	}
	if ms < 0 {
		return Command{}, delay.ErrNegative
	}
	return Command{Delay: delay.FromMillis(ms)}, nil
}
