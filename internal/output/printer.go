// Package output renders command results for humans or machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"
)

// Mode determines output shape
type Mode int

const (
	ModeQuiet    Mode = iota // one-line summary
	ModeStandard             // key: value lines
	ModeJSON                 // indented JSON
)

// DefaultMode picks a mode from the environment
func DefaultMode() Mode {
	if os.Getenv("ASSETFORGE_JSON") == "1" {
		return ModeJSON
	}
	return ModeStandard
}

// Printer writes results in a fixed mode
type Printer struct {
	w    io.Writer
	mode Mode
}

// New creates a printer writing to w
func New(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Print renders v. summary is the quiet-mode line and the standard-mode header.
func (p *Printer) Print(summary string, v interface{}) error {
	switch p.mode {
	case ModeQuiet:
		_, err := fmt.Fprintln(p.w, summary)
		return err
	case ModeJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	if summary != "" {
		fmt.Fprintln(p.w, summary)
	}
	for _, line := range flatten(gjson.ParseBytes(raw), "") {
		fmt.Fprintln(p.w, "  "+line)
	}
	return nil
}

// flatten turns nested JSON into "a.b: value" lines in document order
func flatten(r gjson.Result, prefix string) []string {
	var lines []string
	switch {
	case r.IsObject():
		r.ForEach(func(key, value gjson.Result) bool {
			lines = append(lines, flatten(value, join(prefix, key.String()))...)
			return true
		})
	case r.IsArray():
		items := r.Array()
		if len(items) == 0 {
			lines = append(lines, prefix+": []")
		}
		for i, item := range items {
			lines = append(lines, flatten(item, fmt.Sprintf("%s[%d]", prefix, i))...)
		}
	case r.Type == gjson.Null:
		lines = append(lines, prefix+": -")
	default:
		lines = append(lines, prefix+": "+r.String())
	}
	return lines
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
