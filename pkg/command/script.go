package command

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed script-schema.json
var scriptSchema []byte

// Script is the JSON form of a command stream.
type Script struct {
	Commands []ScriptCommand `json:"commands"`
}

// ScriptCommand is one entry of a Script.
type ScriptCommand struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

// ScriptSchema returns the embedded JSON schema for scripts.
func ScriptSchema() []byte {
	return scriptSchema
}

// NewScriptReader reads a whole JSON script from r, validates it against the
// embedded schema and returns its commands as a SliceSource.
func NewScriptReader(r io.Reader, opts ...Option) (*SliceSource, error) {
	o := buildOptions(opts)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	script, err := DecodeScript(data)
	if err != nil {
		return nil, err
	}

	if o.maxCommands > 0 && int64(len(script.Commands)) > o.maxCommands {
		return nil, fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyCommands, len(script.Commands), o.maxCommands)
	}

	return NewSliceSource(script.toCommands()), nil
}

// DecodeScript validates data against the script schema and decodes it.
func DecodeScript(data []byte) (*Script, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(scriptSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			problems = append(problems, verr.Field()+": "+verr.Description())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidScript, strings.Join(problems, "; "))
	}

	var script Script

	err = json.Unmarshal(data, &script)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	return &script, nil
}

func (s *Script) toCommands() []Command {
	cmds := make([]Command, 0, len(s.Commands))

	for i, sc := range s.Commands {
		// Schema validation already restricted Op to the three letters.
		cmds = append(cmds, Command{Op: Op(sc.Op[0]), ID: sc.ID, Line: i + 1})
	}

	return cmds
}
