package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/model"
)

// commandAliases maps the short verbs accepted on input to command types.
// Canonical names (CREATE_TASK, edit-task, ...) are accepted as well.
var commandAliases = map[string]engine.CommandType{
	"create":        engine.CmdCreateTask,
	"add":           engine.CmdCreateTask,
	"edit":          engine.CmdEditTask,
	"cancel-edit":   engine.CmdEditCanceled,
	"update":        engine.CmdUpdateTask,
	"delete":        engine.CmdDeleteTask,
	"cancel-delete": engine.CmdDeleteCanceled,
	"destroy":       engine.CmdDestroyTask,
}

// ScriptLine is one parsed input line: either a command or a pause.
type ScriptLine struct {
	Line    int
	Command *engine.Command
	Advance time.Duration
}

// ParseCommandLine parses one command:
//
//	create <priority> <sequence>
//	update <id> <priority> <sequence>
//	edit|cancel-edit|delete|cancel-delete|destroy <id>
//
// Priorities are 1-3 or low/average/critical.
func ParseCommandLine(line string) (engine.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return engine.Command{}, fmt.Errorf("empty command")
	}

	ct, err := parseVerb(fields[0])
	if err != nil {
		return engine.Command{}, err
	}
	args := fields[1:]

	switch ct {
	case engine.CmdCreateTask:
		if len(args) != 2 {
			return engine.Command{}, fmt.Errorf("%s: want <priority> <sequence>, got %d args", fields[0], len(args))
		}
		p, err := model.ParsePriority(args[0])
		if err != nil {
			return engine.Command{}, err
		}
		return engine.CreateTask(p, args[1]), nil

	case engine.CmdUpdateTask:
		if len(args) != 3 {
			return engine.Command{}, fmt.Errorf("%s: want <id> <priority> <sequence>, got %d args", fields[0], len(args))
		}
		id, err := parseID(args[0])
		if err != nil {
			return engine.Command{}, err
		}
		p, err := model.ParsePriority(args[1])
		if err != nil {
			return engine.Command{}, err
		}
		return engine.UpdateTask(id, p, args[2]), nil

	default:
		if len(args) != 1 {
			return engine.Command{}, fmt.Errorf("%s: want <id>, got %d args", fields[0], len(args))
		}
		id, err := parseID(args[0])
		if err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: ct, ID: id}, nil
	}
}

// ParseScript reads commands and "advance <duration>" (or "wait") lines.
// Blank lines and lines starting with '#' are skipped.
func ParseScript(r io.Reader) ([]ScriptLine, error) {
	var lines []ScriptLine

	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		switch strings.ToLower(fields[0]) {
		case "advance", "wait":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: %s: want <duration>", n, fields[0])
			}
			d, err := time.ParseDuration(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			if d < 0 {
				return nil, fmt.Errorf("line %d: negative duration %s", n, d)
			}
			lines = append(lines, ScriptLine{Line: n, Advance: d})
		default:
			cmd, err := ParseCommandLine(text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			lines = append(lines, ScriptLine{Line: n, Command: &cmd})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseVerb(s string) (engine.CommandType, error) {
	if ct, ok := commandAliases[strings.ToLower(s)]; ok {
		return ct, nil
	}
	return engine.ParseCommandType(s)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
