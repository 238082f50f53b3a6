package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/pointer"
)

var (
	// ErrQuit is returned by Execute for exit/quit.
	ErrQuit = errors.New("quit")
	// ErrUnknownCommand is returned for an unrecognized command word.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command has the wrong arguments.
	ErrUsage = errors.New("usage")
)

type command struct {
	usage string
	help  string
	run   func(c *Console, ctx context.Context, args []string, rest string) (Result, error)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":       {"help", "list commands", (*Console).cmdHelp},
		"tree":       {"tree", "print the instance tree", (*Console).cmdTree},
		"components": {"components", "list insertable components", (*Console).cmdComponents},
		"add":        {"add <component> [parent [index]]", "insert a new instance (next to the selection by default)", (*Console).cmdAdd},
		"rm":         {"rm <id>", "delete an instance and its subtree", (*Console).cmdDelete},
		"mv":         {"mv <id> <parent> <index>", "move an instance", (*Console).cmdMove},
		"clone":      {"clone <id>", "duplicate an instance after itself", (*Console).cmdClone},
		"select":     {"select <id>", "select an instance", (*Console).cmdSelect},
		"unselect":   {"unselect", "clear the selection", (*Console).cmdUnselect},
		"set":        {"set <id> key=value...", "merge props; values are JSON or plain strings, empty removes", (*Console).cmdSet},
		"text":       {"text <id> <text>", "replace the children of an instance with text", (*Console).cmdText},
		"up":         {"up [id]", "move the instance before its previous sibling", arrow("ArrowUp")},
		"down":       {"down [id]", "move the instance after its next sibling", arrow("ArrowDown")},
		"left":       {"left [id]", "same as up", arrow("ArrowLeft")},
		"right":      {"right [id]", "same as down", arrow("ArrowRight")},
		"preview":    {"preview on|off", "toggle preview mode", (*Console).cmdPreview},
		"exit":       {"exit", "leave the console", (*Console).cmdQuit},
		"quit":       {"quit", "leave the console", (*Console).cmdQuit},
	}
}

// Execute runs one command line against the designer. Mutations are flushed
// through the bus before the result is built.
func (c *Console) Execute(ctx context.Context, line string) (Result, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	res := Result{Command: name}

	cmd, ok := commands[name]
	if !ok {
		return res, fmt.Errorf("%w %q, try help", ErrUnknownCommand, name)
	}
	out, err := cmd.run(c, ctx, strings.Fields(rest), rest)
	out.Command = name
	if err != nil {
		return out, err
	}
	if err := c.designer.Flush(ctx); err != nil {
		return out, err
	}
	out.Version = c.designer.Version()
	out.Selected = c.designer.Selected()
	return out, nil
}

func usage(name string) error {
	return fmt.Errorf("%w: %s", ErrUsage, commands[name].usage)
}

func (c *Console) cmdHelp(ctx context.Context, args []string, rest string) (Result, error) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-36s %s\n", commands[name].usage, commands[name].help)
	}
	return Result{Message: strings.TrimRight(sb.String(), "\n")}, nil
}

func (c *Console) cmdTree(ctx context.Context, args []string, rest string) (Result, error) {
	root := c.designer.Store().Snapshot()
	return Result{Outline: tui.Outline(root, c.designer.Selected()), Tree: root}, nil
}

func (c *Console) cmdComponents(ctx context.Context, args []string, rest string) (Result, error) {
	var sb strings.Builder
	for i, meta := range c.designer.Registry().Listed() {
		if i > 0 {
			sb.WriteString("\n")
		}
		kind := "leaf"
		if meta.AcceptsChildren {
			kind = "container"
		}
		fmt.Fprintf(&sb, "%s (%s)", meta.Name, kind)
	}
	return Result{Message: sb.String()}, nil
}

func (c *Console) cmdAdd(ctx context.Context, args []string, rest string) (Result, error) {
	if len(args) < 1 || len(args) > 3 {
		return Result{}, usage("add")
	}
	inst, err := c.designer.Create(args[0])
	if err != nil {
		return Result{}, err
	}
	var target *domain.Target
	if len(args) > 1 {
		parent, err := c.designer.Store().FindInstance(args[1])
		if err != nil {
			return Result{}, err
		}
		index := len(parent.Children)
		if len(args) == 3 {
			if index, err = strconv.Atoi(args[2]); err != nil {
				return Result{}, usage("add")
			}
		}
		target = &domain.Target{ParentID: parent.ID, Index: index}
	}
	if err := c.designer.Insert(inst, target); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("added %s %s", inst.Component, inst.ID)}, nil
}

func (c *Console) cmdDelete(ctx context.Context, args []string, rest string) (Result, error) {
	if len(args) != 1 {
		return Result{}, usage("rm")
	}
	if err := c.designer.Delete(args[0]); err != nil {
		return Result{}, err
	}
	return Result{Message: "deleted " + args[0]}, nil
}

func (c *Console) cmdMove(ctx context.Context, args []string, rest string) (Result, error) {
	if len(args) != 3 {
		return Result{}, usage("mv")
	}
	index, err := strconv.Atoi(args[2])
	if err != nil {
		return Result{}, usage("mv")
	}
	if err := c.designer.Reparent(args[0], domain.Target{ParentID: args[1], Index: index}); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("moved %s to %s[%d]", args[0], args[1], index)}, nil
}

func (c *Console) cmdClone(ctx context.Context, args []string, rest string) (Result, error) {
	if len(args) != 1 {
		return Result{}, usage("clone")
	}
	clone, err := c.designer.Clone(args[0])
	if err != nil {
		return Result{}, err
	}
	return Result{Message: "cloned as " + clone.ID}, nil
}

func (c *Console) cmdSelect(ctx context.Context, args []string, rest string) (Result, error) {
	if len(args) != 1 {
		return Result{}, usage("select")
	}
	return Result{}, c.designer.Select(args[0])
}

func (c *Console) cmdUnselect(ctx context.Context, args []string, rest string) (Result, error) {
	c.designer.Unselect()
	return Result{}, nil
}

func (c *Console) cmdSet(ctx context.Context, args []string, rest string) (Result, error) {
	if len(args) < 2 {
		return Result{}, usage("set")
	}
	props := make(map[string]any, len(args)-1)
	for _, kv := range args[1:] {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return Result{}, usage("set")
		}
		props[key] = parseValue(raw)
	}
	if err := c.designer.SetProps(args[0], props); err != nil {
		return Result{}, err
	}
	return Result{Message: "updated " + args[0]}, nil
}

// parseValue reads raw as JSON when it parses, as a string otherwise.
// An empty value is nil, which removes the prop.
func parseValue(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func (c *Console) cmdText(ctx context.Context, args []string, rest string) (Result, error) {
	id, text, ok := strings.Cut(rest, " ")
	if !ok || id == "" {
		return Result{}, usage("text")
	}
	text, err := SanitizeInput(strings.TrimSpace(text))
	if err != nil {
		return Result{}, err
	}
	if err := c.designer.SetChildren(id, []domain.Child{domain.TextChild(text)}); err != nil {
		return Result{}, err
	}
	return Result{Message: "updated " + id}, nil
}

// arrow replays an arrow key on an instance, which reorders it among its
// siblings through a keyboard drag.
func arrow(key string) func(c *Console, ctx context.Context, args []string, rest string) (Result, error) {
	return func(c *Console, ctx context.Context, args []string, rest string) (Result, error) {
		if len(args) > 1 {
			return Result{}, usage(strings.ToLower(strings.TrimPrefix(key, "Arrow")))
		}
		target := c.designer.Selected()
		if len(args) == 1 {
			target = args[0]
		}
		if target == "" {
			return Result{}, fmt.Errorf("%w: nothing selected", domain.ErrInvalidTarget)
		}
		if _, err := c.designer.Store().FindInstance(target); err != nil {
			return Result{}, err
		}
		before := c.designer.Version()
		c.designer.HandleInput(pointer.KeyEvent{Key: key, Target: target})
		if err := c.designer.Flush(ctx); err != nil {
			return Result{}, err
		}
		if c.designer.Version() == before {
			return Result{Message: target + " stays in place"}, nil
		}
		return Result{Message: "moved " + target}, nil
	}
}

func (c *Console) cmdPreview(ctx context.Context, args []string, rest string) (Result, error) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return Result{}, usage("preview")
	}
	c.designer.SetPreview(args[0] == "on")
	return Result{Message: "preview " + args[0]}, nil
}

func (c *Console) cmdQuit(ctx context.Context, args []string, rest string) (Result, error) {
	return Result{}, ErrQuit
}
