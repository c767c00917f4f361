package canvas

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowtwo/graphforge/pkg/graph"
)

// Controller holds one viewer's canvas state and dispatches the
// `/view`/`/filter`/`/select`/`/focus`/`/clear-filter`/`/clear-selection`
// slash-commands against it.
type Controller struct {
	view      View
	filter    Filter
	selection map[string]bool
	focus     string
}

// NewController returns a Controller defaulting to the "all" view with no
// filter, selection, or focus.
func NewController() *Controller {
	return &Controller{
		view:      ViewAll,
		selection: make(map[string]bool),
	}
}

// View returns the currently active view.
func (c *Controller) View() View { return c.view }

// Filter returns a copy of the currently active filter.
func (c *Controller) Filter() Filter { return c.filter }

// Focus returns the currently focused semantic ID, or "" if none.
func (c *Controller) Focus() string { return c.focus }

// Selection returns the set of currently selected semantic IDs.
func (c *Controller) Selection() map[string]bool {
	out := make(map[string]bool, len(c.selection))
	for id := range c.selection {
		out[id] = true
	}
	return out
}

// Render applies the controller's current state against state via the pure
// [Render] function.
func (c *Controller) Render(state *graph.State) RenderData {
	return Render(state, RenderOptions{
		View:      c.view,
		Filter:    c.filter,
		Selection: c.selection,
		Focus:     c.focus,
	})
}

// HandleCommand dispatches one slash-command line and reports a short
// human-readable acknowledgement. An unrecognized command or malformed
// argument is returned as an error, never panics.
func (c *Controller) HandleCommand(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("canvas: empty command")
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/view":
		return c.handleView(args)
	case "/filter":
		return c.handleFilter(args)
	case "/select":
		return c.handleSelect(args)
	case "/focus":
		return c.handleFocus(args)
	case "/clear-filter":
		c.filter = Filter{}
		return "filter cleared", nil
	case "/clear-selection":
		c.selection = make(map[string]bool)
		return "selection cleared", nil
	default:
		return "", fmt.Errorf("canvas: unknown command %q", cmd)
	}
}

func (c *Controller) handleView(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("canvas: /view requires exactly one argument")
	}
	v := View(args[0])
	if _, ok := viewEdgeSubstrings[v]; !ok && v != ViewAll {
		return "", fmt.Errorf("canvas: unknown view %q", args[0])
	}
	c.view = v
	return fmt.Sprintf("view set to %s", v), nil
}

// handleFilter parses key=value pairs (nodeTypes is comma-separated,
// showDeleted is a bare boolean, phase is an integer, search is a plain
// string) and replaces the active filter wholesale.
func (c *Controller) handleFilter(args []string) (string, error) {
	var f Filter
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return "", fmt.Errorf("canvas: malformed filter argument %q, want key=value", arg)
		}
		switch key {
		case "nodeTypes":
			f.NodeTypes = strings.Split(value, ",")
		case "phase":
			p, err := strconv.Atoi(value)
			if err != nil {
				return "", fmt.Errorf("canvas: invalid phase %q: %w", value, err)
			}
			f.Phase = &p
		case "showDeleted":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return "", fmt.Errorf("canvas: invalid showDeleted %q: %w", value, err)
			}
			f.ShowDeleted = b
		case "searchTerm", "search":
			f.SearchTerm = value
		default:
			return "", fmt.Errorf("canvas: unknown filter key %q", key)
		}
	}
	c.filter = f
	return "filter applied", nil
}

func (c *Controller) handleSelect(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("canvas: /select requires at least one semantic ID")
	}
	for _, id := range args {
		c.selection[id] = true
	}
	return fmt.Sprintf("selected %d node(s)", len(args)), nil
}

func (c *Controller) handleFocus(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("canvas: /focus requires exactly one semantic ID")
	}
	c.focus = args[0]
	return fmt.Sprintf("focus set to %s", c.focus), nil
}
