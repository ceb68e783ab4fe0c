package controller

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/uilink/api/schemas"
)

// Usage lists the operator commands understood by Execute.
const Usage = `commands:
  ping                    ask agents for a pong
  getUIMap                ask agents for a UI map
  getScreenshot [screen]  ask agents for a screenshot
  applyTheme <json>       send a theme patch, e.g. {"cssVars":{"--accent":"#0af"}}
  clients                 show the number of connected agents
  help                    show this text`

// Execute runs one operator command line against the hub and returns text
// for the operator. Empty lines are ignored.
func (h *Hub) Execute(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch name {
	case "ping":
		err = h.Ping()
	case "getUIMap", "scan":
		err = h.RequestUIMap()
	case "getScreenshot", "screenshot":
		screen := rest
		if screen == "" {
			screen = schemas.DefaultScreen
		}
		err = h.RequestScreenshot(screen)
	case "applyTheme", "theme":
		if rest == "" {
			return "", fmt.Errorf("applyTheme needs a JSON patch")
		}
		var patch schemas.ThemePatch
		if err := json.Unmarshal([]byte(rest), &patch); err != nil {
			return "", fmt.Errorf("invalid theme patch: %w", err)
		}
		err = h.ApplyTheme(patch)
	case "clients":
		return fmt.Sprintf("%d agent(s) connected", h.Clients()), nil
	case "help":
		return Usage, nil
	default:
		return "", fmt.Errorf("unknown command %q", name)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sent %s to %d agent(s)", name, h.Clients()), nil
}
