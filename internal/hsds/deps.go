package hsds

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/sioux/hsds-agent/internal/config"
)

// ToolStatus reports whether one external tool can be resolved.
type ToolStatus struct {
	Name      string
	Command   string
	Available bool
	Detail    string
}

// CheckTools resolves the configured binaries on PATH (or as given paths).
func CheckTools(tools config.Tools) []ToolStatus {
	reqs := []struct{ name, cmd string }{
		{"list", tools.List},
		{"upload", tools.Load},
		{"repair", tools.Clear},
	}

	results := make([]ToolStatus, 0, len(reqs))
	for _, req := range reqs {
		st := ToolStatus{Name: req.name, Command: strings.TrimSpace(req.cmd)}
		switch {
		case st.Command == "":
			st.Detail = "command not configured"
		default:
			path, err := exec.LookPath(st.Command)
			if err != nil {
				st.Detail = fmt.Sprintf("binary %q not found", st.Command)
			} else {
				st.Available = true
				st.Detail = path
			}
		}
		results = append(results, st)
	}
	return results
}
