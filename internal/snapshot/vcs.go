package snapshot

import (
	"os/exec"
	"strings"

	"codectx/internal/models"
)

// ProbeVCS gathers best-effort git state for root. When git or the
// repository is unavailable the returned status carries only an error
// description; snapshot creation proceeds regardless.
func ProbeVCS(root string) models.VCSStatus {
	branch, err := gitOutput(root, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return models.VCSStatus{Error: "vcs unavailable: " + err.Error()}
	}
	st := models.VCSStatus{Branch: branch}
	if subject, err := gitOutput(root, "log", "-1", "--format=%s"); err == nil {
		st.LastCommit = subject
	}
	if porcelain, err := gitOutput(root, "status", "--porcelain"); err == nil && porcelain != "" {
		st.Dirty = true
		st.Modified = len(strings.Split(porcelain, "\n"))
	}
	return st
}

func gitOutput(root string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
