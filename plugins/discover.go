package plugins

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// discoverCommand locates the executable for one tool. A non-empty
// overrideCmd is validated as given and never falls back to
// auto-detection: the user asked for that command, so silently running a
// different binary would be a surprise. Without an override the
// project-local convention path wins over a globally installed binary.
func discoverCommand(rootDir, overrideCmd, localPath, name string) (string, error) {
	if overrideCmd != "" {
		if isPathLike(overrideCmd) {
			if _, err := os.Stat(overrideCmd); err != nil {
				if os.IsNotExist(err) {
					return "", fmt.Errorf("override cmd %s: %w", overrideCmd, ErrToolNotFound)
				}
				return "", fmt.Errorf("override cmd %s: %w", overrideCmd, err)
			}
			return overrideCmd, nil
		}
		if err := startProbe(overrideCmd); err != nil {
			return "", err
		}
		return overrideCmd, nil
	}

	project := filepath.Join(rootDir, localPath)
	if _, err := os.Stat(project); err == nil {
		return project, nil
	}

	if err := startProbe(name); err != nil {
		return "", err
	}
	return name, nil
}

func isPathLike(cmd string) bool {
	return strings.ContainsRune(cmd, '/') || strings.ContainsRune(cmd, os.PathSeparator)
}

// startProbe checks that name can actually be spawned as a process. The
// child is killed and reaped immediately, only the spawn matters. A
// plain PATH lookup would miss binaries that resolve but cannot start,
// and that distinction drives the log severity upstream.
func startProbe(name string) error {
	cmd := exec.Command(name)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s: %w", name, ErrToolNotFound)
		}
		return fmt.Errorf("%s found but cannot start: %w", name, err)
	}
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
	return nil
}
