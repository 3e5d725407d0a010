package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mudler/xlog"
)

// Commands that are never run, matched as prefixes of the trimmed input.
var blockedPrefixes = []string{
	"sudo", "su ", "rm -rf /", "chmod", "chown", "kill", "pkill", "curl", "wget",
	"nc ", "ncat", "ssh", "scp", "sftp", "node", "ruby", "perl", "bash", "sh ",
	"zsh", "export", "source", "eval", "exec", "mount", "umount", "dd ", "mkfs",
	"fdisk", "apt", "brew", "npm", "yarn", "open ", "xdg-open",
}

const maxShellOutput = 3000

var absPathRe = regexp.MustCompile(`/[A-Za-z0-9_]`)

// validateCommand returns a rejection message, or "" when the command
// may run. Checks run on the original command, before any rewriting.
func validateCommand(command string) string {
	stripped := strings.TrimSpace(command)

	if stripped == "" {
		return "Blocked: empty command."
	}

	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(stripped, prefix) {
			return fmt.Sprintf("Blocked: '%s' commands are not allowed.", prefix)
		}
	}

	for _, token := range strings.Fields(stripped) {
		clean := strings.TrimLeft(token, "><=|;&(")
		if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/..") {
			return "Blocked: '..' path traversal is not allowed in commands."
		}
	}

	if strings.Contains(stripped, "`") {
		return "Blocked: backtick command substitution is not allowed."
	}
	if strings.Contains(stripped, "$(") {
		return "Blocked: command substitution $() is not allowed."
	}
	if strings.Contains(stripped, "${") {
		return "Blocked: variable expansion ${} is not allowed."
	}
	if strings.Contains(stripped, "~") {
		return "Blocked: '~' (home expansion) is not allowed."
	}

	for _, token := range strings.Fields(stripped) {
		clean := strings.TrimLeft(token, "><=|;&(")
		if absPathRe.MatchString(clean) && !strings.HasPrefix(clean, "/dev/null") {
			return "Blocked: absolute paths are not allowed. Use relative paths only."
		}
	}

	return ""
}

func canonicalRoot(envRoot string) string {
	real, err := filepath.EvalSymlinks(envRoot)
	if err != nil {
		return envRoot
	}
	abs, err := filepath.Abs(real)
	if err != nil {
		return real
	}
	return abs
}

func venvDir(envRoot string) string {
	return filepath.Join(canonicalRoot(envRoot), ".venv")
}

func venvPython(envRoot string) string {
	return filepath.Join(venvDir(envRoot), "bin", "python")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureVenv creates the environment's virtualenv if missing. Prefers
// uv, falls back to python3 -m venv, then makes sure a plain `python`
// entry exists.
func EnsureVenv(envRoot string) {
	if isFile(venvPython(envRoot)) {
		return
	}
	venv := venvDir(envRoot)
	xlog.Info("Creating environment venv", "path", venv)

	if uv, err := exec.LookPath("uv"); err == nil {
		exec.Command(uv, "venv", venv, "--seed", "pip").Run()
	} else {
		exec.Command("python3", "-m", "venv", venv).Run()
	}

	bin := filepath.Join(venv, "bin")
	if isFile(filepath.Join(bin, "python3")) && !isFile(filepath.Join(bin, "python")) {
		os.Symlink("python3", filepath.Join(bin, "python"))
	}
}

func shellEscape(s string) string {
	if strings.ContainsAny(s, ` '"`) {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// findGuard locates the python guard script that pins file access to
// the environment root.
func findGuard(envRoot string) string {
	candidates := []string{filepath.Join(envRoot, "pysandbox.py")}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "assets", "pysandbox.py"))
	}
	candidates = append(candidates, filepath.Join("assets", "pysandbox.py"))
	for _, c := range candidates {
		if isFile(c) {
			return c
		}
	}
	return "pysandbox.py"
}

func pythonInterpreter(envRoot string) string {
	if p := venvPython(envRoot); isFile(p) {
		return p
	}
	return "python3"
}

// rewritePythonCmd routes `python ...` invocations through the guard
// wrapper using the venv interpreter.
func rewritePythonCmd(command, envRoot string) (string, bool) {
	stripped := strings.TrimSpace(command)
	var rest string
	switch {
	case strings.HasPrefix(stripped, "python3"):
		rest = stripped[len("python3"):]
	case strings.HasPrefix(stripped, "python"):
		rest = stripped[len("python"):]
	default:
		return "", false
	}
	return fmt.Sprintf("%s %s %s%s",
		shellEscape(pythonInterpreter(envRoot)),
		shellEscape(findGuard(envRoot)),
		shellEscape(canonicalRoot(envRoot)),
		rest,
	), true
}

// rewriteScriptCmd routes `./script.py ...` through the guard wrapper.
func rewriteScriptCmd(command, envRoot string) (string, bool) {
	stripped := strings.TrimSpace(command)
	if !strings.HasPrefix(stripped, "./") || !strings.Contains(stripped, ".py") {
		return "", false
	}
	script, rest, _ := strings.Cut(stripped[2:], " ")
	cmd := fmt.Sprintf("%s %s %s %s",
		shellEscape(pythonInterpreter(envRoot)),
		shellEscape(findGuard(envRoot)),
		shellEscape(canonicalRoot(envRoot)),
		shellEscape(script),
	)
	if rest != "" {
		cmd += " " + rest
	}
	return cmd, true
}

// rewritePipCmd pins pip and `uv pip` installs to the venv.
func rewritePipCmd(command, envRoot string) (string, bool) {
	stripped := strings.TrimSpace(command)
	if rest, ok := strings.CutPrefix(stripped, "uv pip "); ok {
		uv := "uv"
		if p, err := exec.LookPath("uv"); err == nil {
			uv = p
		}
		return fmt.Sprintf("%s pip %s --python %s",
			shellEscape(uv), rest, shellEscape(venvPython(envRoot))), true
	}
	if strings.HasPrefix(stripped, "pip install") || strings.HasPrefix(stripped, "pip3 install") {
		idx := strings.Index(stripped, "install")
		return fmt.Sprintf("%s -m pip %s",
			shellEscape(venvPython(envRoot)), stripped[idx:]), true
	}
	return "", false
}

// RunCommand executes a shell command confined to envRoot. The result
// is always a string suitable for feeding back to the model.
func RunCommand(ctx context.Context, command, envRoot string) string {
	realRoot := canonicalRoot(envRoot)

	if msg := validateCommand(command); msg != "" {
		return msg
	}

	cmd := command
	if rewritten, ok := rewritePythonCmd(cmd, envRoot); ok {
		cmd = rewritten
	}
	if rewritten, ok := rewriteScriptCmd(cmd, envRoot); ok {
		cmd = rewritten
	}
	if rewritten, ok := rewritePipCmd(cmd, envRoot); ok {
		cmd = rewritten
	}

	venvPath := "/usr/bin:/bin"
	if bin := filepath.Join(venvDir(envRoot), "bin"); isDir(bin) {
		venvPath = bin + ":" + venvPath
	}

	proc := exec.CommandContext(ctx, "sh", "-c", cmd)
	proc.Dir = realRoot
	proc.Env = []string{
		"HOME=" + realRoot,
		"PATH=" + venvPath,
		"TMPDIR=" + realRoot,
		"LANG=en_US.UTF-8",
		"VIRTUAL_ENV=" + venvDir(envRoot),
	}

	out, err := proc.CombinedOutput()
	if err != nil {
		// A non-zero exit is a normal command result; only a failure to
		// run the command at all is reported as an error.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && len(out) == 0 {
			return fmt.Sprintf("Error: %s", err)
		}
	}

	result := string(out)
	if strings.TrimSpace(result) == "" {
		result = "(no output)"
	}
	if len(result) > maxShellOutput {
		result = result[:maxShellOutput] + "\n...(truncated)"
	}
	return result
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
