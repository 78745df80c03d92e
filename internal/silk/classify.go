// Package silk implements the rich-terminal interaction model: per-session
// cwd/env tracking, interactive-vs-batch command classification, batch
// output streaming with ANSI-to-HTML conversion, and delegation of
// interactive commands to the PTY manager.
package silk

import "strings"

// interactiveCommands is the closed set of tools that always require a
// real terminal.
var interactiveCommands = map[string]bool{
	"vim": true, "nvim": true, "vi": true, "nano": true, "emacs": true,
	"less": true, "more": true, "top": true, "htop": true, "btop": true,
	"man": true, "ssh": true, "fzf": true, "lazygit": true, "tig": true,
	"claude": true, "python": true, "python3": true, "node": true, "irb": true,
	"rails c": true, "psql": true, "mysql": true, "sqlite3": true,
	"mongosh": true, "redis-cli": true,
}

// IsInteractive classifies a command line as requiring a PTY: its leading
// token (or the basename after the last '/'), or its leading two tokens
// for multi-word entries like "rails c", is in the known set, or the line
// requests interactivity explicitly via -i/--interactive.
func IsInteractive(command string) bool {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return false
	}
	fields := strings.Fields(trimmed)
	first := fields[0]
	if idx := strings.LastIndex(first, "/"); idx >= 0 {
		first = first[idx+1:]
	}
	if interactiveCommands[first] {
		return true
	}
	if len(fields) > 1 && interactiveCommands[first+" "+fields[1]] {
		return true
	}
	return strings.Contains(command, " -i") || strings.Contains(command, " --interactive")
}
