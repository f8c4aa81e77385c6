package mcp

import "strings"

const mcpPrefix = "mcp__"

// maxToolNameLen is the function-name limit of OpenAI-compatible APIs.
const maxToolNameLen = 64

// NamespacedName returns the name a server's tool is exposed under:
// "mcp__server__tool". Both parts are sanitized to the characters function
// names may carry and the result is capped at 64 bytes.
func NamespacedName(serverName, toolName string) string {
	name := mcpPrefix + sanitizeName(serverName) + "__" + sanitizeToolName(toolName)
	if len(name) > maxToolNameLen {
		name = name[:maxToolNameLen]
	}
	return name
}

// sanitizeName lowercases and replaces non-alphanumeric characters with hyphens.
func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// sanitizeToolName keeps case but maps anything outside [A-Za-z0-9_-] to '_'.
func sanitizeToolName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
