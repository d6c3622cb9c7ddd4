// internal/service/render.go
package service

import "strings"

// RenderBody fills the {{name}} placeholder with the recipient's display
// name, falling back to "Subscriber" when none is on file.
func RenderBody(html, name string) string {
	if strings.TrimSpace(name) == "" {
		name = "Subscriber"
	}
	return strings.ReplaceAll(html, "{{name}}", name)
}
