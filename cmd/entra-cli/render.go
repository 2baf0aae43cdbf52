package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
)

var dataLabels = []struct {
	key   string
	label string
}{
	{"applicationId", "Application (client) ID"},
	{"objectId", "Object ID"},
	{"servicePrincipalId", "Service principal ID"},
	{"clientSecret", "Client secret"},
}

// MaskSecret keeps the first and last four characters of a secret.
// Secrets of eight characters or fewer are masked entirely.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

func renderJSON(w io.Writer, result *domain.CommandResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func renderText(w io.Writer, result *domain.CommandResult) {
	if result.Success() {
		fmt.Fprintf(w, "Success: %s\n", result.Message())
	} else {
		fmt.Fprintf(w, "Error: %s\n", result.Message())
	}

	data := result.Data()
	if len(data) > 0 {
		fmt.Fprintln(w)
		for _, field := range dataLabels {
			value, ok := data[field.key]
			if !ok {
				continue
			}
			if field.key == "clientSecret" {
				value = MaskSecret(value)
			}
			fmt.Fprintf(w, "  %-24s %s\n", field.label+":", value)
		}
	}

	if next := result.NextSteps(); len(next) > 0 {
		fmt.Fprintln(w, "\nNext steps:")
		for _, step := range next {
			fmt.Fprintf(w, "  - %s\n", step)
		}
	}

	if id := result.RunID(); id != "" {
		fmt.Fprintf(w, "\nRun ID: %s\n", id)
	}
}
