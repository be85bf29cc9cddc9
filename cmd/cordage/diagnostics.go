package main

import (
	"fmt"
	"io"

	"github.com/cordage-pm/cordage/pkg/diag"
)

// renderDiagnostics prints collected diagnostics the way the classifier
// and reconciler hand them to the CLI layer: diagnostics are data, not
// text, until they reach here (spec.md's "diagnostics rendering" is named
// out-of-core; this is the minimal renderer that satisfies it).
func renderDiagnostics(w io.Writer, diags []diag.Diagnostic) {
	for _, d := range diags {
		if d.Path != "" {
			fmt.Fprintf(w, "%s: %s: %s\n", d.Severity, d.Path, d.Message)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", d.Severity, d.Message)
	}
}
