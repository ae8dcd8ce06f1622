package forward

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"devsonar/src/contracts"
	"devsonar/src/sanitize"
)

// maxContextJSON is the size below which a report's context is included in the prompt.
const maxContextJSON = 1000

// BuildPrompt renders the remediation request for a batch.
func BuildPrompt(reports []contracts.ErrorReport, maxStackLength int, now time.Time) string {
	n := len(reports)
	plural := n > 1

	var b strings.Builder
	if plural {
		fmt.Fprintf(&b, "# Runtime Error Detected (%d errors)\n\n", n)
	} else {
		fmt.Fprintf(&b, "# Runtime Error Detected (%d error)\n\n", n)
	}
	fmt.Fprintf(&b, "**Timestamp**: %s\n\n", now.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	if plural {
		b.WriteString("The following errors have been detected. ")
	} else {
		b.WriteString("The following error has been detected. ")
	}
	b.WriteString("**Please refer to the project source code to identify the cause and apply a fix.**\n\n")

	for i, r := range reports {
		fmt.Fprintf(&b, "## Error %d/%d\n\n", i+1, n)
		fmt.Fprintf(&b, "**Message**: `%s`\n\n", r.Message)
		if r.Source != "" {
			fmt.Fprintf(&b, "**Source**: %s\n\n", r.Source)
		}
		if r.Stack != "" {
			fmt.Fprintf(&b, "**Stack Trace**:\n```\n%s\n```\n\n", sanitize.TruncateStack(r.Stack, maxStackLength))
		}
		if r.Context != nil {
			if data, err := json.MarshalIndent(r.Context, "", "  "); err == nil && len(data) < maxContextJSON {
				fmt.Fprintf(&b, "**Context**:\n```json\n%s\n```\n\n", data)
			}
		}
		b.WriteString("---\n\n")
	}

	b.WriteString("\n**Please perform the following actions**:\n\n")
	b.WriteString("1. Identify the error location from each stack trace\n")
	b.WriteString("2. Read the relevant source code files\n")
	b.WriteString("3. Analyze the root cause of the error\n")
	b.WriteString("4. Propose a fix and apply the code changes if possible\n")
	b.WriteString("5. Once the fix is applied, run `git diff` and report the changes\n\n")
	b.WriteString("**Important**: Do NOT run `git add` or `git commit`. Do not stage any changes; only review the diff.\n\n")

	return b.String()
}
