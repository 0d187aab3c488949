package approval

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Approved   bool
	UserAction string
}

// Prompt describes a remediation the repair loop wants to apply to the
// user's project before it touches any file.
type Prompt struct {
	Issue       string
	Remediation string
	Targets     []string
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask prompts the user to approve a remediation. Non-interactive sessions
// auto-deny so unattended runs never modify files without --auto-fix.
func Ask(p Prompt) Result {
	if !IsInteractive() {
		return Result{
			Approved:   false,
			UserAction: "auto_deny_non_interactive",
		}
	}

	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║              ⚠️  REPAIR APPROVAL REQUIRED                     ║")
	fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "Issue: %s\n", p.Issue)
	fmt.Fprintf(os.Stderr, "Proposed fix: %s\n", p.Remediation)

	if len(p.Targets) > 0 {
		fmt.Fprintln(os.Stderr, "Files to modify:")
		for _, target := range p.Targets {
			fmt.Fprintf(os.Stderr, "  • %s\n", target)
		}
	}

	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  [a] Apply - run this remediation")
	fmt.Fprintln(os.Stderr, "  [s] Skip - leave the issue as-is")
	fmt.Fprintln(os.Stderr, "")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Fprint(os.Stderr, "Your choice [a/s]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return Result{
				Approved:   false,
				UserAction: "error_reading_input",
			}
		}

		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "a", "apply", "yes", "y":
			return Result{
				Approved:   true,
				UserAction: "apply_once",
			}
		case "s", "skip", "no", "n":
			return Result{
				Approved:   false,
				UserAction: "skip",
			}
		default:
			fmt.Fprintln(os.Stderr, "Invalid input. Please enter 'a' to apply or 's' to skip.")
		}
	}
}
