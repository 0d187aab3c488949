package guard

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ShellFinding is one dangerous construct found in a shell-executing
// tool-call argument.
type ShellFinding struct {
	Check  string
	Reason string
}

// inspectShellArg parses an argument as bash and looks for destructive
// shapes that plain content regexes miss: flag reordering, sudo wrapping,
// and pipe-to-shell. An unparseable argument yields no findings; the
// content rules still apply to it.
func inspectShellArg(arg string) []ShellFinding {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(arg), "")
	if err != nil {
		return nil
	}

	var findings []ShellFinding
	for _, stmt := range file.Stmts {
		findings = append(findings, walkShellStmt(stmt)...)
	}
	return findings
}

func walkShellStmt(stmt *syntax.Stmt) []ShellFinding {
	if stmt == nil || stmt.Cmd == nil {
		return nil
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		return checkCall(callWords(cmd))

	case *syntax.BinaryCmd:
		var findings []ShellFinding
		findings = append(findings, walkShellStmt(cmd.X)...)
		findings = append(findings, walkShellStmt(cmd.Y)...)
		if cmd.Op == syntax.Pipe {
			if f, ok := checkPipeToShell(cmd); ok {
				findings = append(findings, f)
			}
		}
		return findings

	case *syntax.Subshell:
		var findings []ShellFinding
		for _, s := range cmd.Stmts {
			findings = append(findings, walkShellStmt(s)...)
		}
		return findings
	}

	return nil
}

func callWords(call *syntax.CallExpr) []string {
	words := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		words = append(words, wordText(w))
	}
	return words
}

func wordText(w *syntax.Word) string {
	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(p.Value)
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					b.WriteString(lit.Value)
				}
			}
		}
	}
	return b.String()
}

// checkCall inspects a single command invocation, unwrapping sudo/env.
func checkCall(words []string) []ShellFinding {
	for len(words) > 1 && (words[0] == "sudo" || words[0] == "env") {
		words = words[1:]
	}
	if len(words) == 0 {
		return nil
	}

	var findings []ShellFinding

	switch words[0] {
	case "rm":
		if rmIsRecursiveForce(words[1:]) && rmTargetsRoot(words[1:]) {
			findings = append(findings, ShellFinding{
				Check:  "rm-recursive-root",
				Reason: "Recursive force-remove targeting the filesystem root",
			})
		}
	case "dd":
		for _, w := range words[1:] {
			if strings.HasPrefix(w, "of=/dev/") {
				findings = append(findings, ShellFinding{
					Check:  "dd-device-write",
					Reason: "Raw write to a block device",
				})
			}
		}
	case "mkfs", "mkfs.ext4", "mkfs.xfs":
		findings = append(findings, ShellFinding{
			Check:  "mkfs",
			Reason: "Filesystem format command",
		})
	}

	return findings
}

func rmIsRecursiveForce(args []string) bool {
	recursive, force := false, false
	for _, a := range args {
		switch {
		case a == "--recursive":
			recursive = true
		case a == "--force":
			force = true
		case strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--"):
			if strings.ContainsAny(a, "rR") {
				recursive = true
			}
			if strings.Contains(a, "f") {
				force = true
			}
		}
	}
	return recursive && force
}

func rmTargetsRoot(args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		switch a {
		case "/", "/*", "/etc", "/usr", "/var", "/home", "~", "~/":
			return true
		}
	}
	return false
}

// checkPipeToShell flags download-and-execute pipelines.
func checkPipeToShell(cmd *syntax.BinaryCmd) (ShellFinding, bool) {
	left := firstExecutable(cmd.X)
	right := firstExecutable(cmd.Y)

	downloaders := map[string]bool{"curl": true, "wget": true, "fetch": true}
	shells := map[string]bool{"sh": true, "bash": true, "zsh": true, "dash": true}

	if downloaders[left] && shells[right] {
		return ShellFinding{
			Check:  "pipe-to-shell",
			Reason: "Download piped directly into a shell interpreter",
		}, true
	}
	return ShellFinding{}, false
}

func firstExecutable(stmt *syntax.Stmt) string {
	if stmt == nil || stmt.Cmd == nil {
		return ""
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) == 0 {
		return ""
	}
	name := wordText(call.Args[0])
	if name == "sudo" && len(call.Args) > 1 {
		return wordText(call.Args[1])
	}
	return name
}
