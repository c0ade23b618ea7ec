package build

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"nginspector/internal/config"
	"nginspector/internal/execute"
)

// StyleCompiler turns a stylesheet entry file into CSS.
type StyleCompiler interface {
	Compile(ctx context.Context, entry string) ([]byte, error)
}

// CommandCompiler runs an external compiler (lessc) and reads CSS from its stdout.
type CommandCompiler struct {
	Exec execute.Executor
	Argv []string
}

// Compile runs Argv with entry appended.
func (c CommandCompiler) Compile(ctx context.Context, entry string) ([]byte, error) {
	res, err := c.Exec.Execute(ctx, execute.Command{
		Binary:           c.Argv[0],
		Arguments:        append(append([]string(nil), c.Argv[1:]...), entry),
		WorkingDirectory: filepath.Dir(entry),
	})
	if err != nil {
		return nil, err
	}
	return []byte(res.Stdout), nil
}

// PlainCompiler reads already-compiled CSS.
type PlainCompiler struct{}

// Compile returns the entry file unchanged.
func (PlainCompiler) Compile(_ context.Context, entry string) ([]byte, error) {
	return os.ReadFile(entry)
}

// NewStyleCompiler picks a compiler for the configured entry: plain CSS
// passes through, anything else goes to the configured command.
func NewStyleCompiler(exec execute.Executor, cfg config.StyleConfig) StyleCompiler {
	if strings.EqualFold(filepath.Ext(cfg.Entry), ".css") || len(cfg.Compiler) == 0 {
		return PlainCompiler{}
	}
	return CommandCompiler{Exec: exec, Argv: cfg.Compiler}
}

var (
	urlOpen    = regexp.MustCompile(`url\(`)
	urlRuleRow = regexp.MustCompile(`(\s*)(.+url\(.+)`)
)

// PrefixURLs rewrites every url( reference to start with prefix.
func PrefixURLs(css []byte, prefix string) []byte {
	if prefix == "" {
		return css
	}
	return urlOpen.ReplaceAllLiteral(css, []byte("url("+prefix))
}

// StripImages comments out every declaration referencing url( and
// replaces it with background-image: none.
func StripImages(css []byte) []byte {
	return urlRuleRow.ReplaceAll(css, []byte("${1}/* ${2} */${1}background-image: none !important;"))
}

// RewriteStyle applies the target's URL addressing and image stripping.
func RewriteStyle(css []byte, t config.TargetConfig) []byte {
	out := PrefixURLs(css, t.URLPrefix)
	if t.StripImages {
		out = StripImages(out)
	}
	return out
}
