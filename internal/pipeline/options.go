package pipeline

import (
	"io"
	"os"
	"strconv"
	"strings"
)

// RunOptions controls execution-time debugging behaviour. The zero value
// runs the composed query silently.
type RunOptions struct {
	// PrettyPrintSQL prints every composed segment before execution.
	PrettyPrintSQL bool
	// DebugMode previews each cumulative sub-query with row samples,
	// without materialising anything.
	DebugMode bool
	// DebugShowSQL includes the SQL text in debug output.
	DebugShowSQL bool
	// DebugMaxRows caps the row samples shown in debug output. Zero means
	// the default of 10.
	DebugMaxRows int
	// DebugIncremental materialises each fragment one at a time as a
	// temporary relation, showing samples after each.
	DebugIncremental bool
	// Out receives debug output. Nil means os.Stdout.
	Out io.Writer
}

const defaultDebugMaxRows = 10

func (o RunOptions) maxRows() int {
	if o.DebugMaxRows > 0 {
		return o.DebugMaxRows
	}
	return defaultDebugMaxRows
}

func (o RunOptions) out() io.Writer {
	if o.Out != nil {
		return o.Out
	}
	return os.Stdout
}

// RunOptionsFromEnv reads run options from ADDRMATCH_* environment
// variables, so quick scripts can flip debugging on without code changes.
func RunOptionsFromEnv() RunOptions {
	return RunOptions{
		PrettyPrintSQL:   getenvBool("ADDRMATCH_PRETTY_PRINT_SQL", false),
		DebugMode:        getenvBool("ADDRMATCH_DEBUG_MODE", false),
		DebugShowSQL:     getenvBool("ADDRMATCH_DEBUG_SHOW_SQL", false),
		DebugMaxRows:     getenvInt("ADDRMATCH_DEBUG_MAX_ROWS", 0),
		DebugIncremental: getenvBool("ADDRMATCH_DEBUG_INCREMENTAL", false),
	}
}

func getenvBool(name string, def bool) bool {
	val := os.Getenv(name)
	if val == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getenvInt(name string, def int) int {
	val := os.Getenv(name)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return def
	}
	return n
}
