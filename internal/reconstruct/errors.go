package reconstruct

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// FileError is the failure of one database. The batch records it and moves
// on to the next file.
type FileError struct {
	Path  string
	Err   error
	Stack []byte // set when the failure was a panic
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Trace renders the error and stack with every line prefixed by "!! ", the
// form written to the task log.
func (e *FileError) Trace() string {
	lines := []string{fmt.Sprintf("Error processing %s: %v", e.Path, e.Err)}
	if len(e.Stack) > 0 {
		lines = append(lines, strings.Split(strings.TrimRight(string(e.Stack), "\n"), "\n")...)
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("!! ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// panicError carries a recovered panic and the stack it was raised on.
type panicError struct {
	value any
	stack []byte
}

func newPanicError(v any) *panicError {
	return &panicError{value: v, stack: debug.Stack()}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
