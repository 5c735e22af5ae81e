package node

import "github.com/hashicorp/hcl/v2"

// MessageLevel is the severity of a compilation or execution message.
type MessageLevel int

const (
	LevelInfo MessageLevel = iota
	LevelWarning
	LevelError
)

// String returns the canonical name of the level.
func (l MessageLevel) String() string {
	switch l {
	case LevelInfo:
		return "Info"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	}
	return "Unknown"
}

// CodeLocation pinpoints a span of the node's code using 0-based line and
// column numbers.
type CodeLocation struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// LocationFromRange converts an HCL source range (1-based lines and columns)
// into a 0-based CodeLocation.
func LocationFromRange(r hcl.Range) CodeLocation {
	return CodeLocation{
		StartLine:   r.Start.Line - 1,
		StartColumn: r.Start.Column - 1,
		EndLine:     r.End.Line - 1,
		EndColumn:   r.End.Column - 1,
	}
}

// CompilationMessage is raised by static analysis before any execution
// attempt, e.g. an unresolved reference or a cyclic dependency.
type CompilationMessage struct {
	Level    MessageLevel
	Message  string
	Location *CodeLocation
}

// ExecutionMessage is raised by the execution instance during or after a run.
type ExecutionMessage struct {
	Level      MessageLevel
	Message    string
	ErrorType  string
	Location   *CodeLocation
	StackTrace string
}
