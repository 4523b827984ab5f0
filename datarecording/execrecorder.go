package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfo is a property of the program run.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecTableName is the table that ExecRecorder writes.
const ExecTableName = "exec_info"

const execTimeLayout = "2006-01-02 15:04:05.000000000"

// ExecRecorder records how the program was run: when it started, how it was
// invoked, from where, and when it ended.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the exec_info table in recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecTableName, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start records the start time, the command, and the working directory.
// Extra properties can be given as name-value pairs.
func (e *ExecRecorder) Start(extra ...ExecInfo) {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", time.Now().Format(execTimeLayout)},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	if wd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", wd})
	}

	e.entries = append(e.entries, extra...)
}

// End writes the recorded properties together with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTableName, entry)
	}

	e.recorder.InsertData(ExecTableName,
		ExecInfo{"End Time", time.Now().Format(execTimeLayout)})

	e.entries = nil

	e.recorder.Flush()
}
