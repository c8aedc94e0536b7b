package slick

import "time"

// Result run states.
const (
	RunStatusNoResult  = "NO_RESULT"
	RunStatusScheduled = "SCHEDULED"
	RunStatusToBeRun   = "TO_BE_RUN"
	RunStatusRunning   = "RUNNING"
	RunStatusFinished  = "FINISHED"
)

// Test run states.
const (
	TestRunRunning  = "RUNNING"
	TestRunFinished = "FINISHED"
)

type ProjectReference struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type NamedReference struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type TestCaseReference struct {
	TestCaseID     string `json:"testcaseId,omitempty"`
	Name           string `json:"name"`
	AutomationID   string `json:"automationId,omitempty"`
	AutomationKey  string `json:"automationKey,omitempty"`
	AutomationTool string `json:"automationTool,omitempty"`
}

type TestRunReference struct {
	TestRunID string `json:"testrunId"`
	Name      string `json:"name"`
}

type Step struct {
	Name           string `json:"name"`
	ExpectedResult string `json:"expectedResult,omitempty"`
}

type FileReference struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype,omitempty"`
	Length   int64  `json:"length,omitempty"`
}

type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TestCase is the documentation side of a test, shared by every result filed
// for it.
type TestCase struct {
	ID                      string            `json:"id,omitempty"`
	Name                    string            `json:"name"`
	Purpose                 string            `json:"purpose,omitempty"`
	Steps                   []Step            `json:"steps,omitempty"`
	Tags                    []string          `json:"tags,omitempty"`
	Author                  string            `json:"author,omitempty"`
	Component               *NamedReference   `json:"component,omitempty"`
	Project                 *ProjectReference `json:"project,omitempty"`
	Automated               bool              `json:"automated"`
	AutomationKey           string            `json:"automationKey,omitempty"`
	AutomationID            string            `json:"automationId,omitempty"`
	AutomationTool          string            `json:"automationTool,omitempty"`
	AutomationConfiguration string            `json:"automationConfiguration,omitempty"`
	Requirements            []string          `json:"requirements,omitempty"`
	Attributes              map[string]string `json:"attributes,omitempty"`
}

func (tc *TestCase) Reference() TestCaseReference {
	return TestCaseReference{
		TestCaseID:     tc.ID,
		Name:           tc.Name,
		AutomationID:   tc.AutomationID,
		AutomationKey:  tc.AutomationKey,
		AutomationTool: tc.AutomationTool,
	}
}

// TestRun groups results of one execution.
type TestRun struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Project     *ProjectReference `json:"project,omitempty"`
	Release     *NamedReference   `json:"release,omitempty"`
	Build       *NamedReference   `json:"build,omitempty"`
	Config      *NamedReference   `json:"config,omitempty"`
	TestPlanID  string            `json:"testplanId,omitempty"`
	State       string            `json:"state,omitempty"`
	RunStarted  int64             `json:"runStarted,omitempty"`
	RunFinished int64             `json:"runFinished,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Files       []FileReference   `json:"files,omitempty"`
	Links       []Link            `json:"links,omitempty"`
}

func (tr *TestRun) Reference() *TestRunReference {
	return &TestRunReference{TestRunID: tr.ID, Name: tr.Name}
}

// Result is one execution of a test case inside a test run.
type Result struct {
	ID           string            `json:"id,omitempty"`
	TestCase     TestCaseReference `json:"testcase"`
	TestRun      *TestRunReference `json:"testrun,omitempty"`
	Project      *ProjectReference `json:"project,omitempty"`
	Release      *NamedReference   `json:"release,omitempty"`
	Build        *NamedReference   `json:"build,omitempty"`
	Config       *NamedReference   `json:"config,omitempty"`
	Component    *NamedReference   `json:"component,omitempty"`
	Status       string            `json:"status"`
	RunStatus    string            `json:"runstatus"`
	Reason       string            `json:"reason,omitempty"`
	Recorded     int64             `json:"recorded,omitempty"`
	Started      int64             `json:"started,omitempty"`
	Finished     int64             `json:"finished,omitempty"`
	RunLength    int64             `json:"runlength,omitempty"`
	Hostname     string            `json:"hostname,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Requirements []string          `json:"requirements,omitempty"`
	Files        []FileReference   `json:"files,omitempty"`
	Links        []Link            `json:"links,omitempty"`
}

// LogEntry is one line of a result's log.
type LogEntry struct {
	EntryTime           int64    `json:"entryTime"`
	Level               string   `json:"level"`
	LoggerName          string   `json:"loggerName"`
	Message             string   `json:"message"`
	ExceptionClassName  string   `json:"exceptionClassName,omitempty"`
	ExceptionMessage    string   `json:"exceptionMessage,omitempty"`
	ExceptionStackTrace []string `json:"exceptionStackTrace,omitempty"`
}

// Millis converts t to the epoch milliseconds Slick stores, zero for the zero time.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
