package judge

import "github.com/vietddude/interviewer/internal/core/domain"

// Judge0 status ids.
const (
	StatusInQueue    = 1
	StatusProcessing = 2
	StatusAccepted   = 3
)

type status struct {
	description string
	verdict     domain.Verdict
}

var statuses = map[int]status{
	1:  {"In Queue", domain.VerdictOther},
	2:  {"Processing", domain.VerdictOther},
	3:  {"Accepted", domain.VerdictAccepted},
	4:  {"Wrong Answer", domain.VerdictWrongAnswer},
	5:  {"Time Limit Exceeded", domain.VerdictTimeLimitExceeded},
	6:  {"Compilation Error", domain.VerdictCompilationError},
	7:  {"Runtime Error (SIGSEGV)", domain.VerdictRuntimeError},
	8:  {"Runtime Error (SIGXFSZ)", domain.VerdictRuntimeError},
	9:  {"Runtime Error (SIGFPE)", domain.VerdictRuntimeError},
	10: {"Runtime Error (SIGABRT)", domain.VerdictRuntimeError},
	11: {"Runtime Error (NZEC)", domain.VerdictRuntimeError},
	12: {"Runtime Error (Other)", domain.VerdictRuntimeError},
	13: {"Internal Error", domain.VerdictOther},
	14: {"Exec Format Error", domain.VerdictOther},
}

// VerdictFor maps a Judge0 status id to a verdict. Unknown ids are Other.
func VerdictFor(id int) domain.Verdict {
	if s, ok := statuses[id]; ok {
		return s.verdict
	}
	return domain.VerdictOther
}

// Describe returns the human readable status text.
func Describe(id int) string {
	if s, ok := statuses[id]; ok {
		return s.description
	}
	return "Unknown"
}

func pending(id int) bool {
	return id == StatusInQueue || id == StatusProcessing
}
