package verdict

// Kind is the closed set of judge outcomes. The classifier decision
// table is exhaustive over these values.
type Kind int

const (
	Accepted Kind = iota
	WrongAnswer
	TimeLimitExceeded
	MemoryLimitExceeded
	CompilationError
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case Accepted:
		return "ACCEPTED"
	case WrongAnswer:
		return "WRONG_ANSWER"
	case TimeLimitExceeded:
		return "TIME_LIMIT_EXCEEDED"
	case MemoryLimitExceeded:
		return "MEMORY_LIMIT_EXCEEDED"
	case CompilationError:
		return "COMPILATION_ERROR"
	case RuntimeError:
		return "RUNTIME_ERROR"
	}
	return "UNKNOWN"
}

// Verdict is the terminal classification of one test run, together with
// the measured usage that produced it (-1 when unavailable).
type Verdict struct {
	Kind       Kind
	Message    string
	TimeMillis int64
	MemoryKB   int64
}

func New(kind Kind, message string) Verdict {
	return Verdict{Kind: kind, Message: message, TimeMillis: -1, MemoryKB: -1}
}

func NewWithUsage(kind Kind, message string, timeMillis, memoryKB int64) Verdict {
	return Verdict{Kind: kind, Message: message, TimeMillis: timeMillis, MemoryKB: memoryKB}
}
