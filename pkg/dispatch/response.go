package dispatch

// Status is the outcome of a keyword run.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Response is the result record of a keyword run. Map renders it with only
// the fields that carry content for the outcome; status is always present.
type Response struct {
	Status      Status
	Return      any
	Output      string
	Error       string
	Traceback   string
	Continuable bool
	Fatal       bool
}

// Passed reports whether the keyword succeeded.
func (r Response) Passed() bool {
	return r.Status == StatusPass
}

// Map returns the wire form of the response.
func (r Response) Map() map[string]any {
	status := r.Status
	if status == "" {
		status = StatusFail
	}
	out := map[string]any{"status": string(status)}
	if r.Return != nil {
		out["return"] = r.Return
	}
	if r.Output != "" {
		out["output"] = r.Output
	}
	if status == StatusFail {
		if r.Error != "" {
			out["error"] = r.Error
		}
		if r.Traceback != "" {
			out["traceback"] = r.Traceback
		}
		if r.Continuable {
			out["continuable"] = true
		}
		if r.Fatal {
			out["fatal"] = true
		}
	}
	return out
}

// FromMap parses a wire response. Unknown fields are ignored.
func FromMap(m map[string]any) Response {
	r := Response{Return: m["return"]}
	if s, ok := m["status"].(string); ok {
		r.Status = Status(s)
	}
	r.Output, _ = m["output"].(string)
	r.Error, _ = m["error"].(string)
	r.Traceback, _ = m["traceback"].(string)
	r.Continuable, _ = m["continuable"].(bool)
	r.Fatal, _ = m["fatal"].(bool)
	return r
}

func pass(value any, output string) Response {
	return Response{Status: StatusPass, Return: value, Output: output}
}

func fail(msg string) Response {
	return Response{Status: StatusFail, Error: msg}
}
