package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Diagnostic is one finding attributed to a module.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Module   string
	Message  string
	Notes    []string
}

func NewError(code Code, module, msg string) Diagnostic {
	return Diagnostic{Severity: SevError, Code: code, Module: module, Message: msg}
}

func (d Diagnostic) WithNote(msg string) Diagnostic {
	d.Notes = append(d.Notes, msg)
	return d
}
