package params

import (
	"encoding/json"
	"fmt"
)

// ParamType is the kind of platform reference a pipeline parameter takes.
type ParamType int

const (
	ParamTypeFile ParamType = iota
	ParamTypeDir
	ParamTypeOutputDir
	ParamTypeUnknown
)

func (s ParamType) String() string {
	switch s {
	case ParamTypeFile:
		return "file"
	case ParamTypeDir:
		return "dir"
	case ParamTypeOutputDir:
		return "output_dir"
	default:
		return "unknown"
	}
}

func ParseParamType(field string) ParamType {
	switch field {
	case "file":
		return ParamTypeFile
	case "dir":
		return ParamTypeDir
	case "output_dir":
		return ParamTypeOutputDir
	default:
		return ParamTypeUnknown
	}
}

func (s ParamType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ParamType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	t := ParseParamType(name)
	if t == ParamTypeUnknown {
		return fmt.Errorf("unknown parameter type %q", name)
	}
	*s = t
	return nil
}
