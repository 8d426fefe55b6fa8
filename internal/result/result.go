// Package result defines the outcome returned to callers of a pipeline run.
package result

import "encoding/json"

// Type discriminates a Result.
type Type string

const (
	TypePlot      Type = "plot"
	TypeDataFrame Type = "dataframe"
	TypeError     Type = "error"
)

// Result is the single value produced per query. For plots Value is the
// artifact path, for dataframes the computed value, for errors the message.
type Result struct {
	Type  Type `json:"type"`
	Value any  `json:"value"`
}

func Plot(path string) Result { return Result{Type: TypePlot, Value: path} }

func Data(v any) Result { return Result{Type: TypeDataFrame, Value: v} }

func Error(msg string) Result { return Result{Type: TypeError, Value: msg} }

// IsError reports whether r is an error result.
func (r Result) IsError() bool { return r.Type == TypeError }

// Path returns the artifact path of a plot result, or "".
func (r Result) Path() string {
	if r.Type != TypePlot {
		return ""
	}
	s, _ := r.Value.(string)
	return s
}

// Message returns the message of an error result, or "".
func (r Result) Message() string {
	if r.Type != TypeError {
		return ""
	}
	s, _ := r.Value.(string)
	return s
}

// JSON encodes the result; values that cannot be encoded fall back to their printed form.
func (r Result) JSON() ([]byte, error) {
	b, err := json.Marshal(r)
	if err == nil {
		return b, nil
	}
	return json.Marshal(Result{Type: r.Type, Value: fmtValue(r.Value)})
}
