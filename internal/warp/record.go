package warp

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Record is one named destination. It is a value: two records are equal when
// every field is equal. A record is never edited in place; replacing one is a
// delete followed by a create.
type Record struct {
	Name     string `json:"name" yaml:"name"`
	Server   string `json:"server" yaml:"server"`
	Location `yaml:",inline"`
}

func (r *Record) Validate() error {
	el := errors.NewErrorList()

	if r.Name == "" {
		el.Add(fmt.Errorf("name must be set"))
	}
	if r.Server == "" {
		el.Add(fmt.Errorf("server must be set"))
	}
	if r.World == "" {
		el.Add(fmt.Errorf("world must be set"))
	}

	return el.Err()
}
