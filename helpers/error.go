package helpers

import (
	"strings"

	"github.com/juju/errors"
)

// FoldErrors collapses accumulated validation errors into one, nil
// when none carry a message.
func FoldErrors(errs []error) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Error())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(msgs, "\n"))
}
