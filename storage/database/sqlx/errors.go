package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ritmatiza/core"
)

const uniqueViolation = "23505"

// wrapErr maps no-rows to notFound and unique violations to a *core.DuplicateError.
func wrapErr(err error, notFound error, resource, key, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows && notFound != nil {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return core.NewDuplicateError(resource, key)
	}
	return errors.Wrap(err, msg)
}
