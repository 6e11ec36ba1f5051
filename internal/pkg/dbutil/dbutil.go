package dbutil

import (
	"github.com/jmoiron/sqlx"
)

// Finalize converts the '?' placeholders produced by gendry into the bind
// style of the target driver.
func Finalize(driver string, query string, args []interface{}) (string, []interface{}) {
	return sqlx.Rebind(sqlx.BindType(driver), query), args
}
