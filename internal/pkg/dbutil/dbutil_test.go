package dbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalize(t *testing.T) {
	q, args := Finalize("postgres", "SELECT a FROM t WHERE x=? AND y=?", []interface{}{1, 2})
	assert.Equal(t, "SELECT a FROM t WHERE x=$1 AND y=$2", q)
	assert.Equal(t, []interface{}{1, 2}, args)

	q, _ = Finalize("sqlite", "SELECT a FROM t WHERE x=?", nil)
	assert.Equal(t, "SELECT a FROM t WHERE x=?", q)
}
