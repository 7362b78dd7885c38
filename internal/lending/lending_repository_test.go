package lending

import (
	"strings"
	"testing"
	"time"

	"equiploan/pkg/metadata"
	"equiploan/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pgDialect = goqu.Dialect("postgres")

func TestClaimEquipmentQueryOnlyMatchesFreeRows(t *testing.T) {
	at := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	sql, _, err := claimEquipmentQuery(pgDialect, 7, []int{101, 102}, metadata.EquipmentReserved, at).ToSQL()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, `UPDATE "equipment" SET `), sql)
	assert.Contains(t, sql, `"current_request_id"=7`)
	assert.Contains(t, sql, `"status"='RESERVED'`)
	assert.Contains(t, sql,
		`WHERE (("current_request_id" IS NULL) AND ("number" IN (101, 102)) AND ("status" = 'NORMAL'))`)
}

func TestLockEquipmentQueryLocksInNumberOrder(t *testing.T) {
	sql, _, err := lockEquipmentQuery(pgDialect, []int{101, 102}).ToSQL()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, `SELECT "number", "code", `), sql)
	assert.True(t, strings.HasSuffix(sql,
		`FROM "equipment" WHERE ("number" IN (101, 102)) ORDER BY "number" ASC FOR UPDATE`), sql)
}

func TestListRequestsQueryScopesToRequesterOrSubmitter(t *testing.T) {
	user := 5
	pending := metadata.RequestPending

	sql, _, err := listRequestsQuery(pgDialect, models.BorrowRequestFilter{Status: &pending, VisibleTo: &user}).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, sql, `"submitted_by_id"`)
	assert.Contains(t, sql, `("status" = 'PENDING')`)
	assert.Contains(t, sql, `(("requester_id" = 5) OR ("submitted_by_id" = 5))`)
	assert.True(t, strings.HasSuffix(sql, `ORDER BY "id" DESC`), sql)

	sql, _, err = listRequestsQuery(pgDialect, models.BorrowRequestFilter{}).ToSQL()
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
}
