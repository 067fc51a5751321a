package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		sql  string
		want Category
	}{
		{"rollback to savepoint", "ROLLBACK TO SAVEPOINT x", CategoryRollback},
		{"rollback leading whitespace", "  \n rollback", CategoryRollback},
		{"select for update", "  select * from a for update", CategoryLock},
		{"select for update multiline", "SELECT *\nFROM a\nFOR UPDATE", CategoryLock},
		{"lock table", "LOCK TABLE accounts IN SHARE MODE", CategoryLock},
		{"select", "SELECT * FROM users WHERE id = $1", CategorySelect},
		{"select lowercase", "select 1", CategorySelect},
		{"insert", "INSERT INTO t VALUES (1)", CategoryInsert},
		{"update", "UPDATE users SET name = 'x'", CategoryUpdate},
		{"delete", "DELETE FROM users WHERE id = 1", CategoryDelete},
		{"commit transaction", "COMMIT TRANSACTION", CategoryTransaction},
		{"begin transaction trailing space", "begin transaction  \n", CategoryTransaction},
		{"empty", "", CategoryOther},
		{"garbage", "}{ not sql", CategoryOther},
		{"create table", "CREATE TABLE t (id int)", CategoryOther},
		{"keyword not leading", "WITH x AS (SELECT 1) SELECT * FROM x", CategoryOther},
		{"transaction not trailing", "COMMIT TRANSACTION; SELECT 1", CategoryOther},
		{"rollback wins over transaction", "ROLLBACK TRANSACTION", CategoryRollback},
		{"lock wins over select", "SELECT id FROM jobs WHERE ready FOR UPDATE SKIP LOCKED", CategoryLock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.sql))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()
	inputs := []string{"SELECT 1", "ROLLBACK", "", "COMMIT TRANSACTION", "lock t"}
	for _, in := range inputs {
		first := Classify(in)
		for range 10 {
			assert.Equal(t, first, Classify(in), "input %q", in)
		}
	}
}

func TestCategory_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "SELECT", CategorySelect.String())
	assert.Equal(t, "LOCK_OR_SELECT_FOR_UPDATE", CategoryLock.String())
	assert.Equal(t, "TRANSACTION_BOUNDARY", CategoryTransaction.String())
	assert.Equal(t, "OTHER", Category(99).String())
	assert.Len(t, Categories(), 8)
}

func TestCategory_TextRoundTrip(t *testing.T) {
	t.Parallel()
	for _, c := range Categories() {
		text, err := c.MarshalText()
		require.NoError(t, err)

		var got Category
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, c, got)
	}

	var bad Category
	assert.Error(t, bad.UnmarshalText([]byte("MERGE")))
}
