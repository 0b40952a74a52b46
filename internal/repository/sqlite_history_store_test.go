package repository

import (
	"io"
	"strings"
	"testing"

	"github.com/yourusername/race-edge/internal/database"
)

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func TestSQLiteHistoryStore(t *testing.T) {
	runHistoryStoreContract(t, func(t *testing.T) Store {
		return NewSQLiteHistoryStore(database.SetupTestSQLite(t))
	})
}
