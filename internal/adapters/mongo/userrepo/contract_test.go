package userrepo

import (
	"testing"

	"github.com/rideshare-marketplace/rides-api/internal/adapters/contracttest"
	"github.com/rideshare-marketplace/rides-api/internal/adapters/mongo/testutil"
	userrepoport "github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

func TestContract_MongoUserRepo(t *testing.T) {
	db := testutil.OpenDatabase(t)

	contracttest.RunUserRepo(t, func(t *testing.T) (userrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(db), nil
	})
}
