package storage_test

import (
	"testing"

	"github.com/kridavyuha/auction-server/internals/storage"

	"github.com/peterldowns/testy/check"
)

func TestAuctioning(t *testing.T) {
	check.False(t, storage.AuctionState{}.Auctioning())

	id := "p1"
	check.True(t, storage.AuctionState{CurrentPlayerID: &id}.Auctioning())
}
