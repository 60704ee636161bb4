package db

import (
	"path/filepath"
	"testing"

	"github.com/pushchain/bridge-oracle/oracleClient/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_OpenModes(t *testing.T) {
	t.Run("in-memory alias", func(t *testing.T) {
		db, err := OpenInMemoryDB(true)
		require.NoError(t, err)
		require.NotNil(t, db)

		runSampleInsertSelectTest(t, db)
		assert.NoError(t, db.Ping())
		assert.NoError(t, db.Close())
	})

	t.Run("file-based DB", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")
		dbName := "test.db"

		db, err := OpenFileDB(dir, dbName, true)
		require.NoError(t, err)
		require.NotNil(t, db)

		assert.FileExists(t, filepath.Join(dir, dbName))

		runSampleInsertSelectTest(t, db)

		assert.NoError(t, db.Close())

		t.Run("close twice", func(t *testing.T) {
			assert.NoError(t, db.Close())
		})
	})
}

func TestDB_SourceNonceUniqueAmongLiveOrders(t *testing.T) {
	db, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer db.Close()

	first := sampleOrder("order-1")
	require.NoError(t, db.Client().Create(&first).Error)

	dup := sampleOrder("order-2")
	assert.Error(t, db.Client().Create(&dup).Error)

	// Soft deleting the first order frees the nonce.
	require.NoError(t, db.Client().Delete(&store.Order{}, "id = ?", "order-1").Error)
	assert.NoError(t, db.Client().Create(&dup).Error)
}

func TestDB_Cursor(t *testing.T) {
	db, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer db.Close()

	cursor, err := db.LoadCursor("hub-events")
	require.NoError(t, err)
	assert.Equal(t, "", cursor)

	require.NoError(t, db.SaveCursor("hub-events", "10"))
	require.NoError(t, db.SaveCursor("hub-events", "42"))

	cursor, err = db.LoadCursor("hub-events")
	require.NoError(t, err)
	assert.Equal(t, "42", cursor)

	var count int64
	require.NoError(t, db.Client().Model(&store.PollCursor{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func sampleOrder(id string) store.Order {
	return store.Order{
		ID:          id,
		Source:      store.ChainSolana,
		Dest:        store.ChainQubic,
		From:        "from",
		To:          "to",
		Amount:      "1000000",
		RelayerFee:  "500",
		Status:      store.StatusPending,
		SourceNonce: "1111111111111111111111111111111111111111111111111111111111111111",
	}
}

func runSampleInsertSelectTest(t *testing.T, db *DB) {
	entry := sampleOrder("sample")

	err := db.Client().Create(&entry).Error
	require.NoError(t, err)

	var result store.Order
	err = db.Client().First(&result, "id = ?", "sample").Error
	require.NoError(t, err)
	assert.Equal(t, "1000000", result.Amount)
	assert.Equal(t, store.StatusPending, result.Status)
}
