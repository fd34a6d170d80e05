// Package postgresql implements the local store managers on PostgreSQL.
package postgresql

import (
	"github.com/datasud/idgo/internal/catalogsync/db/dbmanager"
)

type catalogSyncDb struct {
	mm *metadataManager
	om *objectManager
	lm *ledgerManager
	cm *connectionManager
}

func NewCatalogSyncDb(c dbmanager.ScopedConn) (*metadataManager, *objectManager, *ledgerManager, *connectionManager) {
	h := &catalogSyncDb{}
	h.mm = newMetadataManager(c)
	h.om = newObjectManager(c)
	h.lm = newLedgerManager(c)
	h.cm = newConnectionManager(c)
	h.om.m = h.mm
	return h.mm, h.om, h.lm, h.cm
}
