package syncer

import (
	"context"

	"github.com/nguyentranbao-ct/chat-node/internal/config"
	"github.com/nguyentranbao-ct/chat-node/internal/models"
)

// NodeDirectory resolves a logical destination to a callable base URL. The
// mapping is owned elsewhere in the platform; this core only consumes it.
type NodeDirectory interface {
	Resolve(ctx context.Context, dest models.NodeID) (string, error)
}

type staticDirectory struct {
	peers map[models.NodeID]string
}

// NewStaticDirectory resolves destinations from the SYNC_PEERS config map.
func NewStaticDirectory(conf *config.Config) NodeDirectory {
	peers := make(map[models.NodeID]string, len(conf.Sync.Peers))
	for dest, addr := range conf.Sync.Peers {
		peers[models.NodeID(dest)] = addr
	}
	return &staticDirectory{peers: peers}
}

func (d *staticDirectory) Resolve(_ context.Context, dest models.NodeID) (string, error) {
	addr, ok := d.peers[dest]
	if !ok {
		return "", models.ErrNotFound
	}
	return addr, nil
}
