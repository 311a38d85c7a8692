package demo

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sharedmap/kernel/pkg/kernellog"
	"github.com/sharedmap/kernel/pkg/mapkernel"
)

// client is the mapkernel.Transport a Sequencer hands to each attached
// kernel. It frames submitted ops and stashes their metadata so that,
// when the envelope comes back around from the sequencer, the owning
// kernel can be told local == true with the right metadata in hand.
type client struct {
	id     string
	kernel *mapkernel.Kernel
	seq    *Sequencer

	mu            sync.Mutex
	attached      bool
	nextClientSeq uint64
	pendingMeta   map[uint64]mapkernel.OpMetadata
}

func (c *client) IsAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

func (c *client) Submit(op mapkernel.Op, meta mapkernel.OpMetadata) {
	c.mu.Lock()
	clientSeq := c.nextClientSeq
	c.nextClientSeq++
	c.pendingMeta[clientSeq] = meta
	c.mu.Unlock()

	err := kernellog.WrapSubmit(c.seq.log, c.id, op, func() error {
		raw, err := Marshal(Envelope{ClientID: c.id, ClientSeq: clientSeq, Op: op})
		if err != nil {
			return err
		}
		c.seq.enqueue(raw)
		return nil
	})
	if err != nil {
		// Encoding a kernel-built op can only fail if C1 produced a
		// value json can't marshal, which FromUser/ToWire never do;
		// WrapSubmit has already logged it.
		panic(err)
	}
}

// deliver applies one sequenced envelope to this client's kernel,
// resolving whether it's a local ack or a remote op.
func (c *client) deliver(log *zap.Logger, msg mapkernel.SequencedMessage, env Envelope) error {
	local := env.ClientID == c.id

	var meta *mapkernel.OpMetadata
	if local {
		c.mu.Lock()
		m, ok := c.pendingMeta[env.ClientSeq]
		if ok {
			delete(c.pendingMeta, env.ClientSeq)
		}
		c.mu.Unlock()
		if ok {
			meta = &m
		}
	}

	_, err := kernellog.WrapProcess(log, c.id, msg, local, func() (bool, error) {
		return c.kernel.TryProcess(msg, local, meta)
	})
	return err
}
