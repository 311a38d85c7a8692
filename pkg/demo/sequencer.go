package demo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sharedmap/kernel/pkg/mapkernel"
	"github.com/sharedmap/kernel/pkg/pending"
)

// GenerateClientID returns a fresh time-ordered client identifier, for
// callers that don't have a natural one of their own to hand to Attach.
func GenerateClientID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err) // entropy source failure, not a reachable runtime condition
	}
	return id.String()
}

// Sequencer is a single-process, channel-based stand-in for the
// central ordering service: every attached client's ops are framed,
// pushed onto one incoming channel, stamped with a strictly increasing
// sequence number in arrival order, and fanned out concurrently to
// every attached replica.
type Sequencer struct {
	log      *zap.Logger
	seqNums  *pending.IDTracker
	incoming chan []byte

	mu      sync.Mutex
	clients map[string]*client
}

// NewSequencer returns a sequencer with no attached clients. Call Run
// in its own goroutine to start delivering.
func NewSequencer(log *zap.Logger) *Sequencer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{
		log:      log,
		seqNums:  pending.NewIDTracker(),
		incoming: make(chan []byte, 64),
		clients:  make(map[string]*client),
	}
}

// Attach registers k as a new replica identified by clientID, attaches
// a transport to it, and returns that transport (mostly useful for
// tests that want to submit stashed ops directly).
func (s *Sequencer) Attach(clientID string, k *mapkernel.Kernel) mapkernel.Transport {
	cl := &client{
		id:          clientID,
		kernel:      k,
		seq:         s,
		attached:    true,
		pendingMeta: make(map[uint64]mapkernel.OpMetadata),
	}

	s.mu.Lock()
	s.clients[clientID] = cl
	s.mu.Unlock()

	k.Attach(cl)
	return cl
}

// Detach marks clientID's transport as unattached; its kernel keeps
// applying remote deliveries but stops submitting new ops until
// reattached.
func (s *Sequencer) Detach(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cl, ok := s.clients[clientID]; ok {
		cl.attached = false
	}
}

func (s *Sequencer) enqueue(raw []byte) {
	s.incoming <- raw
}

// Step pops and delivers exactly one pending envelope, if any, without
// blocking. It reports whether an envelope was delivered, for callers
// (tests, the CLI demo) that want deterministic, single-step control
// instead of Run's free-running loop.
func (s *Sequencer) Step(ctx context.Context) bool {
	select {
	case raw := <-s.incoming:
		s.deliver(ctx, raw)
		return true
	default:
		return false
	}
}

// DropOldest removes the oldest pending envelope without delivering it,
// simulating a connection dropping before the sequencer ever saw it.
// It returns the dropped envelope and the metadata the submitting
// client stashed for it, for a caller that wants to drive resubmit.
func (s *Sequencer) DropOldest(clientID string) (Envelope, mapkernel.OpMetadata, bool) {
	var raw []byte
	select {
	case raw = <-s.incoming:
	default:
		return Envelope{}, mapkernel.OpMetadata{}, false
	}

	env, err := Unmarshal(raw)
	if err != nil {
		return Envelope{}, mapkernel.OpMetadata{}, false
	}

	s.mu.Lock()
	cl, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok || env.ClientID != clientID {
		return env, mapkernel.OpMetadata{}, false
	}

	cl.mu.Lock()
	meta, ok := cl.pendingMeta[env.ClientSeq]
	if ok {
		delete(cl.pendingMeta, env.ClientSeq)
	}
	cl.mu.Unlock()
	return env, meta, ok
}

// Run drains the incoming channel until ctx is cancelled, delivering
// each envelope to every attached replica.
func (s *Sequencer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-s.incoming:
			s.deliver(ctx, raw)
		}
	}
}

func (s *Sequencer) deliver(ctx context.Context, raw []byte) {
	env, err := Unmarshal(raw)
	if err != nil {
		s.log.Error("dropping corrupt envelope", zap.Error(err))
		return
	}

	seqNum := s.seqNums.Next()
	msg := mapkernel.SequencedMessage{
		Contents:             env.Op,
		SequenceNumber:       seqNum,
		ClientID:             env.ClientID,
		ClientSequenceNumber: env.ClientSeq,
	}

	s.mu.Lock()
	recipients := make([]*client, 0, len(s.clients))
	for _, cl := range s.clients {
		recipients = append(recipients, cl)
	}
	s.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, cl := range recipients {
		cl := cl
		g.Go(func() error {
			return cl.deliver(s.log, msg, env)
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("delivery poisoned a replica", zap.Error(err))
	}
}
