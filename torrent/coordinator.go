package torrent

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ProgressFunc is invoked by the consumer task each time it processes a
// batch, reporting downloaded/total bytes (spec.md §4.4 "Emit progress").
type ProgressFunc func(downloadedBytes, totalBytes int64)

type blockKey struct {
	pieceIndex int
	offset     int64
}

// Coordinator owns the shared work queue of outstanding blocks, the
// per-piece assembly state, and the Complete signal (spec.md §3/§4.4). It
// is created once per download and lives for its duration.
type Coordinator struct {
	meta *TorrentMeta
	cfg  Config
	peers []PeerAddr
	ownPeerID [20]byte
	progress  ProgressFunc

	blocksMu    sync.Mutex
	blocks      []Block
	blockIndex  map[blockKey]int
	blocksByPiece [][]int
	pieceDone   []int  // count of Downloaded blocks per piece, reset on verification failure
	pieceVerified []bool
	downloadedBytes int64 // atomic

	avail []int32 // atomic counters, len == meta.NumPieces

	RequestQueue chan BlockRequest
	ConsumeQueue chan DeliveredBlock

	completeOnce sync.Once
	complete     chan struct{}
}

// NewCoordinator builds the block array, allocates the availability
// vector, and sizes the request/consume queues, per spec.md §4.4.
// Construction builds no PeerSession and starts nothing; Run builds and
// starts one session per address for the first Config.MaxSessions
// addresses, and addresses beyond that are not used.
func NewCoordinator(meta *TorrentMeta, peers []PeerAddr, cfg Config, progress ProgressFunc) *Coordinator {
	blocks := BuildBlocks(meta.NumPieces, meta.PieceLength, meta.TotalSize)

	blockIndex := make(map[blockKey]int, len(blocks))
	blocksByPiece := make([][]int, meta.NumPieces)
	for i, b := range blocks {
		blockIndex[blockKey{b.PieceIndex, b.Offset}] = i
		blocksByPiece[b.PieceIndex] = append(blocksByPiece[b.PieceIndex], i)
	}

	const queueCapacity = 4096

	return &Coordinator{
		meta:          meta,
		cfg:           cfg,
		peers:         peers,
		ownPeerID:     GeneratePeerID(),
		progress:      progress,
		blocks:        blocks,
		blockIndex:    blockIndex,
		blocksByPiece: blocksByPiece,
		pieceDone:     make([]int, meta.NumPieces),
		pieceVerified: make([]bool, meta.NumPieces),
		avail:         make([]int32, meta.NumPieces),
		RequestQueue:  make(chan BlockRequest, queueCapacity),
		ConsumeQueue:  make(chan DeliveredBlock, queueCapacity),
		complete:      make(chan struct{}),
	}
}

// Done returns the Complete signal: closed once every piece has been
// downloaded and verified.
func (c *Coordinator) Done() <-chan struct{} {
	return c.complete
}

func (c *Coordinator) setComplete() {
	c.completeOnce.Do(func() {
		close(c.complete)
	})
}

// Run spawns up to Config.MaxSessions peer sessions plus the request
// producer and consume-drain tasks, waits for Complete, and then
// assembles the output file (spec.md §4.4). It blocks until the download
// completes, ctx is canceled, or assembly fails.
func (c *Coordinator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := len(c.peers)
	if n > c.cfg.MaxSessions {
		n = c.cfg.MaxSessions
	}

	var wg sync.WaitGroup
	for _, addr := range c.peers[:n] {
		session := NewPeerSession(addr, c)
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.Run(runCtx)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.runProducer(runCtx)
	}()
	go func() {
		defer wg.Done()
		c.runConsumer(runCtx)
	}()

	select {
	case <-c.Done():
	case <-ctx.Done():
		cancel()
		wg.Wait()
		return ctx.Err()
	}

	cancel()
	wg.Wait()

	return c.assemble()
}

// runProducer fills RequestQueue with NOT_REQUESTED blocks in batches,
// ordered rarest-first by ascending avail[piece_index] (spec.md §4.4, the
// permitted refinement over uniform random sampling), and sweeps blocks
// stuck REQUESTED past Config.RequestTimeout back to NOT_REQUESTED.
func (c *Coordinator) runProducer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		default:
		}

		batch := c.nextBatch()

		for _, req := range batch {
			select {
			case c.RequestQueue <- req:
			case <-ctx.Done():
				return
			case <-c.Done():
				return
			}
		}

		timer := time.NewTimer(c.cfg.CooperativeSleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.Done():
			timer.Stop()
			return
		}
	}
}

func (c *Coordinator) nextBatch() []BlockRequest {
	now := time.Now().UnixNano()
	timeout := int64(c.cfg.RequestTimeout)

	c.blocksMu.Lock()
	defer c.blocksMu.Unlock()

	for i := range c.blocks {
		b := &c.blocks[i]
		if b.Status == Requested && now-b.requestedAt > timeout {
			b.Status = NotRequested
		}
	}

	candidates := make([]int, 0)
	for i := range c.blocks {
		if c.blocks[i].Status == NotRequested {
			candidates = append(candidates, i)
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		pa := c.blocks[candidates[a]].PieceIndex
		pb := c.blocks[candidates[b]].PieceIndex
		return atomic.LoadInt32(&c.avail[pa]) < atomic.LoadInt32(&c.avail[pb])
	})

	n := c.cfg.RequestBatch
	if n > len(candidates) {
		n = len(candidates)
	}

	batch := make([]BlockRequest, 0, n)
	for _, idx := range candidates[:n] {
		b := &c.blocks[idx]
		b.Status = Requested
		b.requestedAt = now
		batch = append(batch, BlockRequest{PieceIndex: b.PieceIndex, Offset: b.Offset, Length: b.Length})
	}

	return batch
}

// runConsumer drains ConsumeQueue in batches (one blocking get then up to
// Config.ConsumeBatch-1 non-blocking gets), applies each delivery, emits
// progress, and sets Complete once every piece verifies (spec.md §4.4).
func (c *Coordinator) runConsumer(ctx context.Context) {
	total := c.meta.TotalSize

	for {
		var first DeliveredBlock
		select {
		case first = <-c.ConsumeQueue:
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		}

		batch := []DeliveredBlock{first}
	drain:
		for len(batch) < c.cfg.ConsumeBatch {
			select {
			case d := <-c.ConsumeQueue:
				batch = append(batch, d)
			default:
				break drain
			}
		}

		for _, d := range batch {
			c.applyDelivery(d)
		}

		if c.progress != nil {
			c.progress(atomic.LoadInt64(&c.downloadedBytes), total)
		}

		if c.allPiecesVerified() {
			c.setComplete()
			return
		}
	}
}

// applyDelivery locates the owning block by (piece_index, offset) and,
// if it is not already DOWNLOADED, stores the payload and advances its
// status. Re-delivery of an already-DOWNLOADED block is discarded
// silently (spec.md §3 "Idempotent delivery").
func (c *Coordinator) applyDelivery(d DeliveredBlock) {
	c.blocksMu.Lock()
	idx, ok := c.blockIndex[blockKey{d.PieceIndex, d.Offset}]
	if !ok {
		c.blocksMu.Unlock()
		return
	}

	b := &c.blocks[idx]
	if b.Status == Downloaded {
		c.blocksMu.Unlock()
		return
	}

	b.Data = d.Data
	b.Status = Downloaded
	atomic.AddInt64(&c.downloadedBytes, b.Length)

	pieceIndex := b.PieceIndex
	c.pieceDone[pieceIndex]++
	complete := c.pieceDone[pieceIndex] == len(c.blocksByPiece[pieceIndex])
	var pieceBlockIdx []int
	if complete {
		pieceBlockIdx = append(pieceBlockIdx, c.blocksByPiece[pieceIndex]...)
	}
	c.blocksMu.Unlock()

	if complete {
		c.verifyPiece(pieceIndex, pieceBlockIdx)
	}
}

// verifyPiece hashes a fully-downloaded piece's concatenated block data
// against TorrentMeta.PieceHashes. On mismatch the piece's blocks are
// reset to NOT_REQUESTED and re-enter circulation — the supplemented
// verification behavior spec.md §9 flags as missing from the reference.
func (c *Coordinator) verifyPiece(pieceIndex int, blockIdx []int) {
	c.blocksMu.Lock()
	var buf bytes.Buffer
	for _, idx := range blockIdx {
		buf.Write(c.blocks[idx].Data)
	}
	data := buf.Bytes()
	c.blocksMu.Unlock()

	sum := sha1.Sum(data)

	c.blocksMu.Lock()
	defer c.blocksMu.Unlock()

	if bytes.Equal(sum[:], c.meta.PieceHashes[pieceIndex][:]) {
		c.pieceVerified[pieceIndex] = true
		return
	}

	log.Printf("[ERROR]\tpiece %d failed hash verification, re-queuing\n", pieceIndex)

	var lost int64
	for _, idx := range blockIdx {
		b := &c.blocks[idx]
		lost += b.Length
		b.Status = NotRequested
		b.Data = nil
	}
	c.pieceDone[pieceIndex] = 0
	atomic.AddInt64(&c.downloadedBytes, -lost)
}

func (c *Coordinator) allPiecesVerified() bool {
	c.blocksMu.Lock()
	defer c.blocksMu.Unlock()

	for _, v := range c.pieceVerified {
		if !v {
			return false
		}
	}
	return true
}

// assemble verifies every block is DOWNLOADED (an ErrInternal otherwise —
// this must not happen given the completion predicate), concatenates
// blocks in (piece_index, offset) order, and writes the result to
// TorrentMeta.OutputPath (spec.md §4.4).
func (c *Coordinator) assemble() error {
	c.blocksMu.Lock()
	defer c.blocksMu.Unlock()

	sort.Slice(c.blocks, func(i, j int) bool {
		if c.blocks[i].PieceIndex != c.blocks[j].PieceIndex {
			return c.blocks[i].PieceIndex < c.blocks[j].PieceIndex
		}
		return c.blocks[i].Offset < c.blocks[j].Offset
	})

	for _, b := range c.blocks {
		if b.Status != Downloaded {
			return fmt.Errorf("%w: block (piece=%d offset=%d) is %s at assembly time", ErrInternal, b.PieceIndex, b.Offset, b.Status)
		}
	}

	f, err := os.OpenFile(c.meta.OutputPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening output %q: %v", ErrInternal, c.meta.OutputPath, err)
	}
	defer f.Close()

	for _, b := range c.blocks {
		if _, err := f.Write(b.Data); err != nil {
			return fmt.Errorf("%w: writing output %q: %v", ErrInternal, c.meta.OutputPath, err)
		}
	}

	return nil
}
