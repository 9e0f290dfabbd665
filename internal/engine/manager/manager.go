package manager

import (
	"CommSpectra/internal/alerter"
	"CommSpectra/internal/config"
	"CommSpectra/internal/distributor"
	"CommSpectra/internal/engine/changelog"
	"CommSpectra/internal/engine/classify"
	"CommSpectra/internal/factory"
	"CommSpectra/internal/metrics"
	"CommSpectra/internal/model"
	"CommSpectra/internal/notification"
	"CommSpectra/internal/replay"
	"CommSpectra/internal/report"
	_ "CommSpectra/internal/sink/natsink" // Registers the nats sink
	_ "CommSpectra/internal/sink/text"    // Registers the text sink
	"CommSpectra/internal/wire"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// shardDelta is one unit of the exchange between workers and shards.
type shardDelta struct {
	time  time.Duration
	dir   changelog.Direction
	delta changelog.Delta
}

// Manager runs the capture pipeline: a pool of workers replaying their share
// of the connections, a keyed exchange onto aggregation shards, and the
// fan-out of reports to sinks and the board.
type Manager struct {
	runID   string
	sinks   []model.Sink
	board   *report.Board
	alerter *alerter.Alerter

	work *distributor.Pool[net.Conn]
	comm *distributor.Pool[net.Conn]

	classifier  classify.Classifier
	granularity time.Duration
	replayOpts  replay.Options

	numWorkers int
	numShards  int
	batchSize  int
	deltaCap   int
	reportCap  int
}

// NewManager creates a Manager over the accepted computation (work) and
// communication (comm) connections. Reports are kept on board; a nil board
// gets a fresh one.
func NewManager(cfg *config.Config, args config.Args, board *report.Board, work, comm []net.Conn) (*Manager, error) {
	pollInterval, err := cfg.Receiver.PollDuration()
	if err != nil {
		return nil, err
	}
	readTimeout, err := cfg.Receiver.ReadDeadline()
	if err != nil {
		return nil, err
	}
	if args.Granularity <= 0 {
		return nil, fmt.Errorf("granularity must be a positive duration")
	}

	numWorkers := cfg.Receiver.NumWorkers
	if board == nil {
		board = report.NewBoard(uint32(cfg.Engine.Shards(numWorkers)))
	}

	var alertr *alerter.Alerter
	if cfg.Alerter.Enabled {
		alertr, err = alerter.NewAlerter(&cfg.Alerter, board, notification.New(cfg.SMTP))
		if err != nil {
			return nil, fmt.Errorf("failed to create alerter: %w", err)
		}
		log.Println("Alerter enabled and initialized.")
	}

	batchSize := cfg.Engine.ShardBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	// Sinks come last: they may already hold files or connections.
	runID := uuid.NewString()
	sinks, err := factory.CreateSinks(cfg, runID)
	if err != nil {
		return nil, err
	}

	return &Manager{
		runID:   runID,
		sinks:   append([]model.Sink{board}, sinks...),
		board:   board,
		alerter: alertr,
		work:    distributor.NewPool(work),
		comm:    distributor.NewPool(comm),
		classifier: classify.Classifier{
			Reference:   cfg.Receiver.ReferenceWorker,
			Granularity: args.Granularity,
		},
		granularity: args.Granularity,
		replayOpts: replay.Options{
			PollInterval:     pollInterval,
			ReadTimeout:      readTimeout,
			ReadBufferSize:   cfg.Receiver.ReadBufferSize,
			MaxFrameSize:     cfg.Receiver.MaxFrameSize,
			MaxFramesPerPoll: cfg.Receiver.MaxFramesPerPoll,
		},
		numWorkers: numWorkers,
		numShards:  cfg.Engine.Shards(numWorkers),
		batchSize:  batchSize,
		deltaCap:   cfg.Engine.SizeOfDeltaChannel,
		reportCap:  cfg.Engine.SizeOfReportChannel,
	}, nil
}

// Board returns the board holding the latest value of every report.
func (m *Manager) Board() *report.Board { return m.board }

// RunID identifies this run in published reports.
func (m *Manager) RunID() string { return m.runID }

// Run processes every connection until all of them have closed, a fatal
// error occurs, or ctx is cancelled. The first error stops the whole
// pipeline and is returned. Sinks are closed before Run returns.
func (m *Manager) Run(ctx context.Context) error {
	if m.alerter != nil {
		m.alerter.Start()
	}

	err := m.run(ctx)

	for _, c := range m.work.Drain() {
		c.Close()
	}
	for _, c := range m.comm.Drain() {
		c.Close()
	}
	if m.alerter != nil {
		m.alerter.Stop()
	}
	for _, s := range m.sinks {
		if cerr := s.Close(); cerr != nil {
			log.Printf("Error closing sink: %v", cerr)
		}
	}
	log.Println("Manager stopped.")
	return err
}

func (m *Manager) run(ctx context.Context) error {
	// 1. Hand every connection to exactly one worker.
	work, err := distribute(m.work, m.numWorkers, wire.ComputeStream)
	if err != nil {
		return err
	}
	comm, err := distribute(m.comm, m.numWorkers, wire.CommStream)
	if err != nil {
		for _, share := range work {
			closeAll(share)
		}
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	shards := make([]chan shardDelta, m.numShards)
	for i := range shards {
		shards[i] = make(chan shardDelta, m.deltaCap)
	}
	reports := make(chan model.Report, m.reportCap)

	// 2. Aggregation shards.
	var shardWg sync.WaitGroup
	shardWg.Add(m.numShards)
	for i := range shards {
		g.Go(func() error {
			defer shardWg.Done()
			return m.runShard(ctx, i, shards[i], reports)
		})
	}

	// 3. Workers, each replaying its share of both streams.
	var workerWg sync.WaitGroup
	workerWg.Add(2 * m.numWorkers)
	for worker := 0; worker < m.numWorkers; worker++ {
		g.Go(func() error {
			defer workerWg.Done()
			return m.runCompute(ctx, worker, work[worker], reports)
		})
		g.Go(func() error {
			defer workerWg.Done()
			return m.runComm(ctx, worker, comm[worker], shards)
		})
	}
	log.Printf("Manager started with %d workers and %d shards.", m.numWorkers, m.numShards)

	// 4. Close the exchange once every sender is gone.
	g.Go(func() error {
		workerWg.Wait()
		for _, ch := range shards {
			close(ch)
		}
		shardWg.Wait()
		close(reports)
		return nil
	})

	// 5. Publish reports in arrival order.
	g.Go(func() error {
		for r := range reports {
			if err := m.publish(r); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// distribute claims every worker's share of pool and checks that no
// connection was left without an owner.
func distribute(pool *distributor.Pool[net.Conn], workers int, stream wire.StreamKind) ([][]net.Conn, error) {
	shares := make([][]net.Conn, workers)
	for i := range shares {
		conns, err := pool.Claim(i, workers)
		if err != nil {
			for _, share := range shares[:i] {
				closeAll(share)
			}
			return nil, fmt.Errorf("worker %d failed to claim %s connections: %w", i, stream, err)
		}
		shares[i] = conns
		log.Printf("Worker %d replaying %d %s connections.", i, len(conns), stream)
	}
	if n := pool.Remaining(); n != 0 {
		for _, share := range shares {
			closeAll(share)
		}
		return nil, fmt.Errorf("%d %s connections left unclaimed by %d workers", n, stream, workers)
	}
	return shares, nil
}

func closeAll(conns []net.Conn) {
	for _, c := range conns {
		c.Close()
	}
}

func (m *Manager) options(stream wire.StreamKind, worker int) replay.Options {
	opts := m.replayOpts
	opts.Stream = stream.String()
	opts.Worker = worker
	return opts
}

// runCompute replays the worker's computation connections and passes
// topology declarations straight through as reports.
func (m *Manager) runCompute(ctx context.Context, worker int, conns []net.Conn, reports chan<- model.Report) error {
	r := replay.New(wire.Compute, conns, m.options(wire.ComputeStream, worker))
	return r.Run(ctx, func(rec model.ComputeRecord) error {
		rep, ok := m.classifier.Classify(rec)
		if !ok {
			return nil
		}
		return send(ctx, reports, rep)
	})
}

// runComm replays the worker's communication connections and routes each
// message delta to the shard owning its key.
func (m *Manager) runComm(ctx context.Context, worker int, conns []net.Conn, shards []chan shardDelta) error {
	r := replay.New(wire.Comm, conns, m.options(wire.CommStream, worker))
	return r.Run(ctx, func(rec model.CommRecord) error {
		dir, d, ok := changelog.Split(rec, m.granularity)
		if !ok {
			return nil
		}
		shard := shards[d.Key.Hash()%uint32(len(shards))]
		return send(ctx, shard, shardDelta{time: rec.Time, dir: dir, delta: d})
	})
}

// runShard owns the send, receive and difference counts for its keys.
// Deltas are taken in batches of up to batchSize that share one logical
// time; each batch yields the SEND and RECV updates followed by the LATE
// updates. Changes at different times are never netted against each other.
func (m *Manager) runShard(ctx context.Context, id int, in <-chan shardDelta, reports chan<- model.Report) error {
	sends := changelog.NewCount()
	recvs := changelog.NewCount()
	late := changelog.NewDifference()
	backlog := metrics.ExchangeBacklog.WithLabelValues(strconv.Itoa(id))

	var sendBatch, recvBatch []changelog.Delta
	var next shardDelta
	held := false
	for {
		first := next
		if held {
			held = false
		} else {
			var ok bool
			select {
			case first, ok = <-in:
			case <-ctx.Done():
				return ctx.Err()
			}
			if !ok {
				return nil
			}
		}

		sendBatch, recvBatch = sendBatch[:0], recvBatch[:0]
		add := func(sd shardDelta) {
			if sd.dir == changelog.Send {
				sendBatch = append(sendBatch, sd.delta)
			} else {
				recvBatch = append(recvBatch, sd.delta)
			}
		}
		add(first)
	fill:
		for n := 1; n < m.batchSize; n++ {
			select {
			case sd, ok := <-in:
				if !ok {
					break fill
				}
				if sd.time != first.time {
					next, held = sd, true
					break fill
				}
				add(sd)
			default:
				break fill
			}
		}
		backlog.Set(float64(len(in)))

		su := sends.Apply(sendBatch)
		ru := recvs.Apply(recvBatch)
		lu := late.Apply(su, ru)

		for _, batch := range []struct {
			category model.Category
			updates  []changelog.Update
		}{
			{model.CategorySend, su},
			{model.CategoryRecv, ru},
			{model.CategoryLate, lu},
		} {
			for _, u := range batch.updates {
				rep := model.Report{Category: batch.category, Key: u.Key, Value: u.New, Diff: u.New - u.Old}
				if err := send(ctx, reports, rep); err != nil {
					return err
				}
			}
		}
	}
}

func (m *Manager) publish(r model.Report) error {
	metrics.ReportsEmitted.WithLabelValues(string(r.Category)).Inc()
	for _, s := range m.sinks {
		if err := s.Emit(r); err != nil {
			return fmt.Errorf("failed to emit %s report: %w", r.Category, err)
		}
	}
	return nil
}

func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
