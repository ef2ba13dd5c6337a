package msgworker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrPoolStopped se retorna cuando se despacha sobre un pool detenido
var ErrPoolStopped = errors.New("worker pool stopped")

// Job es una unidad de trabajo. Jobs con la misma Key se ejecutan en orden
// y nunca en paralelo.
type Job struct {
	Key     string
	Handler func(ctx context.Context) error
}

// PoolStats contiene métricas en tiempo real del worker pool
type PoolStats struct {
	Name            string         `json:"name"`
	NumWorkers      int            `json:"numWorkers"`
	QueueSize       int            `json:"queueSize"`
	ActiveWorkers   int            `json:"activeWorkers"`
	TotalDispatched int64          `json:"totalDispatched"`
	TotalProcessed  int64          `json:"totalProcessed"`
	TotalDropped    int64          `json:"totalDropped"`
	TotalErrors     int64          `json:"totalErrors"`
	WorkerStats     []WorkerStats  `json:"workerStats"`
	ActiveKeys      map[string]int `json:"activeKeys"` // key -> worker_id
}

// WorkerStats contiene métricas por worker individual
type WorkerStats struct {
	WorkerID      int   `json:"workerId"`
	QueueDepth    int   `json:"queueDepth"`
	IsProcessing  bool  `json:"isProcessing"`
	JobsProcessed int64 `json:"jobsProcessed"`
}

type activeKeyEntry struct {
	workerID  int
	updatedAt time.Time
}

// KeyedPool reparte jobs entre workers por hash de la clave
type KeyedPool struct {
	name       string
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	started    int32
	stopped    int32
	stopCh     chan struct{}

	// Métricas
	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
	activeKeysMu    sync.Mutex
	activeKeys      map[string]activeKeyEntry
}

// worker representa un worker individual con su cola
type worker struct {
	id            int
	jobQueue      chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32 // atomic: 1 if processing, 0 if idle
	jobsProcessed int64
	pool          *KeyedPool
}

// NewKeyedPool crea un nuevo pool de workers
func NewKeyedPool(name string, numWorkers, queueSize int) *KeyedPool {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &KeyedPool{
		name:       name,
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
		activeKeys: make(map[string]activeKeyEntry),
		stopCh:     make(chan struct{}),
	}
}

// Start inicia todos los workers del pool
func (p *KeyedPool) Start(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.pruneActiveKeys(time.Now())
			}
		}
	}()

	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan Job, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[WORKER_POOL:%s] Started with %d workers, queue size: %d", p.name, p.numWorkers, p.queueSize)
}

// TryDispatch encola un job sin bloquear y retorna si pudo encolarse
func (p *KeyedPool) TryDispatch(job Job) bool {
	if atomic.LoadInt32(&p.started) == 0 || atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.Key)
	atomic.AddInt64(&p.totalDispatched, 1)
	p.trackKey(job.Key, shard)

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()
	if sent {
		return true
	}

	p.untrackKey(job.Key)
	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[WORKER_POOL:%s] Worker %d queue full (or stopped), dropping job for %s", p.name, shard, job.Key)
	return false
}

// Dispatch encola un job sin esperar su resultado
func (p *KeyedPool) Dispatch(job Job) {
	_ = p.TryDispatch(job)
}

// Do ejecuta fn en el worker de key y espera su resultado. Espera lugar en la
// cola hasta que ctx expire. Un job nunca debe llamar Do sobre el mismo pool.
func (p *KeyedPool) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if atomic.LoadInt32(&p.started) == 0 || atomic.LoadInt32(&p.stopped) == 1 {
		return ErrPoolStopped
	}

	done := make(chan error, 1)
	job := Job{
		Key: key,
		Handler: func(_ context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("job %s panicked: %v", key, r)
				}
				done <- err
			}()
			if err = ctx.Err(); err != nil {
				return err
			}
			return fn(ctx)
		},
	}

	shard := p.shardFor(key)
	atomic.AddInt64(&p.totalDispatched, 1)
	p.trackKey(key, shard)

	enqueued, err := func() (ok bool, err error) {
		defer func() {
			if r := recover(); r != nil {
				ok, err = false, ErrPoolStopped
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true, nil
		case <-p.stopCh:
			return false, ErrPoolStopped
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}()
	if !enqueued {
		p.untrackKey(key)
		atomic.AddInt64(&p.totalDropped, 1)
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop detiene el pool de forma graceful
func (p *KeyedPool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		close(p.stopCh)
		logrus.Infof("[WORKER_POOL:%s] Stopping workers...", p.name)

		for _, w := range p.workers {
			if w == nil {
				continue
			}
			w.cancel()
			close(w.jobQueue)
		}
		p.wg.Wait()

		logrus.Infof("[WORKER_POOL:%s] All workers stopped", p.name)
	})
}

// shardFor calcula el worker de una clave usando hash consistente
func (p *KeyedPool) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *KeyedPool) trackKey(key string, shard int) {
	p.activeKeysMu.Lock()
	p.activeKeys[key] = activeKeyEntry{workerID: shard, updatedAt: time.Now()}
	p.activeKeysMu.Unlock()
}

func (p *KeyedPool) untrackKey(key string) {
	p.activeKeysMu.Lock()
	delete(p.activeKeys, key)
	p.activeKeysMu.Unlock()
}

func (p *KeyedPool) pruneActiveKeys(now time.Time) {
	p.activeKeysMu.Lock()
	for k, v := range p.activeKeys {
		if now.Sub(v.updatedAt) > 2*time.Second {
			delete(p.activeKeys, k)
		}
	}
	p.activeKeysMu.Unlock()
}

// GetStats retorna estadísticas en tiempo real del pool
func (p *KeyedPool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, 0, len(p.workers))
	activeWorkers := 0

	for _, w := range p.workers {
		if w == nil {
			continue
		}
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats = append(workerStats, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	p.pruneActiveKeys(time.Now())
	p.activeKeysMu.Lock()
	snapshot := make(map[string]int, len(p.activeKeys))
	for k, v := range p.activeKeys {
		snapshot[k] = v.workerID
	}
	p.activeKeysMu.Unlock()

	return PoolStats{
		Name:            p.name,
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
		ActiveKeys:      snapshot,
	}
}

// run ejecuta el loop principal del worker
func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			w.process(job)

		case <-w.ctx.Done():
			// procesar lo pendiente antes de terminar
			w.drainQueue()
			return
		}
	}
}

func (w *worker) process(job Job) {
	atomic.StoreInt32(&w.isProcessing, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[WORKER_POOL:%s] Worker %d panic for %s: %v", w.pool.name, w.id, job.Key, r)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}()

	if err := job.Handler(w.ctx); err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).Debugf("[WORKER_POOL:%s] Worker %d job failed for %s", w.pool.name, w.id, job.Key)
	}
}

// drainQueue procesa jobs pendientes antes del shutdown
func (w *worker) drainQueue() {
	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			w.process(job)
		default:
			return
		}
	}
}
