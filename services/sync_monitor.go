package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// DefaultMaxSyncAttempts -> batas percobaan sebelum pemanggilan yang gagal
// dibuang dari antrian
const DefaultMaxSyncAttempts = 5

// SyncMetrics menyimpan metrik sinkronisasi denah ke database
type SyncMetrics struct {
	TotalFailures int64      `json:"total_failures"`
	Retried       int64      `json:"retried"`
	Dropped       int64      `json:"dropped"`
	Pending       int        `json:"pending"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
}

// RetryJob adalah satu pemanggilan table service yang gagal
type RetryJob struct {
	FloorID   uint      `json:"floor_id"`
	Op        string    `json:"op"`
	TableIDs  []uint    `json:"table_ids"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	FailedAt  time.Time `json:"failed_at"`
}

func (j RetryJob) key() string {
	return fmt.Sprintf("%d|%s|%v", j.FloorID, j.Op, j.TableIDs)
}

// Retrier -> pengulang pemanggilan yang gagal (diimplementasikan FloorService)
type Retrier interface {
	Retry(ctx context.Context, floorID uint, op string, tableIDs []uint) error
}

// SyncMonitor menampung pemanggilan yang gagal dan mencobanya lagi secara
// berkala. Sebuah retry yang gagal lagi kembali masuk lewat Report.
type SyncMonitor struct {
	maxAttempts int
	now         func() time.Time

	mutex    sync.Mutex
	queue    []RetryJob
	queued   map[string]int
	retrying map[string]int
	metrics  SyncMetrics
}

func NewSyncMonitor(maxAttempts int) *SyncMonitor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSyncAttempts
	}
	return &SyncMonitor{
		maxAttempts: maxAttempts,
		now:         time.Now,
		queued:      make(map[string]int),
		retrying:    make(map[string]int),
	}
}

// Report menambahkan kegagalan ke antrian retry. Cocok dipasang sebagai
// floorplan.Options.OnFailure.
func (sm *SyncMonitor) Report(floorID uint, failure *floorplan.PersistenceFailure) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	now := sm.now()
	sm.metrics.TotalFailures++
	sm.metrics.LastFailureAt = &now

	job := RetryJob{
		FloorID:   floorID,
		Op:        failure.Op,
		TableIDs:  append([]uint(nil), failure.TableIDs...),
		LastError: failure.Err.Error(),
		FailedAt:  now,
	}
	key := job.key()

	// Sudah ada di antrian: cukup perbarui error terakhir
	if idx, ok := sm.queued[key]; ok {
		sm.queue[idx].LastError = job.LastError
		sm.queue[idx].FailedAt = now
		return
	}

	job.Attempts = sm.retrying[key] + 1
	delete(sm.retrying, key)
	if job.Attempts > sm.maxAttempts {
		sm.metrics.Dropped++
		utils.ErrorLogger.Errorf("Giving up on %s for tables %v on floor %d after %d attempts: %s",
			job.Op, job.TableIDs, job.FloorID, job.Attempts-1, job.LastError)
		return
	}

	sm.queued[key] = len(sm.queue)
	sm.queue = append(sm.queue, job)
	utils.InfoLogger.Printf("Added %s for tables %v on floor %d to retry queue (attempt %d)",
		job.Op, job.TableIDs, job.FloorID, job.Attempts)
}

// RetryPending mengosongkan antrian dan mencoba ulang setiap job. Dipanggil
// oleh cron di main.go. Jumlah job yang dicoba ulang dikembalikan.
func (sm *SyncMonitor) RetryPending(ctx context.Context, r Retrier) int {
	sm.mutex.Lock()
	if len(sm.queue) == 0 {
		sm.mutex.Unlock()
		return 0
	}
	jobs := sm.queue
	sm.queue = nil
	sm.queued = make(map[string]int)
	// Retry sweep sebelumnya yang tidak gagal lagi dianggap berhasil
	sm.retrying = make(map[string]int, len(jobs))
	for _, job := range jobs {
		sm.retrying[job.key()] = job.Attempts
	}
	sm.mutex.Unlock()

	utils.InfoLogger.Printf("Processing sync retry queue with %d jobs", len(jobs))

	retried := 0
	for _, job := range jobs {
		err := r.Retry(ctx, job.FloorID, job.Op, job.TableIDs)
		if err == nil {
			retried++
			continue
		}

		sm.mutex.Lock()
		delete(sm.retrying, job.key())
		sm.mutex.Unlock()

		if errors.Is(err, ErrFloorNotActive) || errors.Is(err, floorplan.ErrTableNotFound) {
			// Floor sudah ditutup atau meja sudah dihapus
			utils.InfoLogger.Printf("Dropping %s for tables %v on floor %d: %v", job.Op, job.TableIDs, job.FloorID, err)
			sm.mutex.Lock()
			sm.metrics.Dropped++
			sm.mutex.Unlock()
			continue
		}
		utils.ErrorLogger.Errorf("Error retrying %s for tables %v: %v", job.Op, job.TableIDs, err)
	}

	sm.mutex.Lock()
	sm.metrics.Retried += int64(retried)
	sm.mutex.Unlock()
	return retried
}

// Pending mengembalikan salinan antrian retry saat ini
func (sm *SyncMonitor) Pending() []RetryJob {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	out := make([]RetryJob, len(sm.queue))
	copy(out, sm.queue)
	return out
}

// GetMetrics mengembalikan metrik sinkronisasi saat ini
func (sm *SyncMonitor) GetMetrics() SyncMetrics {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	m := sm.metrics
	m.Pending = len(sm.queue)
	return m
}
