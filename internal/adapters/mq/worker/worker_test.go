package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/teambalance/internal/adapters/mq/worker"
	model "github.com/okian/teambalance/internal/domain/model"
	logging "github.com/okian/teambalance/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs      chan worker.Job
	closeOnce sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan worker.Job, 64)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan worker.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(guild string) model.Job {
	j := model.NewJob(guild, model.ReasonManual)
	mq.jobs <- j
	return j
}

type recorder struct {
	mu     sync.Mutex
	seen   map[string]int
	errors map[string]error
	delay  time.Duration
}

func newRecorder() *recorder {
	return &recorder{seen: map[string]int{}, errors: map[string]error{}}
}

func (r *recorder) ProcessJob(ctx context.Context, job worker.Job) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errors[job.GuildID]; ok {
		return err
	}
	r.seen[job.GuildID]++
	return nil
}

func (r *recorder) count(guild string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[guild]
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		// Initialize logging for tests
		_ = logging.Init()

		queue := newMockQueue()
		proc := newRecorder()
		w := worker.NewInMemoryWorker(queue, proc, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job arrives", func() {
			queue.add("guild-1")

			convey.Convey("Then the processor sees it", func() {
				convey.So(eventually(func() bool { return proc.count("guild-1") == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a job fails", func() {
			proc.mu.Lock()
			proc.errors["bad"] = errors.New("boom")
			proc.mu.Unlock()
			queue.add("bad")
			queue.add("good")

			convey.Convey("Then the worker keeps going", func() {
				convey.So(eventually(func() bool { return proc.count("good") == 1 }), convey.ShouldBeTrue)
				convey.So(proc.count("bad"), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully and a second call is harmless", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker with a job timeout", t, func() {
		_ = logging.Init()

		queue := newMockQueue()
		proc := newRecorder()
		proc.delay = time.Second
		done := make(chan error, 1)
		w := worker.NewInMemoryWorker(queue, worker.ProcessorFunc(func(ctx context.Context, job worker.Job) error {
			err := proc.ProcessJob(ctx, job)
			done <- err
			return err
		}), worker.WithJobTimeout(20*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		queue.add("slow")

		convey.Convey("Then the job context expires", func() {
			select {
			case err := <-done:
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			case <-time.After(2 * time.Second):
				t.Fatal("job did not time out")
			}
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a started pool", t, func() {
		_ = logging.Init()

		queue := newMockQueue()
		proc := newRecorder()
		pool := worker.NewPool(3, queue, proc)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When many jobs arrive", func() {
			for i := 0; i < 30; i++ {
				queue.add("guild-1")
			}

			convey.Convey("Then each is processed exactly once", func() {
				convey.So(eventually(func() bool { return proc.count("guild-1") == 30 }), convey.ShouldBeTrue)
				convey.So(eventually(func() bool { return pool.Busy() == 0 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully", func() {
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				pool.Stop()
			})
		})
	})

	convey.Convey("Given a pool with a default size", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), newRecorder())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
