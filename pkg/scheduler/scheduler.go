package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job - отложенная одноразовая задача. Key уникален: повторное планирование
// с тем же ключом заменяет предыдущую задачу.
type Job struct {
	Name    string          `json:"name"`
	Key     string          `json:"key"`
	RunAt   time.Time       `json:"run_at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode разбирает полезную нагрузку задачи.
func (j Job) Decode(v interface{}) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("задача %s без payload", j.Key)
	}
	return json.Unmarshal(j.Payload, v)
}

// Handler вызывается при срабатывании задачи. Доставка at-least-once,
// поэтому обработчик обязан быть идемпотентным.
type Handler func(ctx context.Context, job Job) error

// JobStore сохраняет задачи между перезапусками.
type JobStore interface {
	Save(ctx context.Context, job Job) error
	Delete(ctx context.Context, key string) error
	LoadAll(ctx context.Context) ([]Job, error)
}

type timerEntry struct {
	timer *time.Timer
	gen   uint64
}

type periodicJob struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
}

// Scheduler объединяет отложенные задачи с отменой по ключу и периодические задачи.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[string]timerEntry
	handlers map[string]Handler
	periodic []periodicJob
	gen      uint64

	store      JobStore
	retryDelay time.Duration
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создаёт планировщик. store может быть nil - тогда задачи живут только в памяти.
func New(store JobStore, retryDelay time.Duration, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		timers:     make(map[string]timerEntry),
		handlers:   make(map[string]Handler),
		store:      store,
		retryDelay: retryDelay,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnFire регистрирует обработчик для задач с указанным именем.
func (s *Scheduler) OnFire(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

// Every регистрирует периодическую задачу. Запускается в Run.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodic = append(s.periodic, periodicJob{name: name, interval: interval, fn: fn})
}

// Schedule планирует задачу name с ключом key через delay, отменяя прежнюю задачу с тем же ключом.
func (s *Scheduler) Schedule(ctx context.Context, name, key string, delay time.Duration, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать payload задачи %s: %w", key, err)
	}
	job := Job{Name: name, Key: key, RunAt: time.Now().Add(delay), Payload: raw}

	if s.store != nil {
		if err := s.store.Save(ctx, job); err != nil {
			return fmt.Errorf("не удалось сохранить задачу %s: %w", key, err)
		}
	}

	s.arm(job, delay)
	s.logger.Debug("задача запланирована", zap.String("key", key), zap.Duration("delay", delay))
	return nil
}

// Cancel отменяет задачу по ключу. Отсутствие задачи не ошибка.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	s.mu.Lock()
	if e, ok := s.timers[key]; ok {
		e.timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("не удалось удалить задачу %s: %w", key, err)
		}
	}
	return nil
}

// Pending - есть ли ожидающая задача с таким ключом.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

func (s *Scheduler) arm(job Job, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[job.Key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timers[job.Key] = timerEntry{
		gen:   gen,
		timer: time.AfterFunc(delay, func() { s.fire(job, gen) }),
	}
}

func (s *Scheduler) fire(job Job, gen uint64) {
	s.mu.Lock()
	e, ok := s.timers[job.Key]
	// задачу отменили или перепланировали, пока таймер срабатывал
	if !ok || e.gen != gen || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	delete(s.timers, job.Key)
	h := s.handlers[job.Name]
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	log := s.logger.With(zap.String("job", job.Name), zap.String("key", job.Key))
	if h == nil {
		log.Error("нет обработчика для задачи")
		return
	}

	if err := h(s.ctx, job); err != nil {
		log.Error("ошибка выполнения задачи, повтор позже", zap.Error(err), zap.Duration("retry", s.retryDelay))
		if s.ctx.Err() == nil {
			s.rearmIfIdle(job)
		}
		return
	}

	if s.store == nil {
		return
	}
	s.mu.Lock()
	_, rescheduled := s.timers[job.Key]
	s.mu.Unlock()
	if rescheduled {
		return
	}
	if err := s.store.Delete(s.ctx, job.Key); err != nil {
		log.Warn("не удалось удалить выполненную задачу", zap.Error(err))
	}
}

func (s *Scheduler) rearmIfIdle(job Job) {
	s.mu.Lock()
	_, rescheduled := s.timers[job.Key]
	s.mu.Unlock()
	if !rescheduled {
		s.arm(job, s.retryDelay)
	}
}

// Run восстанавливает сохранённые задачи, запускает периодические и блокируется до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.store != nil {
		jobs, err := s.store.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("не удалось загрузить задачи планировщика: %w", err)
		}
		for _, job := range jobs {
			s.arm(job, time.Until(job.RunAt))
		}
		s.logger.Info("восстановлены отложенные задачи", zap.Int("count", len(jobs)))
	}

	s.mu.Lock()
	periodic := append([]periodicJob(nil), s.periodic...)
	s.mu.Unlock()

	var loops sync.WaitGroup
	for _, p := range periodic {
		loops.Add(1)
		go func(p periodicJob) {
			defer loops.Done()
			s.loop(ctx, p)
		}(p)
	}

	<-ctx.Done()
	loops.Wait()
	s.Stop()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, p periodicJob) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.fn(ctx); err != nil {
				s.logger.Error("ошибка периодической задачи", zap.String("job", p.name), zap.Error(err))
			}
		}
	}
}

// Stop останавливает таймеры и ждёт выполняющиеся обработчики.
// Сохранённые задачи остаются в хранилище и будут восстановлены при следующем запуске.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for key, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, key)
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}
