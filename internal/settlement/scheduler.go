package settlement

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultProcessorInterval = time.Minute
	DefaultRecoveryInterval  = 5 * time.Minute
)

// Scheduler запускает Processor и Recovery по своим таймерам. Проходы
// одного вида не пересекаются, проходы разных видов могут идти параллельно.
type Scheduler struct {
	Settler           *Settler
	ProcessorInterval time.Duration
	RecoveryInterval  time.Duration
}

// Run блокируется до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop(ctx, orDefault(s.ProcessorInterval, DefaultProcessorInterval), s.Settler.RunProcessor)
	})
	g.Go(func() error {
		return s.loop(ctx, orDefault(s.RecoveryInterval, DefaultRecoveryInterval), s.Settler.RunRecovery)
	})
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, sweep func(context.Context) (Report, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Ошибка прохода уже залогирована, следующий тик повторит работу.
			_, _ = sweep(ctx)
		}
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
