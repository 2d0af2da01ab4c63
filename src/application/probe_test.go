package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"nesventory-vision/src/domain"
)

func newTestProbe() *CapabilityProbe {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewCapabilityProbe(log)
}

func TestProbeMemoizesVerdict(t *testing.T) {
	probe := newTestProbe()

	var calls int32
	probe.Register(domain.CapabilityDetector, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx := context.Background()
	assert.True(t, probe.Available(ctx, domain.CapabilityDetector))
	assert.True(t, probe.Available(ctx, domain.CapabilityDetector))
	assert.True(t, probe.Available(ctx, domain.CapabilityDetector))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "проверка должна выполняться один раз")
}

func TestProbeFailureIsPermanentUntilInvalidate(t *testing.T) {
	probe := newTestProbe()

	available := false
	probe.Register(domain.CapabilityEmbedder, func(ctx context.Context) error {
		if !available {
			return errors.New("модель не загружена")
		}
		return nil
	})

	ctx := context.Background()
	status := probe.Probe(ctx, domain.CapabilityEmbedder)
	assert.False(t, status.Available)
	assert.Equal(t, "модель не загружена", status.Reason)

	// Возможность стала доступной, но вердикт запомнен.
	available = true
	assert.False(t, probe.Available(ctx, domain.CapabilityEmbedder))

	// Явный сброс перепроверяет.
	probe.Invalidate(domain.CapabilityEmbedder)
	assert.True(t, probe.Available(ctx, domain.CapabilityEmbedder))
}

func TestProbeUnregisteredCapability(t *testing.T) {
	probe := newTestProbe()

	status := probe.Probe(context.Background(), domain.Capability("unknown"))
	assert.False(t, status.Available)
	assert.NotEmpty(t, status.Reason)
}

func TestProbeRecoversFromPanic(t *testing.T) {
	probe := newTestProbe()
	probe.Register(domain.CapabilityOCR, func(ctx context.Context) error {
		panic("сломанный движок")
	})

	assert.NotPanics(t, func() {
		status := probe.Probe(context.Background(), domain.CapabilityOCR)
		assert.False(t, status.Available)
		assert.Contains(t, status.Reason, "сломанный движок")
	})
}

func TestProbeConcurrentFirstUse(t *testing.T) {
	probe := newTestProbe()

	var calls int32
	probe.Register(domain.CapabilityCaptioner, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probe.Available(context.Background(), domain.CapabilityCaptioner)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "конкурентные первые обращения делят одну проверку")
}

func TestProbeReport(t *testing.T) {
	probe := newTestProbe()
	probe.Register(domain.CapabilityDetector, func(ctx context.Context) error { return nil })
	probe.Register(domain.CapabilityOCR, func(ctx context.Context) error {
		return errors.New("tesseract не найден")
	})

	report := probe.Report(context.Background())

	assert.Len(t, report, 2)
	assert.True(t, report[domain.CapabilityDetector].Available)
	assert.False(t, report[domain.CapabilityOCR].Available)
	assert.Equal(t, "tesseract не найден", report[domain.CapabilityOCR].Reason)
}
