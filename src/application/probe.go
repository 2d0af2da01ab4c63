package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"nesventory-vision/src/domain"
)

// ProbeStatus итог проверки одной возможности.
type ProbeStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"` // причина недоступности, пусто если доступна
}

// CapabilityProbe проверяет доступность опциональных возможностей
// конвейера. Вердикт каждой проверки запоминается: возможность,
// не загрузившаяся один раз, считается недоступной до явного сброса.
// Отсутствие возможности — ожидаемое состояние, а не сбой: Probe
// никогда не паникует и не возвращает ошибку вызывающему.
type CapabilityProbe struct {
	log *logrus.Logger

	mu      sync.Mutex
	checks  map[domain.Capability]func(ctx context.Context) error
	results map[domain.Capability]ProbeStatus
}

// NewCapabilityProbe создаёт проверку возможностей.
func NewCapabilityProbe(log *logrus.Logger) *CapabilityProbe {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CapabilityProbe{
		log:     log,
		checks:  make(map[domain.Capability]func(ctx context.Context) error),
		results: make(map[domain.Capability]ProbeStatus),
	}
}

// Register регистрирует проверку возможности. Проверка выполняется
// при первом обращении, её итог запоминается.
func (p *CapabilityProbe) Register(capability domain.Capability, check func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[capability] = check
}

// Probe возвращает вердикт по возможности, выполняя проверку при
// первом обращении. Конкурентные первые обращения ждут одну общую
// проверку вместо того, чтобы запускать свои.
func (p *CapabilityProbe) Probe(ctx context.Context, capability domain.Capability) ProbeStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	if status, ok := p.results[capability]; ok {
		return status
	}

	check, ok := p.checks[capability]
	if !ok {
		status := ProbeStatus{Available: false, Reason: "возможность не зарегистрирована"}
		p.results[capability] = status
		p.emit(capability, status)
		return status
	}

	status := ProbeStatus{Available: true}
	if err := p.runCheck(ctx, check); err != nil {
		status = ProbeStatus{Available: false, Reason: err.Error()}
	}

	p.results[capability] = status
	p.emit(capability, status)
	return status
}

// runCheck выполняет проверку, преобразуя панику в обычную
// недоступность.
func (p *CapabilityProbe) runCheck(ctx context.Context, check func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника при проверке возможности: %v", r)
		}
	}()
	return check(ctx)
}

// emit пишет диагностическую запись о вердикте.
func (p *CapabilityProbe) emit(capability domain.Capability, status ProbeStatus) {
	entry := p.log.WithFields(logrus.Fields{
		"capability": string(capability),
		"available":  status.Available,
	})
	if status.Available {
		entry.Info("Возможность доступна")
	} else {
		entry.WithField("reason", status.Reason).Warn("Возможность недоступна")
	}
}

// Available сообщает, доступна ли возможность.
func (p *CapabilityProbe) Available(ctx context.Context, capability domain.Capability) bool {
	return p.Probe(ctx, capability).Available
}

// Invalidate сбрасывает запомненный вердикт. Используется после
// явного перестроения каталожного индекса.
func (p *CapabilityProbe) Invalidate(capability domain.Capability) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.results, capability)
}

// Report возвращает вердикты по всем зарегистрированным возможностям
// для эндпоинтов здоровья и наблюдаемости.
func (p *CapabilityProbe) Report(ctx context.Context) map[domain.Capability]ProbeStatus {
	p.mu.Lock()
	capabilities := make([]domain.Capability, 0, len(p.checks))
	for capability := range p.checks {
		capabilities = append(capabilities, capability)
	}
	p.mu.Unlock()

	report := make(map[domain.Capability]ProbeStatus, len(capabilities))
	for _, capability := range capabilities {
		report[capability] = p.Probe(ctx, capability)
	}
	return report
}
