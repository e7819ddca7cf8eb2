package domain

// DefaultZone — зона по умолчанию (пустое имя в блоке).
const DefaultZone = ""

// HostURILocal — окружение в текущем процессе.
const HostURILocal = "local://"

// ZoneConfig — конфигурация affinity-зоны.
//
// Зона определяет, в каком окружении создаются блоки
// и с каким пулом потоков они работают.
type ZoneConfig struct {
	// HostURI — адрес окружения: "local://" или "amqp://...".
	HostURI string `json:"hostUri"`

	// ProcessName — имя удалённого процесса (очереди) окружения.
	ProcessName string `json:"processName,omitempty"`

	// NumThreads — число потоков пула; 0 — по умолчанию.
	NumThreads int `json:"numThreads,omitempty"`

	// Priority — приоритет потоков в диапазоне [-1, 1].
	Priority float64 `json:"priority,omitempty"`

	// Affinity — список CPU/NUMA узлов.
	Affinity []int `json:"affinity,omitempty"`

	// YieldMode — "CONDITION", "HYBRID" или "SPIN".
	YieldMode string `json:"yieldMode,omitempty"`
}

// DefaultZoneConfig возвращает конфигурацию зоны по умолчанию.
func DefaultZoneConfig() ZoneConfig {
	return ZoneConfig{HostURI: HostURILocal}
}

// EnvironmentKey — часть конфигурации, влияющая на окружение.
// Изменение остальных полей требует только нового пула потоков.
func (z ZoneConfig) EnvironmentKey() string {
	return z.HostURI + "|" + z.ProcessName
}

// ThreadPoolArgs возвращает аргументы создания пула потоков.
func (z ZoneConfig) ThreadPoolArgs() map[string]any {
	args := map[string]any{
		"priority": z.Priority,
	}
	if z.NumThreads > 0 {
		args["numThreads"] = z.NumThreads
	}
	if len(z.Affinity) > 0 {
		affinity := make([]any, len(z.Affinity))
		for i, a := range z.Affinity {
			affinity[i] = a
		}
		args["affinity"] = affinity
	}
	if z.YieldMode != "" {
		args["yieldMode"] = z.YieldMode
	}
	return args
}

// Equal сравнивает конфигурации зон.
func (z ZoneConfig) Equal(other ZoneConfig) bool {
	if z.HostURI != other.HostURI || z.ProcessName != other.ProcessName ||
		z.NumThreads != other.NumThreads || z.Priority != other.Priority ||
		z.YieldMode != other.YieldMode || len(z.Affinity) != len(other.Affinity) {
		return false
	}
	for i := range z.Affinity {
		if z.Affinity[i] != other.Affinity[i] {
			return false
		}
	}
	return true
}
