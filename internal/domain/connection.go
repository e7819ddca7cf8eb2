package domain

import (
	"fmt"
	"sort"
)

// ConnectionInfo — описание одного соединения между портами блоков.
//
// Блоки идентифицируются стабильным числовым UID, а не указателем
// на объект графа, поэтому значение можно передавать между горутинами.
type ConnectionInfo struct {
	SrcBlockUID uint64 `json:"src_block_uid"`
	SrcPort     string `json:"src_port"`
	DstBlockUID uint64 `json:"dst_block_uid"`
	DstPort     string `json:"dst_port"`
}

// String возвращает человекочитаемое представление соединения.
func (c ConnectionInfo) String() string {
	return fmt.Sprintf("%d[%s] -> %d[%s]", c.SrcBlockUID, c.SrcPort, c.DstBlockUID, c.DstPort)
}

// Touches проверяет, участвует ли блок в соединении.
func (c ConnectionInfo) Touches(uid uint64) bool {
	return c.SrcBlockUID == uid || c.DstBlockUID == uid
}

// ConnectionInfos — набор соединений без дубликатов.
//
// Порядок вставки сохраняется, но на семантику не влияет.
type ConnectionInfos []ConnectionInfo

// Contains проверяет наличие соединения в наборе.
func (c ConnectionInfos) Contains(info ConnectionInfo) bool {
	for _, existing := range c {
		if existing == info {
			return true
		}
	}
	return false
}

// Insert добавляет соединение, если его ещё нет.
func (c *ConnectionInfos) Insert(info ConnectionInfo) {
	if c.Contains(info) {
		return
	}
	*c = append(*c, info)
}

// Remove удаляет соединение из набора.
func (c *ConnectionInfos) Remove(info ConnectionInfo) {
	out := (*c)[:0]
	for _, existing := range *c {
		if existing != info {
			out = append(out, existing)
		}
	}
	*c = out
}

// Clone возвращает независимую копию набора.
func (c ConnectionInfos) Clone() ConnectionInfos {
	if c == nil {
		return nil
	}
	out := make(ConnectionInfos, len(c))
	copy(out, c)
	return out
}

// Equal сравнивает наборы без учёта порядка.
func (c ConnectionInfos) Equal(other ConnectionInfos) bool {
	return len(DiffConnectionInfos(c, other)) == 0 && len(DiffConnectionInfos(other, c)) == 0
}

// Sorted возвращает копию набора в детерминированном порядке.
func (c ConnectionInfos) Sorted() ConnectionInfos {
	out := c.Clone()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SrcBlockUID != b.SrcBlockUID {
			return a.SrcBlockUID < b.SrcBlockUID
		}
		if a.SrcPort != b.SrcPort {
			return a.SrcPort < b.SrcPort
		}
		if a.DstBlockUID != b.DstBlockUID {
			return a.DstBlockUID < b.DstBlockUID
		}
		return a.DstPort < b.DstPort
	})
	return out
}

// DiffConnectionInfos вычисляет множество in0 - in1.
//
// Результат не содержит дубликатов, даже если они были во входных данных.
func DiffConnectionInfos(in0, in1 ConnectionInfos) ConnectionInfos {
	exclude := make(map[ConnectionInfo]struct{}, len(in1))
	for _, info := range in1 {
		exclude[info] = struct{}{}
	}

	out := make(ConnectionInfos, 0)
	for _, info := range in0 {
		if _, skip := exclude[info]; skip {
			continue
		}
		exclude[info] = struct{}{}
		out = append(out, info)
	}
	return out
}
