package graph

import (
	"encoding/json"
	"slices"
	"sort"
	"time"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// Block — блок на холсте.
type Block struct {
	uid        uint64
	id         string
	desc       domain.BlockDesc
	enabled    bool
	zone       string
	properties map[string]string

	status  domain.BlockStatus
	inputs  []domain.PortInfo
	outputs []domain.PortInfo
	overlay json.RawMessage
	expires time.Time
	widget  any
	changed int
}

// NewBlock создаёт блок со значениями свойств по умолчанию.
func NewBlock(id string, desc domain.BlockDesc) *Block {
	b := &Block{
		uid:        nextUID(),
		id:         id,
		desc:       desc.Clone(),
		enabled:    true,
		properties: make(map[string]string, len(desc.Params)),
		status:     domain.NewBlockStatus(),
	}
	for _, p := range desc.Params {
		b.properties[p.Key] = p.Default
	}
	return b
}

// ID возвращает идентификатор.
func (b *Block) ID() string { return b.id }

// UID возвращает числовой идентификатор.
func (b *Block) UID() uint64 { return b.uid }

// SetID меняет идентификатор.
func (b *Block) SetID(id string) {
	b.id = id
	b.changed++
}

// Desc возвращает описание блока.
func (b *Block) Desc() domain.BlockDesc { return b.desc }

// IsGraphWidget проверяет, создаёт ли блок виджет на холсте.
func (b *Block) IsGraphWidget() bool { return b.desc.IsGraphWidget() }

// Enabled возвращает признак включённого блока.
func (b *Block) Enabled() bool { return b.enabled }

// SetEnabled включает или выключает блок.
func (b *Block) SetEnabled(enabled bool) {
	b.enabled = enabled
	b.changed++
}

// AffinityZone возвращает имя зоны блока.
func (b *Block) AffinityZone() string { return b.zone }

// SetAffinityZone назначает зону.
func (b *Block) SetAffinityZone(zone string) {
	b.zone = zone
	b.changed++
}

// Property возвращает выражение свойства.
func (b *Block) Property(key string) string { return b.properties[key] }

// SetProperty задаёт выражение свойства.
func (b *Block) SetProperty(key, expr string) {
	b.properties[key] = expr
	b.changed++
}

// PropertyKeys возвращает ключи свойств в порядке описания,
// затем остальные по алфавиту.
func (b *Block) PropertyKeys() []string {
	keys := make([]string, 0, len(b.properties))
	seen := make(map[string]bool, len(b.properties))
	for _, p := range b.desc.Params {
		if _, ok := b.properties[p.Key]; ok && !seen[p.Key] {
			keys = append(keys, p.Key)
			seen[p.Key] = true
		}
	}
	var rest []string
	for k := range b.properties {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Properties возвращает копию выражений свойств.
func (b *Block) Properties() map[string]string {
	out := make(map[string]string, len(b.properties))
	for k, v := range b.properties {
		out[k] = v
	}
	return out
}

// Generation возвращает счётчик изменений блока.
func (b *Block) Generation() int { return b.changed }

// ApplyStatus применяет результат вычисления.
// Порты обновляются, только если статус их содержит.
func (b *Block) ApplyStatus(status domain.BlockStatus) {
	b.status = status.Clone()
	if status.InPortDesc.Valid {
		b.inputs = slices.Clone(status.InPortDesc.Ports)
	}
	if status.OutPortDesc.Valid {
		b.outputs = slices.Clone(status.OutPortDesc.Ports)
	}
	if len(status.OverlayDesc) > 0 {
		b.overlay = slices.Clone(status.OverlayDesc)
		b.expires = status.OverlayExpired
	}
}

// Status возвращает последний применённый статус.
func (b *Block) Status() domain.BlockStatus { return b.status }

// PropertyTypeInfo возвращает тип вычисленного свойства.
func (b *Block) PropertyTypeInfo(key string) string { return b.status.PropertyTypeInfos[key] }

// PropertyErrorMsg возвращает ошибку вычисления свойства.
func (b *Block) PropertyErrorMsg(key string) string { return b.status.PropertyErrorMsgs[key] }

// BlockErrorMsgs возвращает ошибки уровня блока.
func (b *Block) BlockErrorMsgs() []string { return slices.Clone(b.status.BlockErrorMsgs) }

// HasErrors проверяет наличие ошибок в последнем статусе.
func (b *Block) HasErrors() bool { return b.status.HasErrors() }

// InputPorts возвращает последние известные входные порты.
func (b *Block) InputPorts() []domain.PortInfo { return slices.Clone(b.inputs) }

// OutputPorts возвращает последние известные выходные порты.
func (b *Block) OutputPorts() []domain.PortInfo { return slices.Clone(b.outputs) }

// Overlay возвращает описание overlay и время его устаревания.
func (b *Block) Overlay() (json.RawMessage, time.Time) { return b.overlay, b.expires }

// Widget возвращает виджет блока, созданный при вычислении.
func (b *Block) Widget() any { return b.widget }

// SetWidget назначает виджет блока.
func (b *Block) SetWidget(w any) { b.widget = w }
