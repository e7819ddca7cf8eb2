package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Типы вызовов в описании блока.
const (
	CallTypeSetter      = "setter"
	CallTypeInitializer = "initializer"
)

// ModeGraphWidget — режим блока, создающего виджет на холсте.
const ModeGraphWidget = "graphWidget"

// BlockDesc — описание типа блока из реестра.
//
// Описание приходит вместе с блоком в JSON и задаёт путь фабрики,
// аргументы конструктора и вызовы (setter/initializer) с их свойствами.
type BlockDesc struct {
	// Path — путь фабрики блока в реестре, например "/blocks/multiply".
	Path string `json:"path"`

	// Name — отображаемое имя.
	Name string `json:"name,omitempty"`

	// Mode — "graphWidget" для блоков с виджетом.
	Mode string `json:"mode,omitempty"`

	// Args — ключи свойств, передаваемых в конструктор.
	Args []string `json:"args,omitempty"`

	// Calls — методы, вызываемые после конструирования.
	Calls []CallDesc `json:"calls,omitempty"`

	// Params — описание свойств.
	Params []ParamDesc `json:"params,omitempty"`
}

// CallDesc — описание одного вызова на блоке.
type CallDesc struct {
	// Type — "setter" или "initializer".
	Type string `json:"type"`

	// Name — имя метода.
	Name string `json:"name"`

	// Args — ключи свойств, передаваемых в метод.
	Args []string `json:"args,omitempty"`
}

// ParamDesc — описание свойства блока.
type ParamDesc struct {
	Key     string `json:"key"`
	Name    string `json:"name,omitempty"`
	Default string `json:"default,omitempty"`
	// DType — ожидаемый тип значения: "float", "int", "string", "bool"; пусто — любой.
	DType string `json:"dtype,omitempty"`
}

// ParseBlockDesc разбирает JSON описание блока.
func ParseBlockDesc(data []byte) (BlockDesc, error) {
	var desc BlockDesc
	if err := json.Unmarshal(data, &desc); err != nil {
		return BlockDesc{}, fmt.Errorf("parse block desc: %w", err)
	}
	if desc.Path == "" {
		return BlockDesc{}, fmt.Errorf("parse block desc: empty path")
	}
	return desc, nil
}

// IsGraphWidget проверяет, создаёт ли блок виджет на холсте.
func (d BlockDesc) IsGraphWidget() bool {
	return d.Mode == ModeGraphWidget
}

// Param возвращает описание свойства по ключу.
func (d BlockDesc) Param(key string) (ParamDesc, bool) {
	for _, p := range d.Params {
		if p.Key == key {
			return p, true
		}
	}
	return ParamDesc{}, false
}

// Clone возвращает глубокую копию описания.
func (d BlockDesc) Clone() BlockDesc {
	out := d
	out.Args = slices.Clone(d.Args)
	out.Params = slices.Clone(d.Params)
	if d.Calls != nil {
		out.Calls = make([]CallDesc, len(d.Calls))
		for i, c := range d.Calls {
			c.Args = slices.Clone(c.Args)
			out.Calls[i] = c
		}
	}
	return out
}

// PortInfo — описание порта блока.
type PortInfo struct {
	Name      string `json:"name"`
	Alias     string `json:"alias,omitempty"`
	IsSigSlot bool   `json:"isSigSlot,omitempty"`
	DType     string `json:"dtype,omitempty"`
}

// PortList — необязательный список портов.
//
// Valid=false означает "не изменилось или неизвестно",
// а не пустой список портов.
type PortList struct {
	Ports []PortInfo
	Valid bool
}

// SomePorts создаёт заполненный PortList.
func SomePorts(ports []PortInfo) PortList {
	if ports == nil {
		ports = make([]PortInfo, 0)
	}
	return PortList{Ports: ports, Valid: true}
}

// Has проверяет наличие порта с указанным именем.
func (p PortList) Has(name string) bool {
	if !p.Valid {
		return false
	}
	for _, port := range p.Ports {
		if port.Name == name {
			return true
		}
	}
	return false
}

// Clone возвращает копию списка.
func (p PortList) Clone() PortList {
	return PortList{Ports: slices.Clone(p.Ports), Valid: p.Valid}
}

// BlockStatus — результат вычисления блока для отображения в GUI.
type BlockStatus struct {
	// PropertyTypeInfos — тип вычисленного значения по ключу свойства.
	PropertyTypeInfos map[string]string

	// PropertyErrorMsgs — ошибка вычисления по ключу свойства.
	PropertyErrorMsgs map[string]string

	// BlockErrorMsgs — ошибки уровня блока (конструктор, setter, окружение).
	BlockErrorMsgs []string

	// InPortDesc и OutPortDesc — порты; Valid=false означает "без изменений".
	InPortDesc  PortList
	OutPortDesc PortList

	// OverlayDesc — JSON описание временной аннотации блока.
	OverlayDesc json.RawMessage

	// OverlayExpired — момент, после которого overlay нужно перезапросить.
	OverlayExpired time.Time
}

// NewBlockStatus создаёт пустой статус.
func NewBlockStatus() BlockStatus {
	return BlockStatus{
		PropertyTypeInfos: make(map[string]string),
		PropertyErrorMsgs: make(map[string]string),
	}
}

// HasErrors проверяет наличие любых ошибок.
func (s BlockStatus) HasErrors() bool {
	return len(s.BlockErrorMsgs) > 0 || len(s.PropertyErrorMsgs) > 0
}

// Clone возвращает глубокую копию статуса.
func (s BlockStatus) Clone() BlockStatus {
	out := BlockStatus{
		PropertyTypeInfos: make(map[string]string, len(s.PropertyTypeInfos)),
		PropertyErrorMsgs: make(map[string]string, len(s.PropertyErrorMsgs)),
		BlockErrorMsgs:    slices.Clone(s.BlockErrorMsgs),
		InPortDesc:        s.InPortDesc.Clone(),
		OutPortDesc:       s.OutPortDesc.Clone(),
		OverlayDesc:       slices.Clone(s.OverlayDesc),
		OverlayExpired:    s.OverlayExpired,
	}
	for k, v := range s.PropertyTypeInfos {
		out.PropertyTypeInfos[k] = v
	}
	for k, v := range s.PropertyErrorMsgs {
		out.PropertyErrorMsgs[k] = v
	}
	return out
}
