package eval

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/graph"
	"github.com/shaiso/Flowgraph/internal/gui"
)

// BlockInfo — снимок блока графа для вычисления.
//
// Снимок не меняется после создания. Block — слабая ссылка на объект
// графа; разыменовывается только в GUI-горутине.
type BlockInfo struct {
	Block         gui.Ref[graph.Block]
	IsGraphWidget bool
	ID            string
	UID           uint64
	Enabled       bool
	Zone          string
	Properties    map[string]string
	ConstantNames []string // порядок объявления
	Constants     map[string]string
	ParamDescs    map[string]domain.ParamDesc
	Desc          domain.BlockDesc
}

// BlockInfoOf делает снимок блока. Вызывается в GUI-горутине.
func BlockInfoOf(b *graph.Block, constants []graph.Constant) BlockInfo {
	desc := b.Desc()
	info := BlockInfo{
		Block:         gui.NewRef(b),
		IsGraphWidget: b.IsGraphWidget(),
		ID:            b.ID(),
		UID:           b.UID(),
		Enabled:       b.Enabled(),
		Zone:          b.AffinityZone(),
		Properties:    b.Properties(),
		ConstantNames: make([]string, 0, len(constants)),
		Constants:     make(map[string]string, len(constants)),
		ParamDescs:    make(map[string]domain.ParamDesc, len(desc.Params)),
		Desc:          desc.Clone(),
	}
	for _, c := range constants {
		info.ConstantNames = append(info.ConstantNames, c.Name)
		info.Constants[c.Name] = c.Expr
	}
	for _, p := range desc.Params {
		info.ParamDescs[p.Key] = p
	}
	return info
}

// PropertyKeys возвращает ключи свойств по алфавиту.
func (i BlockInfo) PropertyKeys() []string {
	keys := make([]string, 0, len(i.Properties))
	for k := range i.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DType возвращает ожидаемый тип свойства.
func (i BlockInfo) DType(key string) string {
	return i.ParamDescs[key].DType
}

// descJSON возвращает описание блока для evalBlock.
func (i BlockInfo) descJSON() (string, error) {
	data, err := json.Marshal(i.Desc)
	if err != nil {
		return "", fmt.Errorf("marshal block desc: %w", err)
	}
	return string(data), nil
}

// parsePorts разбирает ответ inputPortInfo/outputPortInfo.
func parsePorts(result any) (domain.PortList, error) {
	items, ok := result.([]any)
	if !ok {
		if result == nil {
			return domain.SomePorts(nil), nil
		}
		return domain.PortList{}, fmt.Errorf("expected port list, got %T", result)
	}

	ports := make([]domain.PortInfo, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return domain.PortList{}, fmt.Errorf("expected port object, got %T", item)
		}
		name, ok := m["name"].(string)
		if !ok {
			return domain.PortList{}, fmt.Errorf("port without name: %v", m)
		}
		port := domain.PortInfo{Name: name}
		port.Alias, _ = m["alias"].(string)
		port.IsSigSlot, _ = m["isSigSlot"].(bool)
		port.DType, _ = m["dtype"].(string)
		ports = append(ports, port)
	}
	return domain.SomePorts(ports), nil
}
