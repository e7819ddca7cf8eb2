package graph

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// Constant — именованное выражение, доступное свойствам блоков.
type Constant struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// Document — один дизайн: объекты холста, константы и зоны.
//
// Document принадлежит GUI-горутине и не потокобезопасен.
type Document struct {
	id        uuid.UUID
	objects   []Object
	constants []Constant
	zones     map[string]domain.ZoneConfig
}

// NewDocument создаёт пустой документ с зоной по умолчанию.
func NewDocument(id uuid.UUID) *Document {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Document{
		id: id,
		zones: map[string]domain.ZoneConfig{
			domain.DefaultZone: domain.DefaultZoneConfig(),
		},
	}
}

// ID возвращает идентификатор документа.
func (d *Document) ID() uuid.UUID {
	return d.id
}

// SetID задаёт идентификатор документа, например при перезагрузке дизайна
// без собственного id.
func (d *Document) SetID(id uuid.UUID) {
	if id != uuid.Nil {
		d.id = id
	}
}

// AddBlock добавляет блок.
func (d *Document) AddBlock(id string, desc domain.BlockDesc) (*Block, error) {
	if _, err := d.Find(id); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	b := NewBlock(id, desc)
	d.objects = append(d.objects, b)
	return b, nil
}

// AddBreaker добавляет разрыв.
func (d *Document) AddBreaker(id, node string, isInput bool) (*Breaker, error) {
	if _, err := d.Find(id); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	b := NewBreaker(id, node, isInput)
	d.objects = append(d.objects, b)
	return b, nil
}

// Connect соединяет выход src со входом dst.
func (d *Document) Connect(src Object, srcPort string, dst Object, dstPort string) (*Connection, error) {
	switch s := src.(type) {
	case *Block:
	case *Breaker:
		if s.IsInput() {
			return nil, fmt.Errorf("%w: %s is an input breaker", ErrInvalidEndpoint, s.ID())
		}
	default:
		return nil, fmt.Errorf("%w: source %T", ErrInvalidEndpoint, src)
	}
	switch t := dst.(type) {
	case *Block:
	case *Breaker:
		if !t.IsInput() {
			return nil, fmt.Errorf("%w: %s is an output breaker", ErrInvalidEndpoint, t.ID())
		}
	default:
		return nil, fmt.Errorf("%w: destination %T", ErrInvalidEndpoint, dst)
	}

	c := &Connection{
		uid:     nextUID(),
		id:      fmt.Sprintf("%s[%s]->%s[%s]", src.ID(), srcPort, dst.ID(), dstPort),
		src:     src,
		srcPort: srcPort,
		dst:     dst,
		dstPort: dstPort,
	}
	d.objects = append(d.objects, c)
	return c, nil
}

// Remove удаляет объект по ID. Вместе с блоком или разрывом
// удаляются все его соединения.
func (d *Document) Remove(id string) error {
	target, err := d.Find(id)
	if err != nil {
		return err
	}

	kept := d.objects[:0]
	for _, obj := range d.objects {
		if obj == target {
			continue
		}
		if c, ok := obj.(*Connection); ok && (c.src == target || c.dst == target) {
			continue
		}
		kept = append(kept, obj)
	}
	d.objects = kept
	return nil
}

// Find возвращает объект по ID.
func (d *Document) Find(id string) (Object, error) {
	for _, obj := range d.objects {
		if obj.ID() == id {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
}

// Objects возвращает все объекты.
func (d *Document) Objects() []Object {
	out := make([]Object, len(d.objects))
	copy(out, d.objects)
	return out
}

// Blocks возвращает блоки.
func (d *Document) Blocks() []*Block {
	var blocks []*Block
	for _, obj := range d.objects {
		if b, ok := obj.(*Block); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// SetConstant задаёт выражение константы. Новая константа добавляется в конец.
func (d *Document) SetConstant(name, expr string) {
	for i, c := range d.constants {
		if c.Name == name {
			d.constants[i].Expr = expr
			return
		}
	}
	d.constants = append(d.constants, Constant{Name: name, Expr: expr})
}

// RemoveConstant удаляет константу.
func (d *Document) RemoveConstant(name string) {
	for i, c := range d.constants {
		if c.Name == name {
			d.constants = append(d.constants[:i], d.constants[i+1:]...)
			return
		}
	}
}

// Constants возвращает константы в порядке объявления.
func (d *Document) Constants() []Constant {
	out := make([]Constant, len(d.constants))
	copy(out, d.constants)
	return out
}

// SetZone задаёт конфигурацию зоны.
func (d *Document) SetZone(name string, cfg domain.ZoneConfig) {
	d.zones[name] = cfg
}

// RemoveZone удаляет зону. Зону по умолчанию удалить нельзя.
func (d *Document) RemoveZone(name string) {
	if name == domain.DefaultZone {
		return
	}
	delete(d.zones, name)
}

// Zones возвращает копию конфигурации зон.
func (d *Document) Zones() map[string]domain.ZoneConfig {
	out := make(map[string]domain.ZoneConfig, len(d.zones))
	for k, v := range d.zones {
		out[k] = v
	}
	return out
}

// ZoneNames возвращает имена зон по алфавиту.
func (d *Document) ZoneNames() []string {
	names := make([]string, 0, len(d.zones))
	for name := range d.zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
