package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
)

// DescLookup возвращает описание блока по пути.
type DescLookup func(path string) (domain.BlockDesc, error)

type designFile struct {
	ID          string                       `json:"id,omitempty"`
	Constants   []Constant                   `json:"constants,omitempty"`
	Zones       map[string]domain.ZoneConfig `json:"zones,omitempty"`
	Blocks      []designBlock                `json:"blocks"`
	Breakers    []designBreaker              `json:"breakers,omitempty"`
	Connections []designConnection           `json:"connections,omitempty"`
}

type designBlock struct {
	ID         string            `json:"id"`
	Path       string            `json:"path,omitempty"`
	Desc       *domain.BlockDesc `json:"desc,omitempty"`
	Enabled    *bool             `json:"enabled,omitempty"`
	Zone       string            `json:"zone,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type designBreaker struct {
	ID    string `json:"id"`
	Node  string `json:"node"`
	Input bool   `json:"input"`
}

type designConnection struct {
	Src     string `json:"src"`
	SrcPort string `json:"srcPort"`
	Dst     string `json:"dst"`
	DstPort string `json:"dstPort"`
}

// LoadDocument читает дизайн в формате JSON.
// lookup используется для блоков, заданных только путём; nil, если описание из одного пути.
func LoadDocument(r io.Reader, lookup DescLookup) (*Document, error) {
	var design designFile
	if err := json.NewDecoder(r).Decode(&design); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDesign, err)
	}
	return design.build(lookup)
}

// ParseDocument разбирает дамп, полученный из Dump.
func ParseDocument(data []byte, lookup DescLookup) (*Document, error) {
	var design designFile
	if err := json.Unmarshal(data, &design); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDesign, err)
	}
	return design.build(lookup)
}

func (f designFile) build(lookup DescLookup) (*Document, error) {
	id := uuid.Nil
	if f.ID != "" {
		parsed, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: document id: %v", ErrInvalidDesign, err)
		}
		id = parsed
	}

	doc := NewDocument(id)
	for _, c := range f.Constants {
		doc.SetConstant(c.Name, c.Expr)
	}
	for name, cfg := range f.Zones {
		doc.SetZone(name, cfg)
	}

	for _, db := range f.Blocks {
		desc, err := db.resolveDesc(lookup)
		if err != nil {
			return nil, err
		}
		b, err := doc.AddBlock(db.ID, desc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDesign, err)
		}
		if db.Enabled != nil {
			b.SetEnabled(*db.Enabled)
		}
		b.SetAffinityZone(db.Zone)
		for k, v := range db.Properties {
			b.SetProperty(k, v)
		}
	}

	for _, br := range f.Breakers {
		if _, err := doc.AddBreaker(br.ID, br.Node, br.Input); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDesign, err)
		}
	}

	for _, dc := range f.Connections {
		src, err := doc.Find(dc.Src)
		if err != nil {
			return nil, fmt.Errorf("%w: connection source: %v", ErrInvalidDesign, err)
		}
		dst, err := doc.Find(dc.Dst)
		if err != nil {
			return nil, fmt.Errorf("%w: connection destination: %v", ErrInvalidDesign, err)
		}
		if _, err := doc.Connect(src, dc.SrcPort, dst, dc.DstPort); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDesign, err)
		}
	}

	return doc, nil
}

func (b designBlock) resolveDesc(lookup DescLookup) (domain.BlockDesc, error) {
	if b.Desc != nil {
		return *b.Desc, nil
	}
	if b.Path == "" {
		return domain.BlockDesc{}, fmt.Errorf("%w: block %s has neither path nor desc", ErrInvalidDesign, b.ID)
	}
	if lookup == nil {
		return domain.BlockDesc{Path: b.Path}, nil
	}
	desc, err := lookup(b.Path)
	if err != nil {
		return domain.BlockDesc{}, fmt.Errorf("%w: block %s: %v", ErrInvalidDesign, b.ID, err)
	}
	return desc, nil
}

// Dump сериализует документ в формат дизайна.
func (d *Document) Dump() ([]byte, error) {
	design := designFile{
		ID:        d.id.String(),
		Constants: d.Constants(),
		Zones:     d.Zones(),
		Blocks:    []designBlock{},
	}

	for _, obj := range d.objects {
		switch o := obj.(type) {
		case *Block:
			desc := o.Desc()
			enabled := o.Enabled()
			design.Blocks = append(design.Blocks, designBlock{
				ID:         o.ID(),
				Desc:       &desc,
				Enabled:    &enabled,
				Zone:       o.AffinityZone(),
				Properties: o.Properties(),
			})
		case *Breaker:
			design.Breakers = append(design.Breakers, designBreaker{ID: o.ID(), Node: o.Node(), Input: o.IsInput()})
		case *Connection:
			src, srcPort := o.Output()
			dst, dstPort := o.Input()
			design.Connections = append(design.Connections, designConnection{
				Src: src.ID(), SrcPort: srcPort, Dst: dst.ID(), DstPort: dstPort,
			})
		}
	}

	data, err := json.MarshalIndent(design, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("dump document: %w", err)
	}
	return data, nil
}
