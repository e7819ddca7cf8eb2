package graph

import "sync/atomic"

// Object — объект на холсте.
type Object interface {
	// ID возвращает редактируемый пользователем идентификатор.
	ID() string

	// UID возвращает числовой идентификатор экземпляра.
	// UID уникален в процессе, но не сохраняется при загрузке дизайна.
	UID() uint64
}

var uidCounter atomic.Uint64

func nextUID() uint64 {
	return uidCounter.Add(1)
}

// Breaker — именованный разрыв соединения.
//
// Входной разрыв принимает соединения, выходной их продолжает.
// Разрывы с одинаковым Node соединены невидимой линией.
type Breaker struct {
	uid     uint64
	id      string
	node    string
	isInput bool
}

// NewBreaker создаёт разрыв.
func NewBreaker(id, node string, isInput bool) *Breaker {
	return &Breaker{uid: nextUID(), id: id, node: node, isInput: isInput}
}

// ID возвращает идентификатор.
func (b *Breaker) ID() string { return b.id }

// UID возвращает числовой идентификатор.
func (b *Breaker) UID() uint64 { return b.uid }

// Node возвращает имя узла разрыва.
func (b *Breaker) Node() string { return b.node }

// IsInput возвращает true для входного разрыва.
func (b *Breaker) IsInput() bool { return b.isInput }

// Connection — соединение двух объектов на холсте.
type Connection struct {
	uid     uint64
	id      string
	src     Object
	srcPort string
	dst     Object
	dstPort string
}

// ID возвращает идентификатор.
func (c *Connection) ID() string { return c.id }

// UID возвращает числовой идентификатор.
func (c *Connection) UID() uint64 { return c.uid }

// Output возвращает источник соединения.
func (c *Connection) Output() (Object, string) { return c.src, c.srcPort }

// Input возвращает приёмник соединения.
func (c *Connection) Input() (Object, string) { return c.dst, c.dstPort }
