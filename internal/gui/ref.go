package gui

import "weak"

// Ref — слабая ссылка на объект GUI.
//
// Ref не продлевает жизнь объекта. Value можно вызывать только
// в GUI-горутине; после удаления объекта Value возвращает nil.
type Ref[T any] struct {
	p weak.Pointer[T]
}

// NewRef создаёт слабую ссылку. Для nil возвращает пустую ссылку.
func NewRef[T any](v *T) Ref[T] {
	if v == nil {
		return Ref[T]{}
	}
	return Ref[T]{p: weak.Make(v)}
}

// Value возвращает объект или nil, если он уже удалён.
func (r Ref[T]) Value() *T {
	return r.p.Value()
}

// Same проверяет, указывают ли ссылки на один объект.
func (r Ref[T]) Same(other Ref[T]) bool {
	return r.p == other.p
}

// IsZero проверяет, пустая ли ссылка.
func (r Ref[T]) IsZero() bool {
	return r.p == weak.Pointer[T]{}
}
