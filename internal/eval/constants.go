package eval

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// maxConstantDepth — максимальная глубина цепочки констант.
const maxConstantDepth = 64

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

type identVisitor struct {
	names []string
}

func (v *identVisitor) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.IdentifierNode); ok {
		v.names = append(v.names, n.Value)
	}
}

// identifiers возвращает имена, на которые ссылается выражение.
// Если выражение не разбирается, имена ищутся по тексту.
func identifiers(src string) []string {
	tree, err := parser.Parse(src)
	if err != nil {
		return identRe.FindAllString(src, -1)
	}
	v := &identVisitor{}
	ast.Walk(&tree.Node, v)
	return v.names
}

// ConstantsUsed возвращает константы, от которых зависит выражение,
// прямо или через другие константы, в порядке объявления names.
//
// Результат конечен при любых ссылках между константами. Цикл
// возвращается как ErrConstantCycle вместе с найденными константами.
func ConstantsUsed(src string, names []string, constants map[string]string) ([]string, error) {
	used := make(map[string]bool)
	var firstErr error

	var visit func(expr string, stack []string)
	visit = func(expr string, stack []string) {
		if len(stack) > maxConstantDepth {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s", ErrConstantDepth, strings.Join(stack, " -> "))
			}
			return
		}
		for _, id := range identifiers(expr) {
			body, ok := constants[id]
			if !ok {
				continue
			}
			if slices.Contains(stack, id) {
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: %s", ErrConstantCycle, strings.Join(append(slices.Clone(stack), id), " -> "))
				}
				continue
			}
			if used[id] {
				continue
			}
			used[id] = true
			visit(body, append(slices.Clone(stack), id))
		}
	}
	visit(src, nil)

	out := make([]string, 0, len(used))
	for _, name := range names {
		if used[name] {
			out = append(out, name)
		}
	}
	return out, firstErr
}

// dependencyOrder упорядочивает константы так, что каждая идёт после
// констант из names, на которые она ссылается. Независимые константы
// сохраняют исходный порядок, цикл разрывается на повторном входе.
func dependencyOrder(names []string, constants map[string]string) []string {
	const (
		visiting = 1
		done     = 2
	)
	in := make(map[string]bool, len(names))
	for _, name := range names {
		in[name] = true
	}
	state := make(map[string]int, len(names))
	out := make([]string, 0, len(names))

	var visit func(name string)
	visit = func(name string) {
		if state[name] != 0 {
			return
		}
		state[name] = visiting
		for _, id := range identifiers(constants[name]) {
			if in[id] {
				visit(id)
			}
		}
		state[name] = done
		out = append(out, name)
	}
	for _, name := range names {
		visit(name)
	}
	return out
}
