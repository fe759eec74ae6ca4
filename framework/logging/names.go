package logging

import (
	"reflect"
	"strings"
)

// NameOf returns the friendly name of T, suitable for GetOrCreate. Compute it
// once and keep the resulting logger.
//
//	log := registry.GetOrCreate(logging.NameOf[*OrderService]())   // "OrderService"
//	log := registry.GetOrCreate(logging.NameOf[Cache[string, int]]()) // "Cache<string,int>"
func NameOf[T any]() string {
	return FriendlyName(reflect.TypeFor[T]())
}

// FriendlyName renders t without its package path. Pointers are
// dereferenced and generic arguments are rendered recursively in angle
// brackets: Envelope[pkg.Order,pkg.Wrap[pkg.Item]] becomes
// Envelope<Order,Wrap<Item>>.
func FriendlyName(t reflect.Type) string {
	if t == nil {
		return "None"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		return t.String()
	}
	return friendly(name)
}

func friendly(name string) string {
	// keep composite markers (*T, []T) and render the element
	for _, marker := range []string{"*", "[]"} {
		if strings.HasPrefix(name, marker) {
			return marker + friendly(name[len(marker):])
		}
	}

	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return unqualified(name)
	}

	args := splitArgs(name[open+1 : len(name)-1])
	for i, arg := range args {
		args[i] = friendly(strings.TrimSpace(arg))
	}
	return unqualified(name[:open]) + "<" + strings.Join(args, ",") + ">"
}

// unqualified strips an import path: "github.com/a/b.Order" -> "Order".
func unqualified(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// splitArgs splits a type argument list on top-level commas.
func splitArgs(list string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range list {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, list[start:i])
				start = i + 1
			}
		}
	}
	return append(out, list[start:])
}
