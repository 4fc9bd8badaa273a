// Package reflector derives stable type names used as registry keys.
package reflector

import (
	"reflect"
	"sync"
)

var names sync.Map // reflect.Type -> TypeInfo

// TypeInfo describes a named Go type.
type TypeInfo struct {
	// Name is "<pkg path>.<type name>" of the dereferenced type.
	Name string
	Type reflect.Type
}

// TypeInfoOf returns the TypeInfo of the dynamic type of x. Pointers are
// dereferenced so that T and *T share one name.
func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor is TypeInfoOf for a type parameter.
func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	if cached, ok := names.Load(t); ok {
		return cached.(TypeInfo)
	}

	elem := t
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}

	name := elem.Name()
	if pkg := elem.PkgPath(); pkg != "" {
		name = pkg + "." + name
	} else if name == "" {
		name = elem.String()
	}

	ti := TypeInfo{Name: name, Type: elem}
	names.Store(t, ti)
	return ti
}
