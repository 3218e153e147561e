package assert

import "reflect"

// NotNil panics if value is nil, including typed nils hidden behind an interface.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			panic("expected value to be not nil")
		}
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}
