package validator

import (
	"reflect"
	"strings"
)

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return fld.Name
	case "":
		return fld.Name
	}
	return name
}

// isSecret walks a struct namespace such as "Config.Wallet.Key" from t and
// reports whether any field on the path is tagged `secret:"true"`.
func isSecret(t reflect.Type, namespace string) bool {
	parts := strings.Split(namespace, ".")
	for _, part := range parts[1:] {
		for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array || t.Kind() == reflect.Map) {
			t = t.Elem()
		}
		if t == nil || t.Kind() != reflect.Struct {
			return false
		}
		name, _, _ := strings.Cut(part, "[")
		fld, ok := t.FieldByName(name)
		if !ok {
			return false
		}
		if fld.Tag.Get("secret") == "true" {
			return true
		}
		t = fld.Type
	}
	return false
}
