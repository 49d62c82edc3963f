package flags

import (
	"reflect"
	"testing"
)

func TestDefaultValue(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want any
	}{
		{name: "boolean", def: Definition{Type: TypeBoolean}, want: false},
		{name: "string", def: Definition{Type: TypeString}, want: ""},
		{name: "number", def: Definition{Type: TypeNumber}, want: float64(0)},
		{name: "json", def: Definition{Type: TypeJSON}, want: map[string]any{}},
		{
			name: "multivariate",
			def: Definition{Type: TypeMultivariate, Variants: []Variant{
				{ID: "a", Value: "first", Weight: 50},
				{ID: "b", Value: "second", Weight: 50},
			}},
			want: "first",
		},
		{name: "multivariate without variants", def: Definition{Type: TypeMultivariate}, want: nil},
		{name: "unknown type", def: Definition{Type: "mystery"}, want: nil},
		{name: "empty type", def: Definition{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.def.DefaultValue()
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("DefaultValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
