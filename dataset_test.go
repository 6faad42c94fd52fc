package jsonkv

import (
	"bytes"
	"encoding/json"
	"slices"
	"testing"
)

func TestDataset(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		d := NewDataset()
		d.Set("b", json.RawMessage(`2`))
		d.Set("a", json.RawMessage(`{"x":[1,2,3]}`))
		d.Set("c", json.RawMessage(`"three"`))

		raw, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		got := NewDataset()
		if err := json.Unmarshal(raw, got); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !slices.Equal(got.Keys(), []string{"b", "a", "c"}) {
			t.Errorf("Keys() = %v, want [b a c]", got.Keys())
		}
		for k, want := range d.All() {
			v, ok := got.Get(k)
			if !ok {
				t.Fatalf("key %q lost in round trip", k)
			}
			if !bytes.Equal(v, want) {
				t.Errorf("key %q = %s, want %s", k, v, want)
			}
		}
	})

	t.Run("EmptyEncodesAsObject", func(t *testing.T) {
		raw, err := json.Marshal(NewDataset())
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(raw) != "{}" {
			t.Errorf("empty dataset = %s, want {}", raw)
		}
	})

	t.Run("SetKeepsPosition", func(t *testing.T) {
		d := NewDataset()
		d.Set("a", json.RawMessage(`1`))
		d.Set("b", json.RawMessage(`2`))
		d.Set("a", json.RawMessage(`10`))
		if !slices.Equal(d.Keys(), []string{"a", "b"}) {
			t.Errorf("Keys() = %v, want [a b]", d.Keys())
		}
	})

	t.Run("Page", func(t *testing.T) {
		d := NewDataset()
		for _, k := range []string{"a", "b", "c"} {
			d.Set(k, json.RawMessage(`1`))
		}
		tests := []struct {
			name     string
			page     int
			size     int
			wantKeys []string
		}{
			{"first page", 1, 2, []string{"a", "b"}},
			{"second page", 2, 2, []string{"c"}},
			{"past the end", 3, 2, nil},
			{"zero page", 0, 2, nil},
			{"zero size", 1, 0, nil},
			{"whole set", 1, 10, []string{"a", "b", "c"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := d.Page(tt.page, tt.size)
				if !slices.Equal(got.Keys(), tt.wantKeys) {
					t.Errorf("Page(%d, %d) keys = %v, want %v", tt.page, tt.size, got.Keys(), tt.wantKeys)
				}
			})
		}
	})

	t.Run("Clone", func(t *testing.T) {
		d := NewDataset()
		d.Set("a", json.RawMessage(`1`))
		c := d.Clone()
		c.Set("b", json.RawMessage(`2`))
		c.Delete("a")
		if d.Len() != 1 {
			t.Errorf("original Len() = %d, want 1", d.Len())
		}
		if _, ok := d.Get("a"); !ok {
			t.Error("clone mutation leaked into original")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		d := NewDataset()
		d.Set("a", json.RawMessage(`1`))
		if !d.Delete("a") {
			t.Error("Delete(a) = false, want true")
		}
		if d.Delete("a") {
			t.Error("second Delete(a) = true, want false")
		}
	})
}
