package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "endpoint without params",
			key: Key{
				Endpoint: "sets",
			},
			want: "sets",
		},
		{
			name: "endpoint with one param",
			key: Key{
				Endpoint: "cards",
				Params: url.Values{
					"search": []string{"charizard"},
				},
			},
			want: "cards:search=charizard",
		},
		{
			name: "multiple params sorted by name",
			key: Key{
				Endpoint: "cards",
				Params: url.Values{
					"sortOrder": []string{"desc"},
					"limit":     []string{"8"},
					"search":    []string{"pikachu"},
				},
			},
			want: "cards:limit=8&search=pikachu&sortOrder=desc",
		},
		{
			name: "detail lookup with history",
			key: Key{
				Endpoint: "cards",
				Params: url.Values{
					"tcgPlayerId":    []string{"12345"},
					"includeHistory": []string{"true"},
					"days":           []string{"30"},
				},
			},
			want: "cards:days=30&includeHistory=true&tcgPlayerId=12345",
		},
		{
			name: "value with delimiter characters is encoded",
			key: Key{
				Endpoint: "cards",
				Params: url.Values{
					"limit": []string{"4:search=a"},
				},
			},
			want: "cards:limit=4%3Asearch%3Da",
		},
		{
			name: "repeated param keeps every value",
			key: Key{
				Endpoint: "cards",
				Params: url.Values{
					"rarity": []string{"rare", "holo"},
				},
			},
			want: "cards:rarity=rare&rarity=holo",
		},
		{
			name: "popular singleton",
			key:  PopularKey,
			want: "popular:v2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("Key.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestKey_Determinism ensures the same parameter mapping always produces
// the same key regardless of construction or iteration order.
func TestKey_Determinism(t *testing.T) {
	build := func(pairs [][2]string) Key {
		params := url.Values{}
		for _, p := range pairs {
			params.Set(p[0], p[1])
		}
		return Key{Endpoint: "cards", Params: params}
	}

	forward := build([][2]string{
		{"search", "mewtwo"}, {"limit", "4"}, {"sortBy", "price"}, {"sortOrder", "desc"},
	})
	reversed := build([][2]string{
		{"sortOrder", "desc"}, {"sortBy", "price"}, {"limit", "4"}, {"search", "mewtwo"},
	})

	if forward.String() != reversed.String() {
		t.Errorf("permuted params produced different keys: %q vs %q",
			forward.String(), reversed.String())
	}

	// Repeated calls must also agree with themselves.
	first := forward.String()
	for i := 0; i < 10; i++ {
		if got := forward.String(); got != first {
			t.Errorf("call %d = %v, want %v (not deterministic)", i, got, first)
		}
	}
}

// TestKey_DistinctMappingsNeverCollide guards against one request shape
// aliasing another: a value containing key-delimiter characters must not
// produce the same key as the parameter map it mimics.
func TestKey_DistinctMappingsNeverCollide(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
	}{
		{
			name: "delimiter characters inside a value",
			a: Key{Endpoint: "cards", Params: url.Values{
				"limit": []string{"4:search=a"},
			}},
			b: Key{Endpoint: "cards", Params: url.Values{
				"limit":  []string{"4"},
				"search": []string{"a"},
			}},
		},
		{
			name: "ampersand inside a value",
			a: Key{Endpoint: "cards", Params: url.Values{
				"search": []string{"a&limit=4"},
			}},
			b: Key{Endpoint: "cards", Params: url.Values{
				"search": []string{"a"},
				"limit":  []string{"4"},
			}},
		},
		{
			name: "single vs repeated value",
			a: Key{Endpoint: "cards", Params: url.Values{
				"rarity": []string{"rare"},
			}},
			b: Key{Endpoint: "cards", Params: url.Values{
				"rarity": []string{"rare", "holo"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a.String() == tt.b.String() {
				t.Errorf("distinct param maps collide on key %q", tt.a.String())
			}
		})
	}
}
