package cache

import (
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	entry := NewEntry([]byte(`{"data": []}`), 12*time.Hour)

	if string(entry.Payload) != `{"data": []}` {
		t.Errorf("Payload = %s, want %s", entry.Payload, `{"data": []}`)
	}
	if entry.TTL != 12*time.Hour {
		t.Errorf("TTL = %v, want %v", entry.TTL, 12*time.Hour)
	}
	if time.Since(entry.CachedAt) > time.Second {
		t.Errorf("CachedAt not recent: %v", entry.CachedAt)
	}
}

func TestEntry_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		cachedAt time.Time
		ttl      time.Duration
		want     bool
	}{
		{
			name:     "just written",
			cachedAt: time.Now(),
			ttl:      time.Hour,
			want:     false,
		},
		{
			name:     "just inside the TTL",
			cachedAt: time.Now().Add(-time.Hour + time.Second),
			ttl:      time.Hour,
			want:     false,
		},
		{
			name:     "just past the TTL",
			cachedAt: time.Now().Add(-time.Hour - time.Second),
			ttl:      time.Hour,
			want:     true,
		},
		{
			name:     "long expired",
			cachedAt: time.Now().Add(-48 * time.Hour),
			ttl:      24 * time.Hour,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{
				Payload:  []byte(`{}`),
				CachedAt: tt.cachedAt,
				TTL:      tt.ttl,
			}
			if got := entry.IsStale(); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Age(t *testing.T) {
	entry := &Entry{
		Payload:  []byte(`{}`),
		CachedAt: time.Now().Add(-30 * time.Minute),
		TTL:      time.Hour,
	}

	age := entry.Age()
	if age < 29*time.Minute || age > 31*time.Minute {
		t.Errorf("Age() = %v, want about 30m", age)
	}
}
