package application

import (
	"context"
	"testing"
)

type staticSessions int

func (s staticSessions) SessionCount() int { return int(s) }

func TestHealthServiceIsHealthy(t *testing.T) {
	service := NewHealthService(nil, nil, nil)

	if !service.IsHealthy(context.Background()) {
		t.Error("IsHealthy should return true")
	}
}

func TestHealthServiceIsReady(t *testing.T) {
	tests := []struct {
		name string
		maps *MapService
		want bool
	}{
		{
			name: "no map service",
			want: false,
		},
		{
			name: "map service wired",
			maps: NewMapService(newFakeProvider(), nil, nil, testLogger(), MapServiceConfig{}),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewHealthService(tt.maps, nil, nil)
			if got := service.IsReady(context.Background()); got != tt.want {
				t.Errorf("IsReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthServiceGetHealthDetails(t *testing.T) {
	storage := &mockStorage{}
	storage.put("a.yaml", "layers: []\n", "1")
	storage.put("b.yaml", "layers: []\n", "1")
	catalog := newTestCatalog(storage)
	_ = catalog.LoadAll(context.Background())

	maps := newTestService(t, newFakeProvider(), catalog, MapServiceConfig{})
	if _, err := maps.Create(context.Background(), nil, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	service := NewHealthService(maps, catalog, staticSessions(3))
	details := service.GetHealthDetails(context.Background())

	if !details.Healthy {
		t.Error("Healthy should be true")
	}
	if !details.Ready {
		t.Error("Ready should be true")
	}
	if details.MapsActive != 1 {
		t.Errorf("MapsActive = %d, want 1", details.MapsActive)
	}
	if details.PresetsLoaded != 2 {
		t.Errorf("PresetsLoaded = %d, want 2", details.PresetsLoaded)
	}
	if details.ClientsAttached != 3 {
		t.Errorf("ClientsAttached = %d, want 3", details.ClientsAttached)
	}
	if details.Components["presets"] != "ok" {
		t.Errorf("Components[presets] = %q, want %q", details.Components["presets"], "ok")
	}
}
