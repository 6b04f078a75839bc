package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"

	"github.com/yuiseki/NEREID/pkg/osm"
)

func TestRunWithoutModePrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), nil, &stdout, &stderr)
	if err == nil {
		t.Fatal("run() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Usage:") {
		t.Errorf("run() error does not include usage text:\n%s", err)
	}
}

func TestRunQueryWithoutAreaWritesNoFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "data.geojson")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"--query", "leisure=park", "--output", outPath}, &stdout, &stderr)
	if err == nil {
		t.Fatal("run() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "--area is required with --query") {
		t.Errorf("run() error = %v", err)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Errorf("output file %s should not exist, stat err = %v", outPath, statErr)
	}
}

func TestRunMalformedTagFilter(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "data.geojson")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"--query", "park", "--area", "Tokyo", "--output", outPath}, &stdout, &stderr)
	if err == nil {
		t.Fatal("run() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "INVALID_INPUT") {
		t.Errorf("run() error = %v", err)
	}
}

func TestRunVersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if err := run(context.Background(), []string{"--version"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "nereid-fetch") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestRunOverpassFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := r.URL.Query().Get("data")
		if !strings.Contains(data, `area[name="東京都台東区"]`) {
			t.Errorf("query missing area clause: %s", data)
		}
		if !strings.Contains(data, `nwr["leisure"="park"](area.searchArea);`) {
			t.Errorf("query missing tag clause: %s", data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"elements":[
			{"type":"node","id":1,"lat":35.712,"lon":139.777,"tags":{"name":"上野公園"}},
			{"type":"way","id":2,"geometry":[{"lat":0,"lon":0},{"lat":0,"lon":1},{"lat":1,"lon":1},{"lat":0,"lon":0}]}
		]}`))
	}))
	defer srv.Close()
	defer osm.SetOverpassBaseURL(osm.DefaultOverpassBaseURL)

	outPath := filepath.Join(t.TempDir(), "public", "parks.geojson")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{
		"--query", "leisure=park",
		"--area", "東京都台東区",
		"--overpass-url", srv.URL,
		"--output", outPath,
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "Fetching Overpass data: leisure=park in 東京都台東区...") {
		t.Errorf("missing progress line, stdout:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "Done. 2 features written to "+outPath) {
		t.Errorf("missing completion line, stdout:\n%s", stdout.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Errorf("feature count = %d, want 2", len(fc.Features))
	}
	if !strings.Contains(string(data), "上野公園") {
		t.Error("output does not preserve non-ASCII tag values")
	}
}

func TestRunNominatimFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"place_id":1,"lat":"35.681236","lon":"139.767125","category":"railway","type":"station","display_name":"東京駅"}]`))
	}))
	defer srv.Close()
	defer osm.SetNominatimBaseURL(osm.DefaultNominatimBaseURL)

	outPath := filepath.Join(t.TempDir(), "station.geojson")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{
		"--nominatim", "東京駅",
		"--nominatim-url", srv.URL,
		"--output", outPath,
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "Fetching Nominatim data: 東京駅...") {
		t.Errorf("missing progress line, stdout:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "Done. 1 features written to "+outPath) {
		t.Errorf("missing completion line, stdout:\n%s", stdout.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("feature count = %d, want 1", len(fc.Features))
	}
	if got := fc.Features[0].Properties["name"]; got != "東京駅" {
		t.Errorf("properties[name] = %v, want 東京駅", got)
	}
}

func TestRunNominatimNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	defer osm.SetNominatimBaseURL(osm.DefaultNominatimBaseURL)

	outPath := filepath.Join(t.TempDir(), "empty.geojson")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{
		"--nominatim", "nowhere at all",
		"--nominatim-url", srv.URL,
		"--output", outPath,
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "Done. 0 features written to "+outPath) {
		t.Errorf("missing completion line, stdout:\n%s", stdout.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("feature count = %d, want 0", len(fc.Features))
	}
}

func TestRunOverpassServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()
	defer osm.SetOverpassBaseURL(osm.DefaultOverpassBaseURL)

	outPath := filepath.Join(t.TempDir(), "data.geojson")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{
		"--query", "leisure=park",
		"--area", "Tokyo",
		"--overpass-url", srv.URL,
		"--output", outPath,
	}, &stdout, &stderr)
	if err == nil {
		t.Fatal("run() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "SERVICE_TIMEOUT") {
		t.Errorf("run() error = %v", err)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Errorf("output file should not exist after fetch failure")
	}
}
