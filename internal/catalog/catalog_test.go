package catalog_test

import (
	"errors"
	"testing"

	"dialtone/internal/catalog"
)

func TestDecodeParsesEntriesAndToken(t *testing.T) {
	payload := []byte(`{
		"lastModified": "2026-02-01T00:00:00Z",
		"911": {
			"description": "emergency siren",
			"type": "audio",
			"path": "http://sounds.test/siren.mp3",
			"gap": 500,
			"duration": 8000,
			"ring_duration": 2000,
			"previous": ["dialtone"],
			"next": ["click"]
		},
		"weather": {
			"description": "weather line",
			"type": "audio",
			"data": "http://sounds.test/weather",
			"ext": ".wav"
		}
	}`)

	entries, token, err := catalog.Decode(payload, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if token != "2026-02-01T00:00:00Z" {
		t.Fatalf("unexpected token: %q", token)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	siren := entries["911"]
	if siren.AudioKey != "911" || siren.Kind != catalog.KindAudio {
		t.Fatalf("unexpected entry: %#v", siren)
	}
	if siren.Locator != "http://sounds.test/siren.mp3" {
		t.Fatalf("unexpected locator: %s", siren.Locator)
	}
	if siren.GapMs != 500 || siren.DurationMs != 8000 || siren.RingDurationMs != 2000 {
		t.Fatalf("timing fields not parsed: %#v", siren)
	}
	if len(siren.PreviousKeys) != 1 || siren.PreviousKeys[0] != "dialtone" {
		t.Fatalf("previous keys not parsed: %#v", siren.PreviousKeys)
	}

	weather := entries["weather"]
	if weather.Locator != "http://sounds.test/weather" {
		t.Fatalf("data field not used as locator fallback: %s", weather.Locator)
	}
	if weather.Extension != "wav" {
		t.Fatalf("extension dot not stripped: %q", weather.Extension)
	}
}

func TestDecodePathWinsOverData(t *testing.T) {
	payload := []byte(`{"k": {"type": "audio", "path": "http://a.test/x.mp3", "data": "http://b.test/y.mp3"}}`)
	entries, _, err := catalog.Decode(payload, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if entries["k"].Locator != "http://a.test/x.mp3" {
		t.Fatalf("path should take precedence, got %s", entries["k"].Locator)
	}
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	payload := []byte(`{"k": {"type": "audio", "path": "http://a.test/x.mp3"}}`)
	_, _, err := catalog.Decode(payload, 10)
	if !errors.Is(err, catalog.ErrOversized) {
		t.Fatalf("expected ErrOversized, got %v", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, _, err := catalog.Decode([]byte(`{"k": `), 0); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestIsURL(t *testing.T) {
	if !catalog.IsURL("http://a.test/x") || !catalog.IsURL("https://a.test/x") {
		t.Fatal("expected http and https locators to be URLs")
	}
	if catalog.IsURL("/var/lib/dialtone/audio/x.mp3") {
		t.Fatal("local path misclassified as URL")
	}
}
