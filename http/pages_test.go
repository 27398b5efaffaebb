package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iotdetect/flow"
)

func postForm(h http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/detection", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func zeroForm(action string) url.Values {
	values := url.Values{"action": {action}, "psh_flag": {"No"}}
	for _, name := range []string{"flow_duration", "header_length", "protocol_type", "rate",
		"ack_count", "syn_count", "fin_count", "urg_count", "rst_count", "tot_size", "iat"} {
		values.Set(name, "0")
	}
	return values
}

func TestHomepage(t *testing.T) {
	h := NewHandler(DefaultServerConfig())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Detection of Cyberattacks in IoT Networks",
		"created for educational purposes",
		`src="/static/iot_devices.svg"`,
		"navigating to the <em>Detection</em> page",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("homepage missing %q", want)
		}
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?page=Detection", nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/detection" {
		t.Fatalf("expected redirect to /detection, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestStaticAssets(t *testing.T) {
	h := NewHandler(DefaultServerConfig())
	for _, path := range []string{"/static/iot_devices.svg", "/static/style.css", "/static/app.js"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestHomepageCustomImage(t *testing.T) {
	image := filepath.Join(t.TempDir(), "devices.svg")
	if err := os.WriteFile(image, []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), 0o644); err != nil {
		t.Fatal(err)
	}
	SetUIConfig("", image)
	defer SetUIConfig("", "")

	h := NewHandler(DefaultServerConfig())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(w.Body.String(), `src="/media/homepage-image"`) {
		t.Fatalf("homepage should point at the configured image")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/homepage-image", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<svg") {
		t.Fatalf("expected configured image, got %d", w.Code)
	}
}

func TestDetectionPageForm(t *testing.T) {
	h := NewHandler(DefaultServerConfig())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/detection", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"IOT Traffic Classification",
		"Customize Parameters for Cyberattack Detection",
		"Is the PSH flag set?",
		"Inter-Arrival Time between Packets",
		`<option value="No" selected>`,
		`value="detect"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("detection page missing %q", want)
		}
	}
	if strings.Contains(body, `value="classify"`) {
		t.Fatalf("classify button must be hidden before an attack is detected")
	}
	// Flow Duration is the first column, Inter-Arrival Time the last.
	if strings.Index(body, "Flow Duration") > strings.Index(body, "URG Count") {
		t.Fatalf("form columns out of order")
	}
}

func TestDetectionScenarioBenign(t *testing.T) {
	detector := &fakeModel{label: 0}
	classifier := &fakeModel{label: 2}
	usePipeline(t, detector, classifier)

	w := postForm(NewHandler(DefaultServerConfig()), zeroForm("detect"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, flow.NotDetectedBanner) {
		t.Fatalf("expected %q in page", flow.NotDetectedBanner)
	}
	if strings.Contains(body, `value="classify"`) {
		t.Fatalf("classify button must stay hidden for benign traffic")
	}
	if !strings.Contains(body, "<strong>detector</strong>") || !strings.Contains(body, "<strong>classifier</strong>") {
		t.Fatalf("sidebar should list the loaded models")
	}
}

func TestDetectionScenarioDDoS(t *testing.T) {
	usePipeline(t, &fakeModel{label: 1}, &fakeModel{label: 2})
	h := NewHandler(DefaultServerConfig())

	values := zeroForm("detect")
	values.Set("psh_flag", "Yes")
	values.Set("rate", "12500.5")
	w := postForm(h, values)
	body := w.Body.String()
	if !strings.Contains(body, flow.DetectedBanner) || !strings.Contains(body, `value="classify"`) {
		t.Fatalf("expected detection banner and classify button")
	}
	if !strings.Contains(body, `<option value="Yes" selected>`) || !strings.Contains(body, `value="12500.5"`) {
		t.Fatalf("submitted values must be kept in the form")
	}
	if !strings.Contains(body, "12,500.5") {
		t.Fatalf("submitted table should group digits")
	}

	values.Set("action", "classify")
	w = postForm(h, values)
	if !strings.Contains(w.Body.String(), "Cyber-Attack: DDoS ❌") {
		t.Fatalf("expected DDoS label in page")
	}
}

func TestDetectionInvalidInput(t *testing.T) {
	usePipeline(t, &fakeModel{label: 0}, &fakeModel{label: 0})
	h := NewHandler(DefaultServerConfig())

	values := zeroForm("detect")
	values.Set("ack_count", "-3")
	if w := postForm(h, values); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a negative count, got %d", w.Code)
	}

	values = zeroForm("detect")
	values.Set("psh_flag", "Maybe")
	if w := postForm(h, values); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown selection, got %d", w.Code)
	}

	values = zeroForm("explode")
	if w := postForm(h, values); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown action, got %d", w.Code)
	}
}
