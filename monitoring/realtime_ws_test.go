package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"iotdetect/detection"
	"iotdetect/flow"
)

func TestHubBroadcastsDetections(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Observe(detection.Result{
		Mode:       detection.ModeTwoStage,
		Stage:      detection.StageClassify,
		Classified: true,
		Class:      2,
		Category:   "DDoS",
		Label:      flow.LabelOf(2, flow.FallbackUnknown),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message: %v", err)
	}
	if msg.Type != DetectionEvent || msg.ID == "" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	var result detection.Result
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if result.Label != "Cyber-Attack: DDoS ❌" {
		t.Fatalf("unexpected label: %q", result.Label)
	}
}
