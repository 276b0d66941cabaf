package dashboard

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestServerBroadcast(t *testing.T) {
	srv := NewServer(&Config{
		Addr: "127.0.0.1:0",
		Stats: func(ctx context.Context) (StatsData, error) {
			return StatsData{Meals: 3, DirtyMeals: 1}, nil
		},
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = srv.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+srv.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	readMessage := func() Message {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to decode message: %v", err)
		}
		return msg
	}

	welcome := readMessage()
	if welcome.Type != MessageTypeStats {
		t.Fatalf("expected stats welcome, got %s", welcome.Type)
	}
	var stats StatsData
	if err := json.Unmarshal(welcome.Data, &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.Meals != 3 || stats.DirtyMeals != 1 {
		t.Errorf("stats = %+v", stats)
	}

	srv.BroadcastRecordUpdate(RecordUpdateData{Collection: "meals", Op: "put", ID: 7})

	update := readMessage()
	if update.Type != MessageTypeRecordUpdate {
		t.Fatalf("expected record_update, got %s", update.Type)
	}
	var record RecordUpdateData
	if err := json.Unmarshal(update.Data, &record); err != nil {
		t.Fatalf("failed to decode record update: %v", err)
	}
	if record.Collection != "meals" || record.ID != 7 {
		t.Errorf("record update = %+v", record)
	}
}
