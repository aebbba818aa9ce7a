package providers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := ConnectRedis(context.Background(), mr.Addr(), "", time.Second)
	if err != nil {
		t.Fatalf("ConnectRedis: %v", err)
	}
	defer rdb.Close()
	if err := rdb.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestConnectRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rdb, err := ConnectRedis(context.Background(), addr, "", 200*time.Millisecond)
	if err == nil {
		t.Fatalf("expected ping error")
	}
	if rdb == nil {
		t.Fatalf("expected client to be returned")
	}
	_ = rdb.Close()
}
