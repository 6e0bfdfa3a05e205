package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Put→ファイル作成→公開URL返却の一連の動作を検証
func TestFSStore_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "http://localhost:8080/blobs/")
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	data := "fake-jpeg-bytes"
	blobURL, err := store.Put(context.Background(), "123-cat.jpg", "image/jpeg",
		strings.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if blobURL != "http://localhost:8080/blobs/123-cat.jpg" {
		t.Errorf("blobURL = %q, want trailing slash trimmed + key", blobURL)
	}

	content, err := os.ReadFile(filepath.Join(dir, "123-cat.jpg"))
	if err != nil {
		t.Fatalf("blob file not written: %v", err)
	}
	if string(content) != data {
		t.Errorf("blob content = %q, want %q", content, data)
	}

	if err := store.Delete(context.Background(), blobURL); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "123-cat.jpg")); !os.IsNotExist(err) {
		t.Error("blob file should be removed after Delete")
	}
}

// サイズ不一致のPutが失敗し、ブロブが残らないことを検証
func TestFSStore_Put_SizeMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "http://localhost:8080/blobs")
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	_, err = store.Put(context.Background(), "123-cat.jpg", "image/jpeg",
		strings.NewReader("short"), 100)
	if err == nil {
		t.Fatal("expected error for size mismatch")
	}

	infos, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("store should be empty after failed Put, got %d blobs", len(infos))
	}
}

// 存在しないブロブのDeleteがエラーにならないことを検証（冪等性）
func TestFSStore_Delete_Missing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "http://localhost:8080/blobs")
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	if err := store.Delete(context.Background(), "http://localhost:8080/blobs/nothing.jpg"); err != nil {
		t.Errorf("Delete of missing blob should be idempotent, got error: %v", err)
	}
}

// Listが保存済みブロブを列挙し、一時ファイルを除外することを検証
func TestFSStore_List(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "http://localhost:8080/blobs")
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}

	for _, key := range []string{"1-a.jpg", "2-b.png"} {
		if _, err := store.Put(context.Background(), key, "image/jpeg",
			strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Put(%s) returned error: %v", key, err)
		}
	}

	// 書き込み途中を装った一時ファイル
	if err := os.WriteFile(filepath.Join(dir, ".upload-zzz"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	infos, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List returned %d blobs, want 2", len(infos))
	}

	keys := map[string]bool{}
	for _, info := range infos {
		keys[info.Key] = true
		if info.LastModified.IsZero() {
			t.Errorf("blob %s has zero LastModified", info.Key)
		}
	}
	if !keys["1-a.jpg"] || !keys["2-b.png"] {
		t.Errorf("List keys = %v, want 1-a.jpg and 2-b.png", keys)
	}
}
