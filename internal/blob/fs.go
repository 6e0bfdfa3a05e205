package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore はローカルファイルシステムを使用したブロブストア。
// 開発環境および単一ノード構成向け。ブロブはbaseDir直下にキー名で置かれ、
// publicURL + "/" + キー で公開される想定（静的ファイル配信は別途）。
type FSStore struct {
	baseDir   string
	publicURL string
}

// NewFSStore はFSStoreを生成する。保存先ディレクトリがなければ作成する。
func NewFSStore(baseDir, publicURL string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FSStore{
		baseDir:   baseDir,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Put はキー配下にバイト列を保存し、公開URLを返す。
// 一時ファイルに書き込んでからrenameすることで、部分書き込みされた
// ブロブが公開パスに現れないようにする。
func (s *FSStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	tmp, err := os.CreateTemp(s.baseDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if size >= 0 && written != size {
		os.Remove(tmpName)
		return "", fmt.Errorf("short write: wrote %d bytes, expected %d", written, size)
	}

	dst := filepath.Join(s.baseDir, key)
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	return s.publicURL + "/" + key, nil
}

// Delete は公開URLが指すブロブを削除する。存在しない場合はエラーにしない。
func (s *FSStore) Delete(ctx context.Context, blobURL string) error {
	key, err := KeyFromURL(blobURL)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.baseDir, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// List はストア内の全ブロブを列挙する。書き込み途中の一時ファイルは除外する。
func (s *FSStore) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob directory: %w", err)
	}

	infos := []Info{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat blob %s: %w", e.Name(), err)
		}
		infos = append(infos, Info{
			Key:          e.Name(),
			LastModified: fi.ModTime(),
		})
	}

	return infos, nil
}

// compile-time interface check
var _ Store = (*FSStore)(nil)
