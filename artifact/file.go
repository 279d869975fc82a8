package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rushteam/ncfrec/core"
)

// FileRepository 把产物保存在目录 Dir 中。
//
// Save 先把三部分写入同级临时目录，再整体改名替换旧目录，
// 读者要么看到完整的旧产物，要么看到完整的新产物。
type FileRepository struct {
	Dir string
}

func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{Dir: dir}
}

func (r *FileRepository) Save(ctx context.Context, b *Bundle) error {
	data, err := encode(b)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Clean(r.Dir)
	parent, base := filepath.Split(dir)
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return fmt.Errorf("create artifact parent: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	for _, p := range parts {
		if err := writeFileSync(filepath.Join(tmp, p), data[p]); err != nil {
			return err
		}
	}

	// 旧目录先改名让位，新目录就位后再删除
	var backup string
	if _, err := os.Stat(dir); err == nil {
		backup = fmt.Sprintf("%s.old-%d", dir, time.Now().UnixNano())
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("move old artifact: %w", err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dir)
		}
		return fmt.Errorf("install artifact: %w", err)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

func (r *FileRepository) Load(ctx context.Context) (*Bundle, error) {
	data := make(map[string][]byte, len(parts))
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(filepath.Join(r.Dir, p)) //nolint:gosec // 路径由配置给出
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeCorruptArtifact, err, "artifact: read %s", p)
		}
		data[p] = b
	}
	return decode(data)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) //nolint:gosec // 路径在临时目录内
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// SaveFile 把产物保存到目录 path
func SaveFile(ctx context.Context, path string, b *Bundle) error {
	return NewFileRepository(path).Save(ctx, b)
}

// LoadFile 从目录 path 加载产物
func LoadFile(ctx context.Context, path string) (*Bundle, error) {
	return NewFileRepository(path).Load(ctx)
}
