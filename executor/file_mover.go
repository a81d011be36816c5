package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"docflow/model"
)

// LocalFileMover moves documents on the local filesystem. Rename is
// tried first; a cross-device move falls back to copy-then-remove.
type LocalFileMover struct{}

func NewLocalFileMover() LocalFileMover {
	return LocalFileMover{}
}

func (LocalFileMover) Move(ctx context.Context, source string, target string, copyOnly bool) (string, error) {
	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return "", model.NewFatalError(fmt.Errorf("source file %s does not exist", source))
		}
		return "", model.NewRetryableError(err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", model.NewRetryableError(err)
	}
	if !copyOnly {
		if err := os.Rename(source, target); err == nil {
			return target, nil
		}
	}
	if err := copyFile(source, target); err != nil {
		return "", model.NewRetryableError(err)
	}
	if !copyOnly {
		if err := os.Remove(source); err != nil {
			return "", model.NewRetryableError(err)
		}
	}
	return target, nil
}

func copyFile(source string, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
