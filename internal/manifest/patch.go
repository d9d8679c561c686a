package manifest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/manifestly/manifestly-go/internal/store"
)

// DiffEntryName is the archive member holding the diff document.
const DiffEntryName = ".manifestly.diff"

// Patch writes the diff against target to out as an indented JSON
// document and returns it.
func (m *Manifest) Patch(ctx context.Context, target *Manifest, out string) (*DiffResult, error) {
	diff := m.Diff(target)

	data, err := jsonMarshalIndent(diff, "", "  ")
	if err != nil {
		return nil, err
	}

	st, outPath, err := m.resolveOut(ctx, out)
	if err != nil {
		return nil, err
	}
	w, err := st.Create(ctx, outPath)
	if err != nil {
		return nil, fmt.Errorf("write patch: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("write patch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return diff, nil
}

// Pzip writes a zip archive of every added or changed file's content,
// plus a DiffEntryName member holding the diff document. Unlike Sync,
// a source file that cannot be read aborts the run; the partial
// archive is removed.
func (m *Manifest) Pzip(ctx context.Context, target *Manifest, out string) (*DiffResult, error) {
	diff := m.Diff(target)

	st, outPath, err := m.resolveOut(ctx, out)
	if err != nil {
		return nil, err
	}
	w, err := st.Create(ctx, outPath)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	discard := func() {
		w.Close()
		if err := st.Delete(ctx, outPath); err != nil && !errors.Is(err, store.ErrNotExist) {
			slog.Warn("could not remove partial archive", "path", outPath, "error", err)
		}
	}

	zw := zip.NewWriter(w)
	for _, file := range sortedKeys(diff.Added, diff.Changed) {
		src, err := m.rootStore.Open(ctx, joinPath(m.root, file))
		if err != nil {
			discard()
			return nil, fmt.Errorf("archive %s: %w", file, err)
		}
		member, err := zw.Create(file)
		if err != nil {
			src.Close()
			discard()
			return nil, fmt.Errorf("archive %s: %w", file, err)
		}
		if _, err := io.Copy(member, src); err != nil {
			src.Close()
			discard()
			return nil, fmt.Errorf("archive %s: %w", file, err)
		}
		src.Close()
	}

	data, err := jsonMarshal(diff)
	if err != nil {
		discard()
		return nil, err
	}
	member, err := zw.Create(DiffEntryName)
	if err != nil {
		discard()
		return nil, err
	}
	if _, err := member.Write(data); err != nil {
		discard()
		return nil, err
	}

	if err := zw.Close(); err != nil {
		discard()
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return diff, nil
}
