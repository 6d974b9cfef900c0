package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/km-arc/go-modular/framework/result"
	"github.com/km-arc/go-modular/modules/files/cache"
)

// FoldersCacheName is the cache entry holding the last successful folder set.
const FoldersCacheName = "compare-and-copy.json"

// FolderSet is the three folders of a compare-and-copy run.
type FolderSet struct {
	// Source lists the file names to look for.
	Source string `json:"source"`
	// Reference is searched for files with those names.
	Reference string `json:"reference"`
	// Destination receives the matching reference files.
	Destination string `json:"destination"`
}

// Fields returns the set as validation input, with every folder cleaned
// so "ref" and "ref/" compare equal.
func (f FolderSet) Fields() map[string]string {
	return map[string]string{
		"source":      cleanPath(f.Source),
		"reference":   cleanPath(f.Reference),
		"destination": cleanPath(f.Destination),
	}
}

// Complete reports whether all three folders are set.
func (f FolderSet) Complete() bool {
	return f.Source != "" && f.Reference != "" && f.Destination != ""
}

// Line is the outcome for one source file.
type Line struct {
	Name    string `json:"name"`
	Matched bool   `json:"matched"`
	Copied  bool   `json:"copied"`
	Error   string `json:"error,omitempty"`
}

func (l Line) String() string {
	switch {
	case l.Copied:
		return fmt.Sprintf("copy %s => ok", l.Name)
	case l.Error != "":
		return fmt.Sprintf("copy %s => failed: %s", l.Name, l.Error)
	default:
		return fmt.Sprintf("copy %s => no match", l.Name)
	}
}

// CopyReport summarises a compare-and-copy run.
type CopyReport struct {
	Total  int    `json:"total"`
	Copied int    `json:"copied"`
	Failed int    `json:"failed"`
	Lines  []Line `json:"lines"`
}

// Summary is the one-line human summary. Unmatched files count as not
// copied.
func (r CopyReport) Summary() string {
	return fmt.Sprintf("total files: %d, copied: %d, not copied: %d", r.Total, r.Copied, r.Total-r.Copied)
}

// ── Service ──────────────────────────────────────────────────────────────────

// Service copies reference files whose names appear in a source tree and
// remembers the last folder set that worked.
type Service struct {
	store cache.Store
	log   logrus.FieldLogger

	mu      sync.RWMutex
	folders FolderSet
}

// NewService creates a service persisting folder sets in store.
func NewService(store cache.Store, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log}
}

// CompareAndCopy copies every file under ref whose base name matches a file
// under src into dst. Both trees are walked recursively; dst is flat and
// created when missing. When several reference files share a name, the
// last one in walk order wins.
//
// Missing src or ref folders are reported as a failed Result. Per-file copy
// failures are recorded in the report and do not stop the run; a match that
// is already the destination file is one of them and is left untouched. The
// Result succeeds when at least one source file had a match.
func (s *Service) CompareAndCopy(ctx context.Context, src, ref, dst string) (result.Result[CopyReport], error) {
	src, ref, dst = cleanPath(src), cleanPath(ref), cleanPath(dst)
	if !isDir(src) {
		return result.Fail[CopyReport]("source folder does not exist: %s", src), nil
	}
	if !isDir(ref) {
		return result.Fail[CopyReport]("reference folder does not exist: %s", ref), nil
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return result.Result[CopyReport]{}, fmt.Errorf("files: create destination: %w", err)
	}

	sources, err := listFiles(ctx, src)
	if err != nil {
		return result.Result[CopyReport]{}, err
	}
	refs, err := listFiles(ctx, ref)
	if err != nil {
		return result.Result[CopyReport]{}, err
	}
	byName := make(map[string]string, len(refs))
	for _, p := range refs {
		byName[filepath.Base(p)] = p
	}

	report := CopyReport{Total: len(sources), Lines: make([]Line, 0, len(sources))}
	matched := false
	for _, p := range sources {
		if err := ctx.Err(); err != nil {
			return result.Result[CopyReport]{}, err
		}
		name := filepath.Base(p)
		line := Line{Name: name}

		if from, ok := byName[name]; ok {
			line.Matched = true
			matched = true
			if err := copyFile(from, filepath.Join(dst, name)); err != nil {
				line.Error = err.Error()
				report.Failed++
				s.log.WithError(err).WithField("file", name).Warn("copy failed")
			} else {
				line.Copied = true
				report.Copied++
			}
		}
		report.Lines = append(report.Lines, line)
	}

	s.log.WithFields(logrus.Fields{
		"total":  report.Total,
		"copied": report.Copied,
		"failed": report.Failed,
	}).Info("compare and copy finished")

	r := result.Result[CopyReport]{Status: matched, Message: report.Summary(), Data: report}
	return r, nil
}

// Run validates a folder set, runs CompareAndCopy and, when it succeeds,
// remembers the set and writes it to the cache.
func (s *Service) Run(ctx context.Context, set FolderSet) (result.Result[CopyReport], error) {
	if !set.Complete() {
		return result.Fail[CopyReport]("source, reference and destination folders are required"), nil
	}
	r, err := s.CompareAndCopy(ctx, set.Source, set.Reference, set.Destination)
	if err != nil || !r.Status {
		return r, err
	}

	s.setFolders(set)
	if err := s.SaveFolders(ctx, set); err != nil {
		// The copy already happened; a cache failure only loses the preset.
		s.log.WithError(err).Warn("folder set not cached")
		r.Message += " (folders not cached: " + err.Error() + ")"
	}
	return r, nil
}

// SaveFolders writes set to the cache.
func (s *Service) SaveFolders(ctx context.Context, set FolderSet) error {
	return s.store.Write(ctx, FoldersCacheName, set)
}

// LoadFolders reads the cached folder set. A missing entry is a failed
// Result, not an error.
func (s *Service) LoadFolders(ctx context.Context) (result.Result[FolderSet], error) {
	var set FolderSet
	err := s.store.Read(ctx, FoldersCacheName, &set)
	if errors.Is(err, cache.ErrNotFound) {
		return result.Fail[FolderSet]("no cached folders: %v", err), nil
	}
	if err != nil {
		return result.Result[FolderSet]{}, err
	}
	return result.OK(set, ""), nil
}

// Folders returns the current folder set.
func (s *Service) Folders() FolderSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folders
}

func (s *Service) setFolders(set FolderSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = set
}

// ── helpers ──────────────────────────────────────────────────────────────────

func isDir(p string) bool {
	if p == "" {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// listFiles returns every regular file under root in lexical walk order.
func listFiles(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("files: walk %s: %w", root, err)
	}
	return out, nil
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// errSameFile is recorded when the reference match is the destination file.
var errSameFile = errors.New("reference and destination are the same file")

// copyFile copies from to to through a temporary file in to's directory,
// so to is replaced only by a complete copy and from is never truncated.
func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	fromInfo, err := in.Stat()
	if err != nil {
		return err
	}
	if toInfo, err := os.Stat(to); err == nil && os.SameFile(fromInfo, toInfo) {
		return errSameFile
	}

	tmp, err := os.CreateTemp(filepath.Dir(to), "."+filepath.Base(to)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), to); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
