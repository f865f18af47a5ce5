package runner

import (
	"fmt"
	"os"
	"sync"
)

// workspace is the temporary directory owned by one run.
type workspace struct {
	dir  string
	once sync.Once
	err  error
}

func newWorkspace(root, runID string) (*workspace, error) {
	dir, err := os.MkdirTemp(root, "wxscribe_"+runID+"_")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &workspace{dir: dir}, nil
}

// Remove deletes the directory and everything in it. Only the first call
// does any work.
func (w *workspace) Remove() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.dir)
	})
	return w.err
}
