package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a request-scoped staging directory. All inputs staged for -
// and artifacts produced by - a single operation live underneath it, and
// the whole tree is removed when the workspace is closed. Its lifetime
// exactly brackets one request.
type Workspace struct {
	root string
}

// NewWorkspace creates a uniquely-named directory underneath the staging
// root. Callers must Close the returned workspace on every exit path.
func NewWorkspace(stagingRoot string) (*Workspace, error) {
	root := filepath.Join(stagingRoot, uuid.New().String())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scoped workspace: %w", err)
	}

	return &Workspace{root: root}, nil
}

// Stage copies the provided source in to a file of the given name inside
// the workspace, returning the absolute path of the staged file.
func (workspace *Workspace) Stage(name string, source io.Reader) (string, error) {
	path := workspace.Path(name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, source); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}

	return path, nil
}

// WriteFile creates a file of the given name inside the workspace with the
// provided contents, returning its absolute path.
func (workspace *Workspace) WriteFile(name string, contents []byte) (string, error) {
	path := workspace.Path(name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	return path, nil
}

// Mkdir creates a sub-directory inside the workspace, returning its
// absolute path.
func (workspace *Workspace) Mkdir(name string) (string, error) {
	path := workspace.Path(name)
	if err := os.Mkdir(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}

	return path, nil
}

// Path joins the provided elements on to the workspace root.
func (workspace *Workspace) Path(elems ...string) string {
	return filepath.Join(append([]string{workspace.root}, elems...)...)
}

func (workspace *Workspace) Root() string { return workspace.root }

// Close removes the workspace directory and everything staged inside it.
func (workspace *Workspace) Close() error {
	return os.RemoveAll(workspace.root)
}
