package sink

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// FileSink writes one extended JSON document per line, replacing any
// existing file.
type FileSink struct {
	path string
}

func NewFileSink(path string) *FileSink { return &FileSink{path: path} }

func (s *FileSink) Location() string { return s.path }

func (s *FileSink) Write(ctx context.Context, docs []bson.Raw) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if s.path == "" {
		return 0, errors.New("no output path configured for failed documents")
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, errors.Wrapf(err, "problem creating directory for '%s'", s.path)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return 0, errors.Wrapf(err, "problem creating '%s'", s.path)
	}

	count, err := writeLines(ctx, bufio.NewWriter(f), docs)

	catcher := grip.NewCatcher()
	catcher.Add(err)
	catcher.Wrapf(f.Close(), "problem closing '%s'", s.path)
	return count, catcher.Resolve()
}

func writeLines(ctx context.Context, w *bufio.Writer, docs []bson.Raw) (int, error) {
	count := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return count, errors.WithStack(err)
		}

		line, err := Encode(doc)
		if err != nil {
			return count, err
		}
		if _, err = w.Write(append(line, '\n')); err != nil {
			return count, errors.Wrap(err, "problem writing record")
		}
		count++
	}

	return count, errors.Wrap(w.Flush(), "problem flushing records")
}
