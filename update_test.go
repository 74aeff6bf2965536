package metamodel

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/InsightsDev-dev/metamodel/domain/model"
	"github.com/InsightsDev-dev/metamodel/resource"
)

// update runs fn as an update script on a new context over path.
func update(t *testing.T, path string, cfg Configuration, fn func(ctx context.Context, cb *UpdateCallback) error) error {
	t.Helper()

	dc, err := NewFromFile(path, cfg)
	require.NoError(t, err)
	return dc.ExecuteUpdate(context.Background(), UpdateScriptFunc(fn))
}

func TestUpdateCallback(t *testing.T) {
	t.Parallel()

	const users = "id,name\n1,alice\n2,bob\n"

	tests := []struct {
		name    string
		content string
		cfg     Configuration
		script  func(t *testing.T, ctx context.Context, cb *UpdateCallback) error
		want    string
	}{
		{
			name:    "Insert a row by column name",
			content: users,
			cfg:     NewConfiguration(),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertRow(ctx, map[string]any{"name": "carol", "id": 3})
			},
			want: users + "3,carol\n",
		},
		{
			name:    "Insert a partial row",
			content: users,
			cfg:     NewConfiguration(),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertRow(ctx, map[string]any{"id": 3})
			},
			want: users + "3,\n",
		},
		{
			name:    "Insert positional values",
			content: users,
			cfg:     NewConfiguration(),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				if err := cb.InsertValues(ctx, 3, "carol"); err != nil {
					return err
				}
				return cb.InsertRows(ctx, [][]any{{4, []byte("dave")}, {5, nil}})
			},
			want: users + "3,carol\n4,dave\n5,\n",
		},
		{
			name:    "Delete matching rows",
			content: users,
			cfg:     NewConfiguration(),
			script: func(t *testing.T, ctx context.Context, cb *UpdateCallback) error {
				n, err := cb.DeleteRows(ctx, func(row *model.Row) bool {
					name, _ := row.Lookup("name")
					return name == "alice"
				})
				assert.Equal(t, 1, n)
				return err
			},
			want: "id,name\n2,bob\n",
		},
		{
			name:    "Delete every row",
			content: users,
			cfg:     NewConfiguration(),
			script: func(t *testing.T, ctx context.Context, cb *UpdateCallback) error {
				n, err := cb.DeleteRows(ctx, nil)
				assert.Equal(t, 2, n)
				return err
			},
			want: "id,name\n",
		},
		{
			name:    "Update matching rows",
			content: "id,name,city\n1,alice\n2,bob,rome\n",
			cfg:     NewConfiguration(),
			script: func(t *testing.T, ctx context.Context, cb *UpdateCallback) error {
				n, err := cb.UpdateRows(ctx, func(row *model.Row) bool {
					return row.String(0) == "1"
				}, map[string]any{"city": "paris"})
				assert.Equal(t, 1, n)
				return err
			},
			want: "id,name,city\n1,alice,paris\n2,bob,rome\n",
		},
		{
			name:    "Add a column",
			content: "id,name\n1,alice\n2\n",
			cfg:     NewConfiguration(),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.AddColumn(ctx, "email")
			},
			want: "id,name,email\n1,alice,\n2,,\n",
		},
		{
			name:    "Truncate keeps the preamble and the header",
			content: "# exported\nid,name\n1,alice\n",
			cfg:     NewConfiguration().WithColumnNameLineNumber(2),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.Truncate(ctx)
			},
			want: "# exported\nid,name\n",
		},
		{
			name:    "Replace rows keeps the preamble and the header",
			content: "# exported\nid,name\n1,alice\n2,bob\n",
			cfg:     NewConfiguration().WithColumnNameLineNumber(2),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.ReplaceRows(ctx, [][]any{{3, "carol"}})
			},
			want: "# exported\nid,name\n3,carol\n",
		},
		{
			name:    "Replace rows with nothing",
			content: users,
			cfg:     NewConfiguration(),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.ReplaceRows(ctx, nil)
			},
			want: "id,name\n",
		},
		{
			name:    "Blank header names are written back as they were",
			content: "id,\n1,x\n",
			cfg:     NewConfiguration(),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertRow(ctx, map[string]any{"B": "y"})
			},
			want: "id,\n1,x\n,y\n",
		},
		{
			name:    "Values that need quoting",
			content: users,
			cfg:     NewConfiguration(),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertValues(ctx, 3, "smith, \"j\"")
			},
			want: users + "3,\"smith, \\\"j\\\"\"\n",
		},
		{
			name:    "Header-less file",
			content: "1,2\n",
			cfg:     NewConfiguration().WithColumnNameLineNumber(model.NoColumnNameLine),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				if err := cb.InsertValues(ctx, 3, 4); err != nil {
					return err
				}
				return cb.AddColumn(ctx, "C")
			},
			want: "1,2,\n3,4,\n",
		},
		{
			name:    "ISO-8859-1 content",
			content: "name\ncaf\xe9\n",
			cfg:     NewConfiguration().WithEncoding("ISO-8859-1"),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertValues(ctx, "naïve")
			},
			want: "name\ncaf\xe9\nna\xefve\n",
		},
		{
			name:    "Tab separated",
			content: "id\tname\n1\talice\n",
			cfg:     NewConfiguration().WithSeparator('\t'),
			script: func(_ *testing.T, ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertValues(ctx, 2, "b,o,b")
			},
			want: "id\tname\n1\talice\n2\tb,o,b\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeTestFile(t, "users.csv", tt.content)
			err := update(t, path, tt.cfg, func(ctx context.Context, cb *UpdateCallback) error {
				return tt.script(t, ctx, cb)
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, readTestFile(t, path))
		})
	}
}

func TestUpdateCallbackNewFile(t *testing.T) {
	t.Parallel()

	t.Run("Header is created from the first row", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "users.csv")
		err := update(t, path, NewConfiguration(), func(ctx context.Context, cb *UpdateCallback) error {
			if err := cb.InsertRow(ctx, map[string]any{"name": "alice", "id": 1}); err != nil {
				return err
			}
			return cb.InsertRow(ctx, map[string]any{"id": 2, "name": "bob"})
		})
		require.NoError(t, err)
		assert.Equal(t, "id,name\n1,alice\n2,bob\n", readTestFile(t, path))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	})

	t.Run("Header on a later line is padded", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "users.csv")
		cfg := NewConfiguration().WithColumnNameLineNumber(3)
		err := update(t, path, cfg, func(ctx context.Context, cb *UpdateCallback) error {
			if err := cb.InsertRow(ctx, map[string]any{"id": 1}); err != nil {
				return err
			}
			return cb.InsertValues(ctx, 2, "extra")
		})
		require.NoError(t, err)
		assert.Equal(t, "\n\nid\n1\n2,extra\n", readTestFile(t, path))

		dc, err := NewFromFile(path, cfg)
		require.NoError(t, err)
		table := openTable(t, dc)
		assert.Equal(t, []string{"id"}, table.ColumnNames())
		ds, err := dc.MaterializeTable(context.Background(), table, nil, -1)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"1"}, {"2"}}, collect(t, ds))
	})

	t.Run("Header-less file takes its width from the first row", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "points.csv")
		cfg := NewConfiguration().WithColumnNameLineNumber(model.NoColumnNameLine)
		err := update(t, path, cfg, func(ctx context.Context, cb *UpdateCallback) error {
			return cb.InsertValues(ctx, 1, 2.5)
		})
		require.NoError(t, err)
		assert.Equal(t, "1,2.5\n", readTestFile(t, path))
	})

	t.Run("Positional values need a header", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "users.csv")
		err := update(t, path, NewConfiguration(), func(ctx context.Context, cb *UpdateCallback) error {
			return cb.InsertValues(ctx, 1)
		})
		require.ErrorIs(t, err, ErrConfiguration)
		assert.NoFileExists(t, path)
	})

	t.Run("Named values need a header", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "points.csv")
		cfg := NewConfiguration().WithColumnNameLineNumber(model.NoColumnNameLine)
		err := update(t, path, cfg, func(ctx context.Context, cb *UpdateCallback) error {
			return cb.InsertRow(ctx, map[string]any{"A": 1})
		})
		require.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestUpdateCallbackErrors(t *testing.T) {
	t.Parallel()

	const users = "id,name\n1,alice\n"

	tests := []struct {
		name   string
		cfg    Configuration
		script func(ctx context.Context, cb *UpdateCallback) error
		want   error
	}{
		{
			name: "Unknown column on insert",
			cfg:  NewConfiguration(),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertRow(ctx, map[string]any{"email": "x"})
			},
			want: ErrNoSuchColumn,
		},
		{
			name: "Unknown column on update",
			cfg:  NewConfiguration(),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				_, err := cb.UpdateRows(ctx, nil, map[string]any{"email": "x"})
				return err
			},
			want: ErrNoSuchColumn,
		},
		{
			name: "Duplicate column",
			cfg:  NewConfiguration(),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				return cb.AddColumn(ctx, "name")
			},
			want: ErrConfiguration,
		},
		{
			name: "Empty column name",
			cfg:  NewConfiguration(),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				return cb.AddColumn(ctx, "")
			},
			want: ErrConfiguration,
		},
		{
			name: "Named column on a header-less file",
			cfg:  NewConfiguration().WithColumnNameLineNumber(model.NoColumnNameLine),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				return cb.AddColumn(ctx, "email")
			},
			want: ErrConfiguration,
		},
		{
			name: "Strict row length",
			cfg:  NewConfiguration().WithFailOnInconsistentRowLength(true),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertValues(ctx, 2)
			},
			want: ErrInconsistentRowLength,
		},
		{
			name: "Strict row length on replace",
			cfg:  NewConfiguration().WithFailOnInconsistentRowLength(true),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				return cb.ReplaceRows(ctx, [][]any{{3, "carol"}, {4}})
			},
			want: ErrInconsistentRowLength,
		},
		{
			name: "Lone empty value without a quote character",
			cfg:  NewConfiguration().WithQuote(model.NoCharacter),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				return cb.InsertValues(ctx, "")
			},
			want: ErrConfiguration,
		},
		{
			name: "Canceled context",
			cfg:  NewConfiguration(),
			script: func(ctx context.Context, cb *UpdateCallback) error {
				canceled, cancel := context.WithCancel(ctx)
				cancel()
				return cb.Truncate(canceled)
			},
			want: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeTestFile(t, "users.csv", users)
			err := update(t, path, tt.cfg, tt.script)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, users, readTestFile(t, path))
		})
	}

	t.Run("Strict row length reports the line", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "users.csv", "# preamble\nid,name\n1,alice\n")
		cfg := NewConfiguration().WithColumnNameLineNumber(2).WithFailOnInconsistentRowLength(true)
		err := update(t, path, cfg, func(ctx context.Context, cb *UpdateCallback) error {
			return cb.InsertValues(ctx, 2, "bob", "extra")
		})

		var lengthErr *InconsistentRowLengthError
		require.ErrorAs(t, err, &lengthErr)
		assert.Equal(t, 4, lengthErr.Line)
		assert.Equal(t, 2, lengthErr.Expected)
		assert.Equal(t, 3, lengthErr.Actual)
	})

	t.Run("Replace rows is a single rewrite", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "users.csv", users)
		var callback *UpdateCallback
		err := update(t, path, NewConfiguration(), func(ctx context.Context, cb *UpdateCallback) error {
			callback = cb
			return cb.ReplaceRows(ctx, [][]any{{2, "bob"}, {3, "carol"}})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, callback.rewrites)
		assert.Equal(t, "id,name\n2,bob\n3,carol\n", readTestFile(t, path))
	})

	t.Run("Strict mode rejects an inconsistent file", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "users.csv", "id,name\n1\n")
		cfg := NewConfiguration().WithFailOnInconsistentRowLength(true)
		err := update(t, path, cfg, func(ctx context.Context, cb *UpdateCallback) error {
			return cb.Truncate(ctx)
		})
		require.ErrorIs(t, err, ErrInconsistentRowLength)
		assert.Equal(t, "id,name\n1\n", readTestFile(t, path))
	})
}

func TestUpdateCallbackCompressed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "users.csv.gz")
	f, err := os.Create(path) //nolint:gosec // test file
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("id,name\n1,alice\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dc, err := NewFromFile(path, NewConfiguration())
	require.NoError(t, err)
	require.True(t, dc.IsWritable())

	ctx := context.Background()
	err = dc.ExecuteUpdate(ctx, UpdateScriptFunc(func(ctx context.Context, cb *UpdateCallback) error {
		return cb.InsertValues(ctx, 2, "bob")
	}))
	require.NoError(t, err)

	table := openTable(t, dc)
	ds, err := dc.MaterializeTable(ctx, table, nil, -1)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"1", "alice"}, {"2", "bob"}}, collect(t, ds))
}

func TestExecuteUpdate(t *testing.T) {
	t.Parallel()

	t.Run("Read-only resources are not touched", func(t *testing.T) {
		t.Parallel()

		const content = "id\n1\n"
		path := writeTestFile(t, "users.csv", content)

		for _, res := range []resource.Resource{
			resource.NewFile(path, resource.WithReadOnly()),
			newSpy(resource.NewFile(path)),
		} {
			dc, err := New(res, NewConfiguration())
			require.NoError(t, err)

			var ran bool
			err = dc.ExecuteUpdate(context.Background(), UpdateScriptFunc(func(ctx context.Context, cb *UpdateCallback) error {
				ran = true
				return cb.Truncate(ctx)
			}))
			require.ErrorIs(t, err, ErrNotWritable)
			assert.False(t, ran)
			assert.Equal(t, content, readTestFile(t, path))
		}
	})

	t.Run("Nil script", func(t *testing.T) {
		t.Parallel()

		dc, err := NewFromFile(writeTestFile(t, "users.csv", "id\n"), NewConfiguration())
		require.NoError(t, err)
		require.ErrorIs(t, dc.ExecuteUpdate(context.Background(), nil), ErrConfiguration)
	})

	t.Run("Script error keeps earlier changes", func(t *testing.T) {
		t.Parallel()

		errStop := errors.New("stop")
		path := writeTestFile(t, "users.csv", "id\n1\n")
		err := update(t, path, NewConfiguration(), func(ctx context.Context, cb *UpdateCallback) error {
			if err := cb.InsertValues(ctx, 2); err != nil {
				return err
			}
			return errStop
		})
		require.ErrorIs(t, err, errStop)
		assert.Equal(t, "id\n1\n2\n", readTestFile(t, path))
	})

	t.Run("Callback is closed after the script", func(t *testing.T) {
		t.Parallel()

		path := writeTestFile(t, "users.csv", "id\n1\n")
		dc, err := NewFromFile(path, NewConfiguration())
		require.NoError(t, err)

		var escaped *UpdateCallback
		require.NoError(t, dc.ExecuteUpdate(context.Background(), UpdateScriptFunc(func(_ context.Context, cb *UpdateCallback) error {
			escaped = cb
			return nil
		})))

		require.ErrorIs(t, escaped.InsertValues(context.Background(), 2), ErrCallbackClosed)
		assert.Equal(t, "id\n1\n", readTestFile(t, path))
	})

	t.Run("Gate is released after a panic", func(t *testing.T) {
		t.Parallel()

		dc, err := NewFromFile(writeTestFile(t, "users.csv", "id\n"), NewConfiguration())
		require.NoError(t, err)

		assert.Panics(t, func() {
			_ = dc.ExecuteUpdate(context.Background(), UpdateScriptFunc(func(context.Context, *UpdateCallback) error {
				panic("boom")
			}))
		})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, dc.ExecuteUpdate(ctx, UpdateScriptFunc(func(ctx context.Context, cb *UpdateCallback) error {
			return cb.InsertValues(ctx, 1)
		})))
	})

	t.Run("Waiting for the gate ends with the context", func(t *testing.T) {
		t.Parallel()

		dc, err := NewFromFile(writeTestFile(t, "users.csv", "id\n"), NewConfiguration())
		require.NoError(t, err)

		entered := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- dc.ExecuteUpdate(context.Background(), UpdateScriptFunc(func(context.Context, *UpdateCallback) error {
				close(entered)
				<-release
				return nil
			}))
		}()
		<-entered

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err = dc.ExecuteUpdate(ctx, UpdateScriptFunc(func(context.Context, *UpdateCallback) error {
			t.Error("script must not run while the gate is held")
			return nil
		}))
		require.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		require.NoError(t, <-done)
	})
}

func TestExecuteUpdateSerializes(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, "counter.csv", "n\n")
	dc, err := NewFromFile(path, NewConfiguration())
	require.NoError(t, err)

	const writers = 8
	var (
		mu     sync.Mutex
		events []string
		active atomic.Int32
	)
	record := func(event string) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(context.Background())
	for i := range writers {
		g.Go(func() error {
			return dc.ExecuteUpdate(ctx, UpdateScriptFunc(func(ctx context.Context, cb *UpdateCallback) error {
				if active.Add(1) != 1 {
					t.Error("scripts overlap")
				}
				record("enter")
				defer func() {
					record("exit")
					active.Add(-1)
				}()
				time.Sleep(2 * time.Millisecond)
				return cb.InsertValues(ctx, i)
			}))
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, events, 2*writers)
	for i, event := range events {
		want := "enter"
		if i%2 == 1 {
			want = "exit"
		}
		assert.Equal(t, want, event, "event %d", i)
	}

	table := openTable(t, dc)
	ds, err := dc.MaterializeTable(context.Background(), table, nil, -1)
	require.NoError(t, err)
	assert.Len(t, collect(t, ds), writers)
}
